package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pario-ai/chorus/pkg/router"
	"github.com/spf13/cobra"
)

func newModelsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered models and their capability profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			r, err := router.New(cfg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tUPSTREAM\tREASONING\tCREATIVITY\tACCURACY\tSPEED\tSTRENGTHS")
			for _, p := range r.Models() {
				upstream := "-"
				if t, err := r.Resolve(p.ID); err == nil {
					upstream = t.Model
				}
				c := p.Capabilities
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					p.ID, p.Name, p.Provider, upstream, c.Reasoning, c.Creativity, c.Accuracy, c.Speed,
					strings.Join(p.Strengths, ","))
			}
			return w.Flush()
		},
	}
}
