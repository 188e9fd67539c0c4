package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pario-ai/chorus/pkg/tracker"
	"github.com/spf13/cobra"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var (
		model  string
		taskID string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-model latency and token usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			// Task detail view
			if taskID != "" {
				records, err := tr.TaskRecords(ctx, taskID)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No records found for task.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tDOMAIN\tMODEL\tELAPSED MS\tPROMPT\tCOMPLETION\tTOTAL")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
						r.CreatedAt.Format("2006-01-02T15:04:05"), r.Domain, r.Model, r.ElapsedMs,
						r.PromptTokens, r.CompletionTokens, r.TotalTokens)
				}
				return w.Flush()
			}

			summaries, err := tr.Summary(ctx, model)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tREQUESTS\tAVG MS\tPROMPT\tCOMPLETION\tTOTAL")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%.0f\t%d\t%d\t%d\n",
					s.Model, s.RequestCount, s.AvgElapsedMs, s.TotalPrompt, s.TotalCompletion, s.TotalTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "filter by model id")
	cmd.Flags().StringVar(&taskID, "task", "", "show per-backend detail for one task")
	return cmd
}
