package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pario-ai/chorus/pkg/aggregate"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/spf13/cobra"
)

func newCallCmd(opts *globalOptions) *cobra.Command {
	var (
		domain     string
		preferred  []string
		count      int
		sequential bool
		noCache    bool
		style      string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "call [flags] <input>",
		Short: "Send one request to several models and print the aggregated answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, log, opts.fake)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			callOpts := models.CallOptions{
				Domain:          models.ParseDomain(domain),
				UserInput:       strings.Join(args, " "),
				PreferredModels: preferred,
				ModelCount:      count,
			}
			if sequential {
				parallel := false
				callOpts.ParallelExecution = &parallel
			}
			if noCache {
				useCache := false
				callOpts.UseCache = &useCache
			}

			res, err := a.coord.Call(cmd.Context(), callOpts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(out, res, aggregate.ParseStyle(style))
			return nil
		},
	}

	cmd.Flags().StringVarP(&domain, "domain", "d", "", "technical domain (MOBILE, FIXED, DATACENTER, DEV, AIDATA, SECURITY, AGENT_MCP)")
	cmd.Flags().StringSliceVar(&preferred, "models", nil, "model ids to use instead of the domain rule")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of models to call (0 uses the configured default)")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "call models one after another")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the result cache")
	cmd.Flags().StringVar(&style, "style", "summary", "output style: summary, comparative or detailed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func printResult(w io.Writer, res models.CallResult, style aggregate.Style) {
	r := res.Result
	source := "live"
	if res.CacheHit {
		source = "cache"
	}
	fmt.Fprintf(w, "Task %s  domain=%s  source=%s  models=%d  time=%dms\n\n",
		r.TaskID, r.Domain, source, len(r.Responses), r.ExecutionTimeMs)
	fmt.Fprintln(w, aggregate.Render(style, r.Responses))
	if r.Consensus != "" {
		fmt.Fprintf(w, "\nConsensus: %s\n", r.Consensus)
	}
	for _, d := range r.Divergences {
		fmt.Fprintf(w, "  - %s\n", d)
	}
	s := res.CacheStats
	fmt.Fprintf(w, "\nCache: %d entries, %d hits, %d misses, %.1f%% hit rate\n",
		s.CurrentSize, s.Hits, s.Misses, s.HitRate*100)
}
