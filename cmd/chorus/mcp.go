package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pario-ai/chorus/pkg/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start chorus as an MCP server on stdio",
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

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a.sweep(ctx)

			srv := mcp.New(a.tools, version, mcp.WithLogger(log.With().Str("component", "mcp").Logger()))
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
