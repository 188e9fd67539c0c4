package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pario-ai/chorus/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			a, err := buildApp(cfg, log, opts.fake)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a.sweep(ctx)

			srv := server.New(cfg.Listen, a.coord, a.tools,
				server.WithLogger(log.With().Str("component", "server").Logger()),
				server.WithVersion(version),
			)
			log.Info().Str("config", opts.configPath).Msg("starting chorus api")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}
