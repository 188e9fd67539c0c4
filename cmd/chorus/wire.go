package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pario-ai/chorus/pkg/backend/fake"
	"github.com/pario-ai/chorus/pkg/backend/openai"
	"github.com/pario-ai/chorus/pkg/cache"
	"github.com/pario-ai/chorus/pkg/cache/memory"
	"github.com/pario-ai/chorus/pkg/cache/sqlite"
	"github.com/pario-ai/chorus/pkg/config"
	"github.com/pario-ai/chorus/pkg/coordinator"
	"github.com/pario-ai/chorus/pkg/dispatch"
	"github.com/pario-ai/chorus/pkg/logger"
	"github.com/pario-ai/chorus/pkg/mcp"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/pario-ai/chorus/pkg/router"
	"github.com/pario-ai/chorus/pkg/tracker"
	"github.com/rs/zerolog"
)

type globalOptions struct {
	configPath string
	fake       bool
}

func (o *globalOptions) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Log), nil
}

// app is the fully wired coordination stack.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	router  *router.Router
	cache   *cache.Layered[models.AggregatedResult]
	tracker *tracker.SQLiteTracker
	coord   *coordinator.Coordinator
	tools   *mcp.Tools
}

func buildApp(cfg *config.Config, log zerolog.Logger, useFake bool) (*app, error) {
	r, err := router.New(cfg)
	if err != nil {
		return nil, err
	}

	var backend dispatch.Backend
	if useFake {
		backend = fake.Demo()
		log.Info().Msg("using fake backend")
	} else {
		backend = openai.New(cfg.Providers, r)
	}

	dopts := []dispatch.Option{
		dispatch.WithTimeout(cfg.Dispatcher.Timeout),
		dispatch.WithMaxConcurrency(cfg.Dispatcher.MaxConcurrency),
		dispatch.WithModelNames(modelNames(r)),
		dispatch.WithLogger(log.With().Str("component", "dispatch").Logger()),
	}
	if cfg.Dispatcher.RatePerSecond > 0 {
		dopts = append(dopts, dispatch.WithRateLimit(cfg.Dispatcher.RatePerSecond, cfg.Dispatcher.Burst))
	}
	d := dispatch.New(backend, dopts...)

	copts := []cache.Option{
		cache.WithWriteBackTTL(cfg.Cache.WriteBackTTL),
		cache.WithLogger(log.With().Str("component", "cache").Logger()),
	}
	if cfg.Cache.Enabled && cfg.Cache.Durable {
		durable, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		copts = append(copts, cache.WithDurable(durable))
	}
	layered := cache.NewLayered(memory.New[models.AggregatedResult](cfg.Cache.FastCapacity), copts...)

	tr, err := tracker.New(cfg.DBPath)
	if err != nil {
		_ = layered.Close()
		return nil, fmt.Errorf("init tracker: %w", err)
	}

	coord := coordinator.New(r, d, layered,
		coordinator.WithLogger(log.With().Str("component", "coordinator").Logger()),
		coordinator.WithRecorder(tr),
		coordinator.WithHistoryCapacity(cfg.History.Capacity),
		coordinator.WithDefaults(coordinator.Defaults{
			ModelCount:   cfg.Routing.DefaultCount,
			Parallel:     cfg.Dispatcher.Parallel,
			CacheEnabled: cfg.Cache.Enabled,
			CacheTTL:     cfg.Cache.TTL,
		}),
	)

	return &app{
		cfg:     cfg,
		log:     log,
		router:  r,
		cache:   layered,
		tracker: tr,
		coord:   coord,
		tools:   mcp.NewTools(coord, r.Rules()),
	}, nil
}

// sweep runs the cache sweeper until ctx is done.
func (a *app) sweep(ctx context.Context) {
	if a.cfg.Cache.Enabled {
		go a.cache.Run(ctx, a.cfg.Cache.SweepInterval)
	}
}

func (a *app) Close() error {
	return errors.Join(a.coord.Close(), a.tracker.Close())
}

func modelNames(r *router.Router) func(string) string {
	return func(id string) string {
		if p, err := r.Model(id); err == nil {
			return p.Name
		}
		return id
	}
}
