package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pario-ai/chorus/pkg/models"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. CHORUS_CACHE_TTL.
const EnvPrefix = "CHORUS"

// Config holds all chorus configuration.
type Config struct {
	Listen     string                `yaml:"listen" split_words:"true"`
	DBPath     string                `yaml:"db_path" split_words:"true"`
	Log        LogConfig             `yaml:"log"`
	Providers  []ProviderConfig      `yaml:"providers" ignored:"true"`
	Models     []models.ModelProfile `yaml:"models" ignored:"true"`
	Routing    RoutingConfig         `yaml:"routing"`
	Cache      CacheConfig           `yaml:"cache"`
	Dispatcher DispatcherConfig      `yaml:"dispatcher"`
	History    HistoryConfig         `yaml:"history"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Pretty bool   `yaml:"pretty" split_words:"true"`
}

// ProviderConfig defines an OpenAI-compatible upstream.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// RoutingConfig holds the per-domain candidate lists.
// Rules maps a domain to model ids in preference order.
type RoutingConfig struct {
	DefaultCount int                 `yaml:"default_count" split_words:"true"`
	Rules        map[string][]string `yaml:"rules" ignored:"true"`
}

// CacheConfig controls the two-tier result cache.
// Durable enables the SQLite tier stored at DBPath.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" split_words:"true"`
	Durable       bool          `yaml:"durable" split_words:"true"`
	TTL           time.Duration `yaml:"ttl" split_words:"true"`
	WriteBackTTL  time.Duration `yaml:"write_back_ttl" split_words:"true"`
	FastCapacity  int           `yaml:"fast_capacity" split_words:"true"`
	SweepInterval time.Duration `yaml:"sweep_interval" split_words:"true"`
}

// DispatcherConfig controls backend fan-out.
// RatePerSecond of zero disables per-model rate limiting.
type DispatcherConfig struct {
	Parallel       bool          `yaml:"parallel" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout" split_words:"true"`
	MaxConcurrency int           `yaml:"max_concurrency" split_words:"true"`
	RatePerSecond  float64       `yaml:"rate_per_second" split_words:"true"`
	Burst          int           `yaml:"burst" split_words:"true"`
}

// HistoryConfig bounds the in-memory execution history.
type HistoryConfig struct {
	Capacity int `yaml:"capacity" split_words:"true"`
}

// Default returns a Config with the built-in model registry and routing rules.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "chorus.db",
		Log: LogConfig{
			Level: "info",
		},
		Providers: DefaultProviders(),
		Models:    DefaultModels(),
		Routing: RoutingConfig{
			DefaultCount: 3,
			Rules:        DefaultRules(),
		},
		Cache: CacheConfig{
			Enabled:       true,
			Durable:       true,
			TTL:           time.Hour,
			WriteBackTTL:  30 * time.Minute,
			FastCapacity:  500,
			SweepInterval: time.Minute,
		},
		Dispatcher: DispatcherConfig{
			Parallel:       true,
			Timeout:        30 * time.Second,
			MaxConcurrency: 8,
			Burst:          1,
		},
		History: HistoryConfig{
			Capacity: 1000,
		},
	}
}

// Load reads a YAML config file, expands environment variables, and applies
// CHORUS_* overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	// yaml.v3 merges into a non-nil map; rules replace the defaults like lists do.
	cfg.Routing.Rules = nil
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Routing.Rules == nil {
		cfg.Routing.Rules = DefaultRules()
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default with
// environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	cfg = Default()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return errors.New("config: at least one model is required")
	}
	if c.Cache.FastCapacity <= 0 {
		return fmt.Errorf("config: cache.fast_capacity must be positive, got %d", c.Cache.FastCapacity)
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("config: history.capacity must be positive, got %d", c.History.Capacity)
	}
	if c.Dispatcher.Timeout <= 0 {
		return fmt.Errorf("config: dispatcher.timeout must be positive, got %s", c.Dispatcher.Timeout)
	}
	if c.Routing.DefaultCount < 0 {
		return fmt.Errorf("config: routing.default_count must not be negative, got %d", c.Routing.DefaultCount)
	}

	providers := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		providers[p.Name] = true
	}
	ids := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.ID == "" {
			return errors.New("config: model id is required")
		}
		if ids[m.ID] {
			return fmt.Errorf("config: duplicate model id %q", m.ID)
		}
		ids[m.ID] = true
		if m.Provider != "" && !providers[m.Provider] {
			return fmt.Errorf("config: model %q references unknown provider %q", m.ID, m.Provider)
		}
	}
	for domain, rule := range c.Routing.Rules {
		for _, id := range rule {
			if !ids[id] {
				return fmt.Errorf("config: routing rule %s references unknown model %q", domain, id)
			}
		}
	}
	return nil
}
