// Package cache composes the in-memory and durable tiers into the two-level
// result cache used by the coordinator.
//
// Stats always describe the fast tier only. A lookup answered by the durable
// tier is still counted as a fast-tier miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pario-ai/chorus/pkg/cache/memory"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/rs/zerolog"
)

// Durable is the slower persistent tier.
type Durable interface {
	Get(ctx context.Context, key string) ([]byte, time.Time, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, expiredOnly bool) (int64, error)
	Close() error
}

// DefaultWriteBackTTL bounds how long a durable hit stays in the fast tier.
const DefaultWriteBackTTL = 30 * time.Minute

// Layered is a two-tier cache. Durable tier failures are logged and absorbed;
// they never reach the caller.
type Layered[V any] struct {
	fast         *memory.Tier[V]
	durable      Durable
	writeBackTTL time.Duration
	log          zerolog.Logger
	now          func() time.Time
	tierErrors   atomic.Int64
}

// Option configures a Layered cache.
type Option func(*layeredOptions)

type layeredOptions struct {
	durable      Durable
	writeBackTTL time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// WithDurable attaches a durable tier. Without one the cache is fast-tier only.
func WithDurable(d Durable) Option {
	return func(o *layeredOptions) { o.durable = d }
}

// WithWriteBackTTL sets the TTL used when a durable hit repopulates the fast tier.
func WithWriteBackTTL(ttl time.Duration) Option {
	return func(o *layeredOptions) { o.writeBackTTL = ttl }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *layeredOptions) { o.log = log }
}

// WithClock overrides the time source. It should match the fast tier's clock.
func WithClock(now func() time.Time) Option {
	return func(o *layeredOptions) { o.now = now }
}

// NewLayered wraps fast with an optional durable tier.
func NewLayered[V any](fast *memory.Tier[V], opts ...Option) *Layered[V] {
	o := layeredOptions{
		writeBackTTL: DefaultWriteBackTTL,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Layered[V]{
		fast:         fast,
		durable:      o.durable,
		writeBackTTL: o.writeBackTTL,
		log:          o.log,
		now:          o.now,
	}
}

// Get checks the fast tier, then the durable tier. A durable hit is written
// back to the fast tier for min(write-back TTL, remaining durable lifetime).
func (l *Layered[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if v, ok := l.fast.Get(key); ok {
		return v, true
	}
	if l.durable == nil {
		return zero, false
	}

	data, expiresAt, ok, err := l.durable.Get(ctx, key)
	if err != nil {
		l.tierFailure("get", key, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		l.tierFailure("decode", key, err)
		if err := l.durable.Delete(ctx, key); err != nil {
			l.tierFailure("delete", key, err)
		}
		return zero, false
	}

	ttl := l.writeBackTTL
	if remaining := expiresAt.Sub(l.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		l.fast.Put(key, v, ttl)
	}
	l.log.Debug().Str("key", key).Dur("write_back_ttl", ttl).Msg("durable cache hit")
	return v, true
}

// Put writes value to both tiers.
func (l *Layered[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) {
	l.fast.Put(key, value, ttl)
	if l.durable == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		l.tierFailure("encode", key, err)
		return
	}
	if err := l.durable.Put(ctx, key, data, ttl); err != nil {
		l.tierFailure("put", key, err)
	}
}

// Delete removes key from both tiers and reports whether the fast tier held it.
func (l *Layered[V]) Delete(ctx context.Context, key string) bool {
	removed := l.fast.Delete(key)
	if l.durable != nil {
		if err := l.durable.Delete(ctx, key); err != nil {
			l.tierFailure("delete", key, err)
		}
	}
	return removed
}

// Has reports whether the fast tier holds a live entry for key.
func (l *Layered[V]) Has(key string) bool {
	return l.fast.Has(key)
}

// Clear empties both tiers and resets the statistics.
func (l *Layered[V]) Clear(ctx context.Context) {
	l.fast.Clear()
	if l.durable == nil {
		return
	}
	if _, err := l.durable.Clear(ctx, false); err != nil {
		l.tierFailure("clear", "", err)
	}
}

// Stats returns fast-tier statistics.
func (l *Layered[V]) Stats() models.CacheStats {
	return l.fast.Stats()
}

// TierErrors returns how many durable tier failures have been absorbed.
func (l *Layered[V]) TierErrors() int64 {
	return l.tierErrors.Load()
}

// Sweep removes expired entries from both tiers.
func (l *Layered[V]) Sweep(ctx context.Context) int64 {
	removed := int64(l.fast.Sweep())
	if l.durable != nil {
		n, err := l.durable.Clear(ctx, true)
		if err != nil {
			l.tierFailure("sweep", "", err)
		}
		removed += n
	}
	if removed > 0 {
		l.log.Debug().Int64("removed", removed).Msg("cache sweep")
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (l *Layered[V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(ctx)
		}
	}
}

// Close releases the durable tier.
func (l *Layered[V]) Close() error {
	if l.durable == nil {
		return nil
	}
	return l.durable.Close()
}

func (l *Layered[V]) tierFailure(op, key string, cause error) {
	l.tierErrors.Add(1)
	err := fmt.Errorf("%w: %s: %w", models.ErrCacheTierUnavailable, op, cause)
	l.log.Warn().Err(err).Str("key", key).Msg("durable cache tier failure, continuing with fast tier")
}
