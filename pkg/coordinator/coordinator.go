// Package coordinator is the entry point of the agent coordination layer. A
// call goes through cache lookup, routing, dispatch, aggregation and cache
// write, in that order, and is recorded in the execution history whatever
// its outcome.
package coordinator

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/pario-ai/chorus/pkg/aggregate"
	"github.com/pario-ai/chorus/pkg/cache"
	"github.com/pario-ai/chorus/pkg/dispatch"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/rs/zerolog"
)

// Router selects models for a request.
type Router interface {
	Route(prompt string, domain models.Domain, preferred []string, count int) models.RoutingDecision
	Models() []models.ModelProfile
	Model(id string) (models.ModelProfile, error)
}

// Dispatcher fans a prompt out to backends.
type Dispatcher interface {
	Run(ctx context.Context, req dispatch.Request) dispatch.Outcome
}

// ResultCache stores aggregated results by request key.
type ResultCache interface {
	Get(ctx context.Context, key string) (models.AggregatedResult, bool)
	Put(ctx context.Context, key string, value models.AggregatedResult, ttl time.Duration)
	Clear(ctx context.Context)
	Stats() models.CacheStats
	Close() error
}

// Recorder persists per-backend telemetry.
type Recorder interface {
	Record(ctx context.Context, rec models.UsageRecord) error
}

// Defaults apply when CallOptions leave a field unset.
type Defaults struct {
	ModelCount   int
	Parallel     bool
	CacheEnabled bool
	CacheTTL     time.Duration
}

// DefaultDefaults mirrors the documented call defaults.
var DefaultDefaults = Defaults{
	ModelCount:   3,
	Parallel:     true,
	CacheEnabled: true,
	CacheTTL:     time.Hour,
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	router     Router
	dispatcher Dispatcher
	cache      ResultCache
	recorder   Recorder
	defaults   Defaults
	history    *history
	log        zerolog.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithRecorder records every successful backend response.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithDefaults overrides the call defaults.
func WithDefaults(d Defaults) Option {
	return func(c *Coordinator) { c.defaults = d }
}

// WithHistoryCapacity bounds the execution history.
func WithHistoryCapacity(n int) Option {
	return func(c *Coordinator) { c.history = newHistory(n) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(f func() string) Option {
	return func(c *Coordinator) { c.newID = f }
}

// New wires a Coordinator.
func New(router Router, dispatcher Dispatcher, cache ResultCache, opts ...Option) *Coordinator {
	c := &Coordinator{
		router:     router,
		dispatcher: dispatcher,
		cache:      cache,
		defaults:   DefaultDefaults,
		history:    newHistory(DefaultHistoryCapacity),
		log:        zerolog.Nop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaults.CacheTTL <= 0 {
		c.defaults.CacheTTL = DefaultDefaults.CacheTTL
	}
	return c
}

// task is a validated call with its defaults resolved.
type task struct {
	ec        models.ExecutionContext
	preferred []string
	count     int
	parallel  bool
	useCache  bool
	key       string
	start     time.Time
}

func (c *Coordinator) begin(opts models.CallOptions) (*task, error) {
	start := c.now()
	opts.Domain = models.ParseDomain(string(opts.Domain))
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	t := &task{
		ec: models.ExecutionContext{
			TaskID:         c.newID(),
			Domain:         opts.Domain,
			OriginalPrompt: opts.UserInput,
			CreatedAt:      start,
			Metadata:       maps.Clone(opts.Metadata),
		},
		preferred: opts.PreferredModels,
		count:     opts.ModelCount,
		parallel:  c.defaults.Parallel,
		useCache:  c.defaults.CacheEnabled,
		key:       cache.Key(opts.Domain, opts.UserInput),
		start:     start,
	}
	if t.count == 0 {
		t.count = c.defaults.ModelCount
	}
	if opts.ParallelExecution != nil {
		t.parallel = *opts.ParallelExecution
	}
	if opts.UseCache != nil {
		t.useCache = *opts.UseCache
	}
	c.history.add(t.ec)
	return t, nil
}

// Call runs one coordinated request. It is not cancelled by ctx: once
// started it runs to completion or failure, bounded by the per-backend
// timeout. It fails with models.ErrInvalidRequest before doing any work, or
// with *models.AllBackendsFailedError when no backend answered.
func (c *Coordinator) Call(ctx context.Context, opts models.CallOptions) (models.CallResult, error) {
	t, err := c.begin(opts)
	if err != nil {
		return models.CallResult{}, err
	}
	ctx = context.WithoutCancel(ctx)

	if result, ok := c.lookup(ctx, t); ok {
		result.ExecutionTimeMs = c.since(t.start)
		c.finished(t, "hit", len(result.Responses))
		return models.CallResult{Result: result, CacheStats: c.cache.Stats(), CacheHit: true}, nil
	}

	decision := c.route(t)
	result, err := c.execute(ctx, t, decision.SelectedModelIDs, nil)
	if err != nil {
		c.log.Error().Err(err).Str("task_id", t.ec.TaskID).Msg("call failed")
		return models.CallResult{}, err
	}
	c.store(ctx, t, result)
	result.ExecutionTimeMs = c.since(t.start)
	c.finished(t, cacheLabel(t), len(result.Responses))
	return models.CallResult{Result: result, CacheStats: c.cache.Stats()}, nil
}

func (c *Coordinator) lookup(ctx context.Context, t *task) (models.AggregatedResult, bool) {
	if !t.useCache {
		return models.AggregatedResult{}, false
	}
	cached, ok := c.cache.Get(ctx, t.key)
	if !ok {
		return models.AggregatedResult{}, false
	}
	result := cached.Clone()
	ids := make([]string, len(result.Responses))
	for i := range result.Responses {
		result.Responses[i].ServedFromCache = true
		ids[i] = result.Responses[i].ModelID
	}
	c.history.setModels(t.ec.TaskID, ids)
	return result, true
}

// execute dispatches to the selected models and aggregates. onResponse sees
// each success as it arrives.
func (c *Coordinator) execute(ctx context.Context, t *task, selected []string, onResponse func(models.BackendResponse)) (models.AggregatedResult, error) {
	outcome := c.dispatcher.Run(ctx, dispatch.Request{
		Prompt:     t.ec.OriginalPrompt,
		ModelIDs:   selected,
		TaskID:     t.ec.TaskID,
		Parallel:   t.parallel,
		OnResponse: onResponse,
	})
	if len(outcome.Responses) == 0 {
		return models.AggregatedResult{}, &models.AllBackendsFailedError{
			TaskID:   t.ec.TaskID,
			Failures: outcome.Failures,
		}
	}
	c.record(ctx, t, outcome.Responses)
	return c.reduce(t.ec, outcome.Responses), nil
}

func (c *Coordinator) route(t *task) models.RoutingDecision {
	decision := c.router.Route(t.ec.OriginalPrompt, t.ec.Domain, t.preferred, t.count)
	c.history.setModels(t.ec.TaskID, decision.SelectedModelIDs)
	c.log.Debug().
		Str("task_id", t.ec.TaskID).
		Strs("models", decision.SelectedModelIDs).
		Float64("confidence", decision.Confidence).
		Str("reason", decision.Reason).
		Msg("routed")
	return decision
}

func (c *Coordinator) reduce(ec models.ExecutionContext, responses []models.BackendResponse) models.AggregatedResult {
	consensus, divergences := aggregate.FindConsensus(responses)
	return models.AggregatedResult{
		TaskID:         ec.TaskID,
		Domain:         ec.Domain,
		OriginalPrompt: ec.OriginalPrompt,
		Responses:      responses,
		Summary:        aggregate.Summarize(responses),
		Consensus:      consensus,
		Divergences:    divergences,
		GeneratedAt:    c.now(),
	}
}

// store writes a copy of result with ExecutionTimeMs zeroed; the caller's
// copy is fixed up afterwards.
func (c *Coordinator) store(ctx context.Context, t *task, result models.AggregatedResult) {
	if !t.useCache {
		return
	}
	c.StoreResult(ctx, t.key, result, c.defaults.CacheTTL)
}

func (c *Coordinator) record(ctx context.Context, t *task, responses []models.BackendResponse) {
	if c.recorder == nil {
		return
	}
	for _, r := range responses {
		rec := models.UsageRecord{
			TaskID:    t.ec.TaskID,
			Domain:    t.ec.Domain,
			Model:     r.ModelID,
			ElapsedMs: r.ElapsedMs,
			CreatedAt: c.now(),
		}
		if r.Usage != nil {
			rec.PromptTokens = r.Usage.PromptTokens
			rec.CompletionTokens = r.Usage.CompletionTokens
			rec.TotalTokens = r.Usage.TotalTokens
		}
		if err := c.recorder.Record(ctx, rec); err != nil {
			c.log.Warn().Err(err).Str("task_id", t.ec.TaskID).Str("model", r.ModelID).Msg("record usage")
		}
	}
}

func (c *Coordinator) finished(t *task, cacheState string, responses int) {
	c.log.Info().
		Str("task_id", t.ec.TaskID).
		Str("domain", string(t.ec.Domain)).
		Str("cache", cacheState).
		Int("responses", responses).
		Int64("duration_ms", c.since(t.start)).
		Msg("call finished")
}

func cacheLabel(t *task) string {
	if t.useCache {
		return "miss"
	}
	return "bypass"
}

func (c *Coordinator) since(start time.Time) int64 {
	return c.now().Sub(start).Milliseconds()
}

// AvailableModels returns the model registry in registration order.
func (c *Coordinator) AvailableModels() []models.ModelProfile {
	return c.router.Models()
}

// Model returns one registered profile.
func (c *Coordinator) Model(id string) (models.ModelProfile, error) {
	return c.router.Model(id)
}

// Route exposes the routing decision without dispatching.
func (c *Coordinator) Route(prompt string, domain models.Domain, preferred []string, count int) models.RoutingDecision {
	if count == 0 {
		count = c.defaults.ModelCount
	}
	return c.router.Route(prompt, models.ParseDomain(string(domain)), preferred, count)
}

// CacheStats reports fast-tier statistics only; hits served by the durable
// tier count as misses.
func (c *Coordinator) CacheStats() models.CacheStats {
	return c.cache.Stats()
}

// ClearCache empties both cache tiers and resets the statistics.
func (c *Coordinator) ClearCache(ctx context.Context) {
	c.cache.Clear(ctx)
	c.log.Info().Msg("cache cleared")
}

// ExecutionHistory returns the context of taskID, or every retained context
// when taskID is empty.
func (c *Coordinator) ExecutionHistory(taskID string) ([]models.ExecutionContext, error) {
	if taskID == "" {
		return c.history.all(), nil
	}
	ec, ok := c.history.get(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTask, taskID)
	}
	return []models.ExecutionContext{ec}, nil
}

// Seed aggregates externally produced responses and caches them under the
// key of (domain, prompt), returning that key.
func (c *Coordinator) Seed(ctx context.Context, domain models.Domain, prompt string, responses []models.BackendResponse, ttl time.Duration) (string, error) {
	domain = models.ParseDomain(string(domain))
	if err := (models.CallOptions{Domain: domain, UserInput: prompt}).Validate(); err != nil {
		return "", err
	}
	if len(responses) == 0 {
		return "", fmt.Errorf("%w: at least one response is required", models.ErrInvalidRequest)
	}
	ec := models.ExecutionContext{
		TaskID:         c.newID(),
		Domain:         domain,
		OriginalPrompt: prompt,
		CreatedAt:      c.now(),
	}
	rs := make([]models.BackendResponse, len(responses))
	for i, r := range responses {
		r.TaskID = ec.TaskID
		rs[i] = r
	}
	key := cache.Key(domain, prompt)
	c.StoreResult(ctx, key, c.reduce(ec, rs), ttl)
	return key, nil
}

// StoreResult caches a copy of result under key. A non-positive ttl uses the
// configured default.
func (c *Coordinator) StoreResult(ctx context.Context, key string, result models.AggregatedResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaults.CacheTTL
	}
	stored := result.Clone()
	stored.ExecutionTimeMs = 0
	c.cache.Put(ctx, key, stored, ttl)
}

// Close releases the cache tiers.
func (c *Coordinator) Close() error {
	return c.cache.Close()
}
