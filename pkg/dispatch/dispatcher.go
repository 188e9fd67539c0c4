// Package dispatch fans a prompt out to model backends and collects the
// successful responses. A failing or slow backend never affects its siblings.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pario-ai/chorus/pkg/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single backend invocation.
const DefaultTimeout = 30 * time.Second

// Completion is a backend's answer to one prompt.
type Completion struct {
	Text  string
	Usage *models.Usage
}

// Backend invokes model modelID with prompt.
type Backend interface {
	Invoke(ctx context.Context, modelID, prompt string) (Completion, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, modelID, prompt string) (Completion, error)

// Invoke calls f.
func (f BackendFunc) Invoke(ctx context.Context, modelID, prompt string) (Completion, error) {
	return f(ctx, modelID, prompt)
}

// Request describes one fan-out.
type Request struct {
	Prompt   string
	ModelIDs []string
	TaskID   string
	Parallel bool
	// OnResponse, if set, is called once per success in the order the
	// responses are collected. Calls are serialized.
	OnResponse func(models.BackendResponse)
}

// Outcome holds the successes in collection order and every failure.
type Outcome struct {
	Responses []models.BackendResponse
	Failures  []*models.InvocationError
}

// Dispatcher runs backend invocations through a bounded worker pool.
type Dispatcher struct {
	backend        Backend
	timeout        time.Duration
	maxConcurrency int
	ratePerSecond  float64
	burst          int
	names          func(modelID string) string
	log            zerolog.Logger
	now            func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(x *Dispatcher) { x.timeout = d }
}

// WithMaxConcurrency caps parallel invocations. Zero means one worker per model.
func WithMaxConcurrency(n int) Option {
	return func(x *Dispatcher) { x.maxConcurrency = n }
}

// WithRateLimit limits invocations per model. A non-positive rate disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(x *Dispatcher) {
		x.ratePerSecond = perSecond
		x.burst = max(burst, 1)
	}
}

// WithModelNames supplies display names for responses.
func WithModelNames(f func(modelID string) string) Option {
	return func(x *Dispatcher) { x.names = f }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(x *Dispatcher) { x.log = log }
}

// WithClock overrides the time source used for elapsed time.
func WithClock(now func() time.Time) Option {
	return func(x *Dispatcher) { x.now = now }
}

// New creates a Dispatcher over backend.
func New(backend Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend:  backend,
		timeout:  DefaultTimeout,
		burst:    1,
		names:    func(id string) string { return id },
		log:      zerolog.Nop(),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	return d
}

// RunParallel invokes every model concurrently and returns the successes in
// arrival order.
func (d *Dispatcher) RunParallel(ctx context.Context, prompt string, modelIDs []string, taskID string) []models.BackendResponse {
	return d.Run(ctx, Request{Prompt: prompt, ModelIDs: modelIDs, TaskID: taskID, Parallel: true}).Responses
}

// RunSequential invokes models one at a time and returns the successes in
// input order.
func (d *Dispatcher) RunSequential(ctx context.Context, prompt string, modelIDs []string, taskID string) []models.BackendResponse {
	return d.Run(ctx, Request{Prompt: prompt, ModelIDs: modelIDs, TaskID: taskID}).Responses
}

// Run dispatches req and waits for every invocation to finish. Sequential
// mode is the same pool with a single worker.
func (d *Dispatcher) Run(ctx context.Context, req Request) Outcome {
	var out Outcome
	if len(req.ModelIDs) == 0 {
		return out
	}

	limit := 1
	if req.Parallel {
		limit = len(req.ModelIDs)
		if d.maxConcurrency > 0 && d.maxConcurrency < limit {
			limit = d.maxConcurrency
		}
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(limit)
	for _, id := range req.ModelIDs {
		g.Go(func() error {
			resp, failure := d.invoke(ctx, req.TaskID, id, req.Prompt)

			mu.Lock()
			defer mu.Unlock()
			if failure != nil {
				out.Failures = append(out.Failures, failure)
				return nil
			}
			out.Responses = append(out.Responses, resp)
			if req.OnResponse != nil {
				req.OnResponse(resp)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type invokeResult struct {
	completion Completion
	err        error
}

func (d *Dispatcher) invoke(ctx context.Context, taskID, modelID, prompt string) (models.BackendResponse, *models.InvocationError) {
	start := d.now()
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res := d.call(callCtx, modelID, prompt)
	elapsed := d.now().Sub(start).Milliseconds()

	if res.err != nil {
		failure := &models.InvocationError{ModelID: modelID, ElapsedMs: elapsed, Err: res.err}
		d.log.Warn().
			Err(res.err).
			Str("task_id", taskID).
			Str("model", modelID).
			Int64("elapsed_ms", elapsed).
			Msg("backend invocation failed")
		return models.BackendResponse{}, failure
	}

	d.log.Debug().
		Str("task_id", taskID).
		Str("model", modelID).
		Int64("elapsed_ms", elapsed).
		Msg("backend responded")
	return models.BackendResponse{
		TaskID:    taskID,
		ModelID:   modelID,
		ModelName: d.names(modelID),
		Text:      res.completion.Text,
		ElapsedMs: elapsed,
		Usage:     res.completion.Usage,
	}, nil
}

// call races the backend against the deadline so a backend that ignores its
// context still times out.
func (d *Dispatcher) call(ctx context.Context, modelID, prompt string) invokeResult {
	if lim := d.limiter(modelID); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return invokeResult{err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- invokeResult{err: fmt.Errorf("backend panic: %v", p)}
			}
		}()
		c, err := d.backend.Invoke(ctx, modelID, prompt)
		done <- invokeResult{completion: c, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return invokeResult{err: fmt.Errorf("no response within %s: %w", d.timeout, ctx.Err())}
	}
}

func (d *Dispatcher) limiter(modelID string) *rate.Limiter {
	if d.ratePerSecond <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	lim, ok := d.limiters[modelID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(d.ratePerSecond), d.burst)
		d.limiters[modelID] = lim
	}
	return lim
}
