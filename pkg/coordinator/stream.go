package coordinator

import (
	"context"
	"slices"

	"github.com/pario-ai/chorus/pkg/models"
)

// StreamCall behaves like Call but reports progress as events. Validation
// and routing happen before it returns; the channel then yields one init
// event, one response event per success and exactly one terminal complete
// or error event, and is closed.
func (c *Coordinator) StreamCall(ctx context.Context, opts models.CallOptions) (<-chan models.StreamEvent, error) {
	t, err := c.begin(opts)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	if cached, ok := c.lookup(ctx, t); ok {
		events := make(chan models.StreamEvent, len(cached.Responses)+2)
		go c.replay(t, cached, events)
		return events, nil
	}

	decision := c.route(t)
	selected := decision.SelectedModelIDs
	events := make(chan models.StreamEvent, len(selected)+2)
	events <- c.initEvent(t, selected, false)

	go func() {
		defer close(events)

		total := len(selected)
		count := 0
		onResponse := func(r models.BackendResponse) {
			count++
			resp := r
			events <- models.StreamEvent{
				Type:            models.StreamResponse,
				TaskID:          t.ec.TaskID,
				Model:           resp.ModelID,
				Response:        &resp,
				ProgressPercent: progress(count, total),
				Timestamp:       c.now(),
			}
		}

		result, err := c.execute(ctx, t, selected, onResponse)
		if err != nil {
			c.log.Error().Err(err).Str("task_id", t.ec.TaskID).Msg("stream failed")
			events <- models.StreamEvent{
				Type:      models.StreamError,
				TaskID:    t.ec.TaskID,
				Error:     err.Error(),
				Timestamp: c.now(),
			}
			return
		}
		c.store(ctx, t, result)
		result.ExecutionTimeMs = c.since(t.start)
		c.finished(t, cacheLabel(t), len(result.Responses))
		events <- c.completeEvent(t, result, false)
	}()
	return events, nil
}

func (c *Coordinator) replay(t *task, result models.AggregatedResult, events chan<- models.StreamEvent) {
	defer close(events)

	ids := make([]string, len(result.Responses))
	for i, r := range result.Responses {
		ids[i] = r.ModelID
	}
	events <- c.initEvent(t, ids, true)
	for i := range result.Responses {
		resp := result.Responses[i]
		events <- models.StreamEvent{
			Type:            models.StreamResponse,
			TaskID:          t.ec.TaskID,
			Model:           resp.ModelID,
			Response:        &resp,
			ProgressPercent: progress(i+1, len(ids)),
			Timestamp:       c.now(),
		}
	}
	result.ExecutionTimeMs = c.since(t.start)
	c.finished(t, "hit", len(result.Responses))
	events <- c.completeEvent(t, result, true)
}

func (c *Coordinator) initEvent(t *task, selected []string, hit bool) models.StreamEvent {
	return models.StreamEvent{
		Type:        models.StreamInit,
		TaskID:      t.ec.TaskID,
		Domain:      t.ec.Domain,
		TotalModels: len(selected),
		Models:      slices.Clone(selected),
		CacheHit:    hit,
		Timestamp:   c.now(),
	}
}

func (c *Coordinator) completeEvent(t *task, result models.AggregatedResult, hit bool) models.StreamEvent {
	stats := c.cache.Stats()
	return models.StreamEvent{
		Type:          models.StreamComplete,
		TaskID:        t.ec.TaskID,
		Domain:        t.ec.Domain,
		ResponseCount: len(result.Responses),
		TotalTimeMs:   result.ExecutionTimeMs,
		Summary:       result.Summary,
		CacheHit:      hit,
		CacheStats:    &stats,
		Timestamp:     c.now(),
	}
}

func progress(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
