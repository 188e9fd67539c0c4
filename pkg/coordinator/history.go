package coordinator

import (
	"maps"
	"slices"
	"sync"

	"github.com/pario-ai/chorus/pkg/models"
)

// DefaultHistoryCapacity bounds the execution history.
const DefaultHistoryCapacity = 1000

// history keeps the most recent execution contexts, oldest evicted first.
type history struct {
	mu       sync.Mutex
	capacity int
	order    []string
	byID     map[string]models.ExecutionContext
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &history{
		capacity: capacity,
		byID:     make(map[string]models.ExecutionContext),
	}
}

func (h *history) add(ec models.ExecutionContext) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byID[ec.TaskID]; !ok {
		h.order = append(h.order, ec.TaskID)
	}
	h.byID[ec.TaskID] = ec
	for len(h.order) > h.capacity {
		delete(h.byID, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *history) setModels(taskID string, ids []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ec, ok := h.byID[taskID]
	if !ok {
		return
	}
	ec.SelectedModels = slices.Clone(ids)
	h.byID[taskID] = ec
}

func (h *history) get(taskID string) (models.ExecutionContext, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ec, ok := h.byID[taskID]
	return clone(ec), ok
}

func (h *history) all() []models.ExecutionContext {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.ExecutionContext, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, clone(h.byID[id]))
	}
	return out
}

func clone(ec models.ExecutionContext) models.ExecutionContext {
	ec.SelectedModels = slices.Clone(ec.SelectedModels)
	ec.Metadata = maps.Clone(ec.Metadata)
	return ec
}
