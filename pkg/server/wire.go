package server

import (
	"time"

	"github.com/pario-ai/chorus/pkg/models"
)

// The HTTP API speaks camelCase, matching its request bodies.

type cacheStatsJSON struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	CurrentSize int     `json:"currentSize"`
	HitRate     float64 `json:"hitRate"`
}

func toCacheStats(s models.CacheStats) cacheStatsJSON {
	return cacheStatsJSON(s)
}

type usageJSON struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type responseJSON struct {
	TaskID          string     `json:"taskId"`
	ModelID         string     `json:"modelId"`
	ModelName       string     `json:"modelName"`
	Text            string     `json:"text"`
	ElapsedMs       int64      `json:"elapsedMs"`
	Usage           *usageJSON `json:"usage,omitempty"`
	ServedFromCache bool       `json:"servedFromCache"`
}

func toResponse(r models.BackendResponse) responseJSON {
	out := responseJSON{
		TaskID:          r.TaskID,
		ModelID:         r.ModelID,
		ModelName:       r.ModelName,
		Text:            r.Text,
		ElapsedMs:       r.ElapsedMs,
		ServedFromCache: r.ServedFromCache,
	}
	if r.Usage != nil {
		u := usageJSON(*r.Usage)
		out.Usage = &u
	}
	return out
}

type resultJSON struct {
	TaskID          string         `json:"taskId"`
	Domain          models.Domain  `json:"domain"`
	OriginalPrompt  string         `json:"originalPrompt"`
	Responses       []responseJSON `json:"responses"`
	Summary         string         `json:"summary"`
	Consensus       string         `json:"consensus,omitempty"`
	Divergences     []string       `json:"divergences,omitempty"`
	GeneratedAt     time.Time      `json:"generatedAt"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
}

func toResult(r models.AggregatedResult) resultJSON {
	responses := make([]responseJSON, len(r.Responses))
	for i, resp := range r.Responses {
		responses[i] = toResponse(resp)
	}
	return resultJSON{
		TaskID:          r.TaskID,
		Domain:          r.Domain,
		OriginalPrompt:  r.OriginalPrompt,
		Responses:       responses,
		Summary:         r.Summary,
		Consensus:       r.Consensus,
		Divergences:     r.Divergences,
		GeneratedAt:     r.GeneratedAt,
		ExecutionTimeMs: r.ExecutionTimeMs,
	}
}

type executionJSON struct {
	TaskID         string            `json:"taskId"`
	Domain         models.Domain     `json:"domain"`
	OriginalPrompt string            `json:"originalPrompt"`
	SelectedModels []string          `json:"selectedModels"`
	CreatedAt      time.Time         `json:"createdAt"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func toHistory(ecs []models.ExecutionContext) []executionJSON {
	out := make([]executionJSON, len(ecs))
	for i, ec := range ecs {
		out[i] = executionJSON(ec)
	}
	return out
}

type modelJSON struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Type          models.ModelType    `json:"type"`
	Strengths     []string            `json:"strengths"`
	Capabilities  models.Capabilities `json:"capabilities"`
	CostPerUnit   float64             `json:"costPerUnit"`
	Provider      string              `json:"provider,omitempty"`
	UpstreamModel string              `json:"upstreamModel,omitempty"`
}

func toModel(p models.ModelProfile) modelJSON {
	return modelJSON(p)
}

func toModels(ps []models.ModelProfile) []modelJSON {
	out := make([]modelJSON, len(ps))
	for i, p := range ps {
		out[i] = toModel(p)
	}
	return out
}

type initEventJSON struct {
	Type        models.StreamEventType `json:"type"`
	TaskID      string                 `json:"taskId"`
	Domain      models.Domain          `json:"domain"`
	TotalModels int                    `json:"totalModels"`
	Models      []string               `json:"models"`
	CacheHit    bool                   `json:"cacheHit"`
	Timestamp   time.Time              `json:"timestamp"`
}

type responseEventJSON struct {
	Type            models.StreamEventType `json:"type"`
	TaskID          string                 `json:"taskId"`
	Model           string                 `json:"model"`
	ModelName       string                 `json:"modelName"`
	Response        string                 `json:"response"`
	ElapsedMs       int64                  `json:"elapsedMs"`
	ServedFromCache bool                   `json:"servedFromCache"`
	ProgressPercent int                    `json:"progressPercent"`
	Timestamp       time.Time              `json:"timestamp"`
}

type completeEventJSON struct {
	Type          models.StreamEventType `json:"type"`
	TaskID        string                 `json:"taskId"`
	Domain        models.Domain          `json:"domain"`
	ResponseCount int                    `json:"responseCount"`
	TotalTimeMs   int64                  `json:"totalTimeMs"`
	Summary       string                 `json:"summary"`
	CacheHit      bool                   `json:"cacheHit"`
	CacheStats    *cacheStatsJSON        `json:"cacheStats"`
	Timestamp     time.Time              `json:"timestamp"`
}

type errorEventJSON struct {
	Type      models.StreamEventType `json:"type"`
	TaskID    string                 `json:"taskId"`
	Error     string                 `json:"error"`
	Timestamp time.Time              `json:"timestamp"`
}

// toEvent shapes ev into the payload of its type.
func toEvent(ev models.StreamEvent) any {
	switch ev.Type {
	case models.StreamInit:
		return initEventJSON{
			Type:        ev.Type,
			TaskID:      ev.TaskID,
			Domain:      ev.Domain,
			TotalModels: ev.TotalModels,
			Models:      ev.Models,
			CacheHit:    ev.CacheHit,
			Timestamp:   ev.Timestamp,
		}
	case models.StreamResponse:
		out := responseEventJSON{
			Type:            ev.Type,
			TaskID:          ev.TaskID,
			Model:           ev.Model,
			ProgressPercent: ev.ProgressPercent,
			Timestamp:       ev.Timestamp,
		}
		if r := ev.Response; r != nil {
			out.ModelName = r.ModelName
			out.Response = r.Text
			out.ElapsedMs = r.ElapsedMs
			out.ServedFromCache = r.ServedFromCache
			if out.Model == "" {
				out.Model = r.ModelID
			}
		}
		return out
	case models.StreamComplete:
		out := completeEventJSON{
			Type:          ev.Type,
			TaskID:        ev.TaskID,
			Domain:        ev.Domain,
			ResponseCount: ev.ResponseCount,
			TotalTimeMs:   ev.TotalTimeMs,
			Summary:       ev.Summary,
			CacheHit:      ev.CacheHit,
			Timestamp:     ev.Timestamp,
		}
		if ev.CacheStats != nil {
			s := toCacheStats(*ev.CacheStats)
			out.CacheStats = &s
		}
		return out
	default:
		return errorEventJSON{
			Type:      ev.Type,
			TaskID:    ev.TaskID,
			Error:     ev.Error,
			Timestamp: ev.Timestamp,
		}
	}
}
