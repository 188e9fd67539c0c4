package models

import (
	"fmt"
	"strings"
	"time"
)

// CallOptions is a coordinated call request.
type CallOptions struct {
	Domain            Domain            `json:"domain"`
	UserInput         string            `json:"user_input"`
	PreferredModels   []string          `json:"preferred_models,omitempty"`
	ModelCount        int               `json:"model_count,omitempty"`
	ParallelExecution *bool             `json:"parallel_execution,omitempty"`
	UseCache          *bool             `json:"use_cache,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Validate rejects requests that cannot be coordinated.
func (o CallOptions) Validate() error {
	if strings.TrimSpace(string(o.Domain)) == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(o.UserInput) == "" {
		return fmt.Errorf("%w: user input is required", ErrInvalidRequest)
	}
	if o.ModelCount < 0 {
		return fmt.Errorf("%w: model count must not be negative", ErrInvalidRequest)
	}
	return nil
}

// CallResult is returned by a coordinated call.
type CallResult struct {
	Result     AggregatedResult `json:"result"`
	CacheStats CacheStats       `json:"cache_stats"`
	CacheHit   bool             `json:"cache_hit"`
}

// StreamEventType discriminates streaming events.
type StreamEventType string

const (
	StreamInit     StreamEventType = "init"
	StreamResponse StreamEventType = "response"
	StreamComplete StreamEventType = "complete"
	StreamError    StreamEventType = "error"
)

// StreamEvent is one event of a streaming call. Exactly one complete or
// error event terminates every stream.
type StreamEvent struct {
	Type            StreamEventType  `json:"type"`
	TaskID          string           `json:"taskId,omitempty"`
	Domain          Domain           `json:"domain,omitempty"`
	TotalModels     int              `json:"totalModels,omitempty"`
	Models          []string         `json:"models,omitempty"`
	Model           string           `json:"model,omitempty"`
	Response        *BackendResponse `json:"response,omitempty"`
	ProgressPercent int              `json:"progressPercent,omitempty"`
	ResponseCount   int              `json:"responseCount"`
	TotalTimeMs     int64            `json:"totalTimeMs"`
	Summary         string           `json:"summary,omitempty"`
	CacheHit        bool             `json:"cacheHit,omitempty"`
	CacheStats      *CacheStats      `json:"cacheStats,omitempty"`
	Error           string           `json:"error,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}
