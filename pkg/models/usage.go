package models

import "time"

// Usage represents token usage reported by a backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord tracks a single successful backend invocation.
type UsageRecord struct {
	ID               int64     `json:"id"`
	TaskID           string    `json:"task_id"`
	Domain           Domain    `json:"domain"`
	Model            string    `json:"model"`
	ElapsedMs        int64     `json:"elapsed_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates invocations per model.
type UsageSummary struct {
	Model           string  `json:"model"`
	RequestCount    int     `json:"request_count"`
	AvgElapsedMs    float64 `json:"avg_elapsed_ms"`
	TotalPrompt     int     `json:"total_prompt"`
	TotalCompletion int     `json:"total_completion"`
	TotalTokens     int     `json:"total_tokens"`
}
