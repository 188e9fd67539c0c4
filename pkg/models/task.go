package models

import "time"

// ExecutionContext records one coordinated call.
type ExecutionContext struct {
	TaskID         string            `json:"task_id"`
	Domain         Domain            `json:"domain"`
	OriginalPrompt string            `json:"original_prompt"`
	SelectedModels []string          `json:"selected_models,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// BackendResponse is the output of one successful backend invocation.
type BackendResponse struct {
	TaskID          string `json:"task_id"`
	ModelID         string `json:"model_id"`
	ModelName       string `json:"model_name"`
	Text            string `json:"text"`
	ElapsedMs       int64  `json:"elapsed_ms"`
	Usage           *Usage `json:"usage,omitempty"`
	ServedFromCache bool   `json:"served_from_cache"`
}

// AggregatedResult is the full outcome of a coordinated call.
type AggregatedResult struct {
	TaskID          string            `json:"task_id"`
	Domain          Domain            `json:"domain"`
	OriginalPrompt  string            `json:"original_prompt"`
	Responses       []BackendResponse `json:"responses"`
	Summary         string            `json:"summary"`
	Consensus       string            `json:"consensus,omitempty"`
	Divergences     []string          `json:"divergences,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
}

// Clone returns a deep copy so callers never alias cached slices.
func (r AggregatedResult) Clone() AggregatedResult {
	out := r
	if r.Responses != nil {
		out.Responses = make([]BackendResponse, len(r.Responses))
		for i, resp := range r.Responses {
			if resp.Usage != nil {
				u := *resp.Usage
				resp.Usage = &u
			}
			out.Responses[i] = resp
		}
	}
	if r.Divergences != nil {
		out.Divergences = append([]string(nil), r.Divergences...)
	}
	return out
}
