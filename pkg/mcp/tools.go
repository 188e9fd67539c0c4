package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pario-ai/chorus/pkg/aggregate"
	"github.com/pario-ai/chorus/pkg/models"
)

// Coordinator is the subset of the coordinator the tools drive.
type Coordinator interface {
	Call(ctx context.Context, opts models.CallOptions) (models.CallResult, error)
	Route(prompt string, domain models.Domain, preferred []string, count int) models.RoutingDecision
	AvailableModels() []models.ModelProfile
	CacheStats() models.CacheStats
	ClearCache(ctx context.Context)
	ExecutionHistory(taskID string) ([]models.ExecutionContext, error)
	Seed(ctx context.Context, domain models.Domain, prompt string, responses []models.BackendResponse, ttl time.Duration) (string, error)
}

// Tools executes the agent tools. It backs both the stdio server and the
// HTTP tool-call endpoint.
type Tools struct {
	coord Coordinator
	rules map[models.Domain][]string
}

// NewTools creates a Tools executor. rules is exposed as the domain-routing
// resource.
func NewTools(coord Coordinator, rules map[models.Domain][]string) *Tools {
	return &Tools{coord: coord, rules: rules}
}

// Tool argument structs.

type agentCallArgs struct {
	Domain            string            `json:"domain"`
	UserInput         string            `json:"user_input"`
	PreferredModels   []string          `json:"preferred_models"`
	ModelCount        int               `json:"model_count"`
	ParallelExecution *bool             `json:"parallel_execution"`
	UseCache          *bool             `json:"use_cache"`
	Style             string            `json:"style"`
	Metadata          map[string]string `json:"metadata"`
}

func (a agentCallArgs) validate() error {
	return a.options().Validate()
}

func (a agentCallArgs) options() models.CallOptions {
	return models.CallOptions{
		Domain:            models.ParseDomain(a.Domain),
		UserInput:         a.UserInput,
		PreferredModels:   a.PreferredModels,
		ModelCount:        a.ModelCount,
		ParallelExecution: a.ParallelExecution,
		UseCache:          a.UseCache,
		Metadata:          a.Metadata,
	}
}

type routeArgs struct {
	Domain          string   `json:"domain"`
	Prompt          string   `json:"prompt"`
	PreferredModels []string `json:"preferred_models"`
	ModelCount      int      `json:"model_count"`
}

func (a routeArgs) validate() error {
	return models.CallOptions{Domain: models.Domain(a.Domain), UserInput: a.Prompt, ModelCount: a.ModelCount}.Validate()
}

type aggregateArgs struct {
	Responses []models.BackendResponse `json:"responses"`
	Style     string                   `json:"style"`
}

func (a aggregateArgs) validate() error {
	if len(a.Responses) == 0 {
		return errors.New("responses must not be empty")
	}
	return nil
}

type cacheResultArgs struct {
	Domain     string                   `json:"domain"`
	Prompt     string                   `json:"prompt"`
	Responses  []models.BackendResponse `json:"responses"`
	TTLSeconds int                      `json:"ttl_seconds"`
}

func (a cacheResultArgs) validate() error {
	if a.TTLSeconds < 0 {
		return errors.New("ttl_seconds must not be negative")
	}
	return nil
}

type historyArgs struct {
	TaskID string `json:"task_id"`
}

func (historyArgs) validate() error { return nil }

type noArgs struct{}

func (noArgs) validate() error { return nil }

// Tool results.

// AgentCallOutput is the result of agent-call.
type AgentCallOutput struct {
	TaskID     string                  `json:"task_id"`
	CacheHit   bool                    `json:"cache_hit"`
	Style      aggregate.Style         `json:"style"`
	Output     string                  `json:"output"`
	Result     models.AggregatedResult `json:"result"`
	CacheStats models.CacheStats       `json:"cache_stats"`
}

// AggregateOutput is the result of aggregate-responses.
type AggregateOutput struct {
	Style       aggregate.Style `json:"style"`
	Output      string          `json:"output"`
	Consensus   string          `json:"consensus"`
	Divergences []string        `json:"divergences"`
}

// CacheResultOutput is the result of cache-result.
type CacheResultOutput struct {
	Key        string `json:"key"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// ClearCacheOutput is the result of clear-cache.
type ClearCacheOutput struct {
	Cleared bool `json:"cleared"`
}

type validator interface {
	validate() error
}

// decode unmarshals raw into args, rejecting unknown fields, then validates.
func decode[T validator](raw json.RawMessage) (T, error) {
	var args T
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&args); err != nil {
			return args, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
		}
	}
	if err := args.validate(); err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			return args, err
		}
		return args, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	return args, nil
}

// toolHandler handles a tool call.
type toolHandler func(ctx context.Context, t *Tools, args json.RawMessage) (any, error)

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"agent-call":          handleAgentCall,
	"route-to-model":      handleRoute,
	"aggregate-responses": handleAggregate,
	"cache-result":        handleCacheResult,
	"cache-stats":         handleCacheStats,
	"clear-cache":         handleClearCache,
	"execution-history":   handleHistory,
	"list-models":         handleListModels,
}

var domainSchema = map[string]any{
	"type":        "string",
	"description": "Technical domain (" + knownDomains() + "); other values route across every model",
}

func knownDomains() string {
	names := make([]string, len(models.KnownDomains))
	for i, d := range models.KnownDomains {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}

var responsesSchema = map[string]any{
	"type":        "array",
	"description": "Backend responses with model_id, model_name, text and elapsed_ms",
	"items":       map[string]any{"type": "object"},
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "agent-call",
		Description: "Send a prompt to several AI models in parallel and return the aggregated answer. Identical requests are served from cache.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"domain", "user_input"},
			"properties": map[string]any{
				"domain":             domainSchema,
				"user_input":         map[string]any{"type": "string", "description": "The question or task"},
				"preferred_models":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Model ids to use instead of the domain rule (optional)"},
				"model_count":        map[string]any{"type": "integer", "description": "Number of models to call (optional, default 3)"},
				"parallel_execution": map[string]any{"type": "boolean", "description": "Call models concurrently (optional, default true)"},
				"use_cache":          map[string]any{"type": "boolean", "description": "Read and write the result cache (optional, default true)"},
				"style":              map[string]any{"type": "string", "enum": []string{"summary", "detailed", "comparative"}, "description": "Output style (optional)"},
			},
		},
	},
	{
		Name:        "route-to-model",
		Description: "Show which models would be selected for a prompt without calling them.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"domain", "prompt"},
			"properties": map[string]any{
				"domain":           domainSchema,
				"prompt":           map[string]any{"type": "string"},
				"preferred_models": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"model_count":      map[string]any{"type": "integer"},
			},
		},
	},
	{
		Name:        "aggregate-responses",
		Description: "Merge a set of model responses into one report.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"responses"},
			"properties": map[string]any{
				"responses": responsesSchema,
				"style":     map[string]any{"type": "string", "enum": []string{"summary", "detailed", "comparative"}},
			},
		},
	},
	{
		Name:        "cache-result",
		Description: "Store externally produced responses as the cached answer for a domain and prompt.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"domain", "prompt", "responses"},
			"properties": map[string]any{
				"domain":      domainSchema,
				"prompt":      map[string]any{"type": "string"},
				"responses":   responsesSchema,
				"ttl_seconds": map[string]any{"type": "integer", "description": "Lifetime in seconds (optional, default one hour)"},
			},
		},
	},
	{
		Name:        "cache-stats",
		Description: "Show result cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "clear-cache",
		Description: "Remove every cached result and reset cache statistics.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "execution-history",
		Description: "Show recent coordinated calls, or one call by task id.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{"type": "string", "description": "Task id (optional, omit for all)"},
			},
		},
	},
	{
		Name:        "list-models",
		Description: "List the registered AI models and their capability profiles.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
}

// Definitions returns the tool definitions in registration order.
func (t *Tools) Definitions() []ToolDefinition {
	return slices.Clone(allTools)
}

// Call runs the named tool. Unknown names fail with models.ErrUnknownTool
// and malformed arguments with models.ErrInvalidRequest.
func (t *Tools) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	handler, ok := toolHandlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTool, name)
	}
	return handler(ctx, t, args)
}

func handleAgentCall(ctx context.Context, t *Tools, raw json.RawMessage) (any, error) {
	args, err := decode[agentCallArgs](raw)
	if err != nil {
		return nil, err
	}
	res, err := t.coord.Call(ctx, args.options())
	if err != nil {
		return nil, err
	}
	style := aggregate.ParseStyle(args.Style)
	return AgentCallOutput{
		TaskID:     res.Result.TaskID,
		CacheHit:   res.CacheHit,
		Style:      style,
		Output:     aggregate.Render(style, res.Result.Responses),
		Result:     res.Result,
		CacheStats: res.CacheStats,
	}, nil
}

func handleRoute(_ context.Context, t *Tools, raw json.RawMessage) (any, error) {
	args, err := decode[routeArgs](raw)
	if err != nil {
		return nil, err
	}
	return t.coord.Route(args.Prompt, models.ParseDomain(args.Domain), args.PreferredModels, args.ModelCount), nil
}

func handleAggregate(_ context.Context, _ *Tools, raw json.RawMessage) (any, error) {
	args, err := decode[aggregateArgs](raw)
	if err != nil {
		return nil, err
	}
	style := aggregate.ParseStyle(args.Style)
	consensus, divergences := aggregate.FindConsensus(args.Responses)
	return AggregateOutput{
		Style:       style,
		Output:      aggregate.Render(style, args.Responses),
		Consensus:   consensus,
		Divergences: divergences,
	}, nil
}

func handleCacheResult(ctx context.Context, t *Tools, raw json.RawMessage) (any, error) {
	args, err := decode[cacheResultArgs](raw)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(args.TTLSeconds) * time.Second
	key, err := t.coord.Seed(ctx, models.Domain(args.Domain), args.Prompt, args.Responses, ttl)
	if err != nil {
		return nil, err
	}
	return CacheResultOutput{Key: key, TTLSeconds: args.TTLSeconds}, nil
}

func handleCacheStats(_ context.Context, t *Tools, raw json.RawMessage) (any, error) {
	if _, err := decode[noArgs](raw); err != nil {
		return nil, err
	}
	return t.coord.CacheStats(), nil
}

func handleClearCache(ctx context.Context, t *Tools, raw json.RawMessage) (any, error) {
	if _, err := decode[noArgs](raw); err != nil {
		return nil, err
	}
	t.coord.ClearCache(ctx)
	return ClearCacheOutput{Cleared: true}, nil
}

func handleHistory(_ context.Context, t *Tools, raw json.RawMessage) (any, error) {
	args, err := decode[historyArgs](raw)
	if err != nil {
		return nil, err
	}
	return t.coord.ExecutionHistory(strings.TrimSpace(args.TaskID))
}

func handleListModels(_ context.Context, t *Tools, raw json.RawMessage) (any, error) {
	if _, err := decode[noArgs](raw); err != nil {
		return nil, err
	}
	return t.coord.AvailableModels(), nil
}
