package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pario-ai/chorus/pkg/models"
)

// formatResult renders a tool result as text for MCP clients. Types without
// a dedicated layout fall back to indented JSON.
func formatResult(v any) string {
	switch r := v.(type) {
	case AgentCallOutput:
		return formatAgentCall(r)
	case AggregateOutput:
		return formatAggregate(r)
	case models.RoutingDecision:
		return formatRouting(r)
	case models.CacheStats:
		return formatCacheStats(r)
	case []models.ModelProfile:
		return formatModels(r)
	case []models.ExecutionContext:
		return formatHistory(r)
	case CacheResultOutput:
		return fmt.Sprintf("Cached under %s", r.Key)
	case ClearCacheOutput:
		return "Cache cleared."
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func formatAgentCall(r AgentCallOutput) string {
	var b strings.Builder
	source := "live"
	if r.CacheHit {
		source = "cache"
	}
	fmt.Fprintf(&b, "Task %s (%s, %d models, %dms)\n\n",
		r.TaskID, source, len(r.Result.Responses), r.Result.ExecutionTimeMs)
	b.WriteString(r.Output)
	if r.Result.Consensus != "" {
		fmt.Fprintf(&b, "\n\nConsensus: %s\n", r.Result.Consensus)
	}
	for _, d := range r.Result.Divergences {
		fmt.Fprintf(&b, "  - %s\n", d)
	}
	return b.String()
}

func formatAggregate(r AggregateOutput) string {
	var b strings.Builder
	b.WriteString(r.Output)
	if r.Consensus != "" {
		fmt.Fprintf(&b, "\n\nConsensus: %s\n", r.Consensus)
	}
	for _, d := range r.Divergences {
		fmt.Fprintf(&b, "  - %s\n", d)
	}
	return b.String()
}

func formatRouting(d models.RoutingDecision) string {
	return fmt.Sprintf("Selected: %s\nConfidence: %.2f\nReason: %s\n",
		strings.Join(d.SelectedModelIDs, ", "), d.Confidence, d.Reason)
}

// formatModels formats model profiles as a text table.
func formatModels(profiles []models.ModelProfile) string {
	if len(profiles) == 0 {
		return "No models registered."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-22s %-10s %5s %5s %5s %5s  %s\n",
		"ID", "Name", "Provider", "Rsn", "Cre", "Acc", "Spd", "Strengths")
	b.WriteString(strings.Repeat("-", 100) + "\n")
	for _, p := range profiles {
		c := p.Capabilities
		fmt.Fprintf(&b, "%-20s %-22s %-10s %5d %5d %5d %5d  %s\n",
			p.ID, p.Name, p.Provider, c.Reasoning, c.Creativity, c.Accuracy, c.Speed,
			strings.Join(p.Strengths, ", "))
	}
	return b.String()
}

// formatHistory formats execution contexts as a text table.
func formatHistory(history []models.ExecutionContext) string {
	if len(history) == 0 {
		return "No executions recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-12s %-20s %-40s %s\n", "Task ID", "Domain", "Created", "Models", "Prompt")
	b.WriteString(strings.Repeat("-", 130) + "\n")
	for _, ec := range history {
		prompt := []rune(ec.OriginalPrompt)
		if len(prompt) > 30 {
			prompt = append(prompt[:30], []rune("...")...)
		}
		fmt.Fprintf(&b, "%-38s %-12s %-20s %-40s %s\n",
			ec.TaskID, ec.Domain,
			ec.CreatedAt.Format("2006-01-02 15:04:05"),
			strings.Join(ec.SelectedModels, ","),
			string(prompt))
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.CurrentSize, stats.Hits, stats.Misses, stats.HitRate*100)
}
