// Package aggregate reduces backend responses into a single result. Every
// function here is pure.
package aggregate

import (
	"fmt"
	"math"
	"strings"

	"github.com/pario-ai/chorus/pkg/models"
)

// Truncation limits, in runes.
const (
	SummaryLimit     = 200
	ComparativeLimit = 300
)

// Style selects a rendering.
type Style string

const (
	StyleSummary     Style = "summary"
	StyleDetailed    Style = "detailed"
	StyleComparative Style = "comparative"
)

// ParseStyle returns the style named s, defaulting to summary.
func ParseStyle(s string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleDetailed:
		return StyleDetailed
	case StyleComparative:
		return StyleComparative
	default:
		return StyleSummary
	}
}

// Render formats responses in the given style.
func Render(style Style, responses []models.BackendResponse) string {
	switch style {
	case StyleDetailed:
		return Detailed(responses)
	case StyleComparative:
		return Comparative(responses)
	default:
		return Summarize(responses)
	}
}

// Summarize returns "" for no responses, the text itself for one, and a
// labeled digest of every response otherwise.
func Summarize(responses []models.BackendResponse) string {
	switch len(responses) {
	case 0:
		return ""
	case 1:
		return responses[0].Text
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Combined analysis (%d models)\n", len(responses))
	for _, r := range responses {
		fmt.Fprintf(&b, "\n### %s\n%s\n", label(r), Truncate(r.Text, SummaryLimit))
	}
	return b.String()
}

// Comparative lays responses out side by side with their timings.
func Comparative(responses []models.BackendResponse) string {
	if len(responses) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Comparative analysis (%d models)\n\n", len(responses))
	b.WriteString("Participants:\n")
	for _, r := range responses {
		fmt.Fprintf(&b, "- %s: %dms\n", label(r), r.ElapsedMs)
	}
	for i, r := range responses {
		fmt.Fprintf(&b, "\n### %d. %s (%dms)\n%s\n", i+1, label(r), r.ElapsedMs, Truncate(r.Text, ComparativeLimit))
	}
	return b.String()
}

// Detailed includes every response in full.
func Detailed(responses []models.BackendResponse) string {
	if len(responses) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Detailed analysis (%d models)\n", len(responses))
	for _, r := range responses {
		fmt.Fprintf(&b, "\n### %s\n%s\n", label(r), r.Text)
	}
	return b.String()
}

// FindConsensus returns a consensus note and divergence notes when at least
// two responses are present, and empty values otherwise. It compares response
// lengths only; it does not look at meaning.
func FindConsensus(responses []models.BackendResponse) (string, []string) {
	if len(responses) < 2 {
		return "", nil
	}

	names := make([]string, len(responses))
	lengths := make([]int, len(responses))
	total := 0
	for i, r := range responses {
		names[i] = label(r)
		lengths[i] = len([]rune(r.Text))
		total += lengths[i]
	}
	consensus := fmt.Sprintf("%d models responded (%s); all addressed the request.",
		len(responses), strings.Join(names, ", "))

	mean := float64(total) / float64(len(responses))
	var divergences []string
	for i, n := range lengths {
		if mean == 0 || math.Abs(float64(n)-mean) <= mean/2 {
			continue
		}
		direction := "longer"
		if float64(n) < mean {
			direction = "shorter"
		}
		divergences = append(divergences, fmt.Sprintf("%s answered at noticeably %s length (%d chars, average %.0f).",
			names[i], direction, n, mean))
	}
	if len(divergences) == 0 {
		divergences = []string{"No significant divergence in response depth across models."}
	}
	return consensus, divergences
}

// Truncate cuts s to at most limit runes, appending "..." when it cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

func label(r models.BackendResponse) string {
	if r.ModelName != "" {
		return r.ModelName
	}
	return r.ModelID
}
