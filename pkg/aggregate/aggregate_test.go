package aggregate

import (
	"strings"
	"testing"

	"github.com/pario-ai/chorus/pkg/models"
	"github.com/stretchr/testify/assert"
)

func resp(id, text string, ms int64) models.BackendResponse {
	return models.BackendResponse{ModelID: id, ModelName: "Model " + id, Text: text, ElapsedMs: ms}
}

func TestSummarizeBranches(t *testing.T) {
	assert.Empty(t, Summarize(nil))

	one := resp("a", "only answer", 10)
	assert.Equal(t, "only answer", Summarize([]models.BackendResponse{one}))

	long := strings.Repeat("长", 250)
	out := Summarize([]models.BackendResponse{one, resp("b", long, 20)})
	assert.Contains(t, out, "(2 models)")
	assert.Contains(t, out, "### Model a\nonly answer")
	assert.Contains(t, out, "### Model b\n"+strings.Repeat("长", SummaryLimit)+"...")
	assert.NotContains(t, out, strings.Repeat("长", SummaryLimit+1))
}

func TestComparative(t *testing.T) {
	assert.Empty(t, Comparative(nil))

	out := Comparative([]models.BackendResponse{
		resp("a", strings.Repeat("x", 400), 1200),
		resp("b", "short", 800),
	})
	assert.Contains(t, out, "- Model a: 1200ms")
	assert.Contains(t, out, "- Model b: 800ms")
	assert.Contains(t, out, "### 1. Model a (1200ms)\n"+strings.Repeat("x", ComparativeLimit)+"...")
	assert.Contains(t, out, "### 2. Model b (800ms)\nshort\n")
}

func TestDetailedKeepsFullText(t *testing.T) {
	long := strings.Repeat("y", 1000)
	out := Detailed([]models.BackendResponse{resp("a", long, 1)})
	assert.Contains(t, out, long)
	assert.Empty(t, Detailed(nil))
}

func TestRenderAndParseStyle(t *testing.T) {
	rs := []models.BackendResponse{resp("a", "one", 1), resp("b", "two", 2)}
	assert.Equal(t, Summarize(rs), Render(ParseStyle("bogus"), rs))
	assert.Equal(t, Comparative(rs), Render(ParseStyle("Comparative"), rs))
	assert.Equal(t, Detailed(rs), Render(ParseStyle(" detailed "), rs))
}

func TestFindConsensusBranches(t *testing.T) {
	c, d := FindConsensus(nil)
	assert.Empty(t, c)
	assert.Empty(t, d)

	c, d = FindConsensus([]models.BackendResponse{resp("a", "x", 1)})
	assert.Empty(t, c)
	assert.Empty(t, d)

	c, d = FindConsensus([]models.BackendResponse{resp("a", "same length", 1), resp("b", "same length", 1)})
	assert.Contains(t, c, "2 models responded")
	assert.NotEmpty(t, d)
}

func TestFindConsensusFlagsOutliers(t *testing.T) {
	rs := []models.BackendResponse{
		resp("a", strings.Repeat("a", 100), 1),
		resp("b", strings.Repeat("b", 100), 1),
		resp("c", strings.Repeat("c", 10), 1),
	}
	_, d := FindConsensus(rs)
	// mean is 70; only c (10) deviates by more than half
	assert.Len(t, d, 1)
	assert.Contains(t, d[0], "Model c")
	assert.Contains(t, d[0], "shorter")
}

func TestFindConsensusStable(t *testing.T) {
	rs := []models.BackendResponse{resp("a", "alpha", 1), resp("b", "", 1)}
	c1, d1 := FindConsensus(rs)
	c2, d2 := FindConsensus(rs)
	assert.Equal(t, c1, c2)
	assert.Equal(t, d1, d2)
	assert.NotEmpty(t, d1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
	assert.Equal(t, "掉話...", Truncate("掉話原因", 2))
	assert.Empty(t, Truncate("abc", 0))
}
