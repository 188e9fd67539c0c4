package router

import (
	"testing"

	"github.com/pario-ai/chorus/pkg/config"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gpt        = config.ModelGPT4oMini
	gemini     = config.ModelGemini25Flash
	claude     = config.ModelClaude35Sonnet
	perplexity = config.ModelPerplexityPro
)

func newTestRouter(t *testing.T, opts ...Option) *Router {
	t.Helper()
	r, err := New(config.Default(), opts...)
	require.NoError(t, err)
	return r
}

func TestRouteScenarioMobile(t *testing.T) {
	r := newTestRouter(t)
	d := r.Route("排查基地台掉話原因", models.DomainMobile, nil, 2)

	// every MOBILE candidate scores 30 on reasoning, so rule order wins
	assert.Equal(t, []string{gemini, gpt}, d.SelectedModelIDs)
	assert.Contains(t, d.Reason, "MOBILE routing rule")
	assert.Contains(t, d.Reason, "reasoning")
}

func TestRouteScoring(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		domain models.Domain
		count  int
		want   []string
	}{
		{"code favours code-generation", "写一个排序算法的代码", models.DomainDev, 3, []string{gpt, claude, gemini}},
		{"research favours web-search", "最新漏洞研究", models.DomainSecurity, 3, []string{perplexity, claude, gpt}},
		{"accuracy threshold above 90", "请给出详细方案", models.DomainMobile, 3, []string{gpt, claude, gemini}},
		{"multimodal bonus", "分析这张图", models.DomainFixed, 3, []string{gemini, claude, gpt}},
		{"english keywords", "Write a quick script", models.DomainFixed, 1, []string{gpt}},
		{"no features keeps rule order", "你好", models.DomainSecurity, 3, []string{claude, gpt, perplexity}},
	}
	r := newTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Route(tt.prompt, tt.domain, nil, tt.count)
			assert.Equal(t, tt.want, d.SelectedModelIDs)
		})
	}
}

func TestRouteDeterministic(t *testing.T) {
	r := newTestRouter(t)
	first := r.Route("设计一个创新的网络架构", models.DomainDatacenter, nil, 2)
	for range 50 {
		d := r.Route("设计一个创新的网络架构", models.DomainDatacenter, nil, 2)
		assert.Equal(t, first.SelectedModelIDs, d.SelectedModelIDs)
	}
}

func TestRouteConfidence(t *testing.T) {
	r := newTestRouter(t, WithJitter(func() float64 { return 0.5 }))
	d := r.Route("x", models.DomainDev, nil, 1)
	assert.InDelta(t, 0.9, d.Confidence, 1e-9)

	r = newTestRouter(t)
	for range 100 {
		c := r.Route("x", models.DomainDev, nil, 1).Confidence
		assert.GreaterOrEqual(t, c, 0.85)
		assert.Less(t, c, 0.95)
	}
}

func TestRouteCandidatePool(t *testing.T) {
	r := newTestRouter(t)

	t.Run("explicit preference filtered to known ids", func(t *testing.T) {
		d := r.Route("你好", models.DomainMobile, []string{"ghost", perplexity, claude, perplexity}, 5)
		assert.Equal(t, []string{perplexity, claude}, d.SelectedModelIDs)
		assert.Contains(t, d.Reason, "explicit preference")
	})

	t.Run("all-unknown preference falls back to domain rule", func(t *testing.T) {
		d := r.Route("你好", models.DomainMobile, []string{"ghost"}, 3)
		assert.Equal(t, []string{gemini, gpt, claude}, d.SelectedModelIDs)
	})

	t.Run("unknown domain uses every model", func(t *testing.T) {
		d := r.Route("你好", "SATELLITE", nil, 10)
		assert.Equal(t, []string{gpt, gemini, claude, perplexity}, d.SelectedModelIDs)
		assert.Contains(t, d.Reason, "all registered models")
	})

	t.Run("non-positive count selects whole pool", func(t *testing.T) {
		d := r.Route("你好", models.DomainSecurity, nil, 0)
		assert.Len(t, d.SelectedModelIDs, 3)
	})
}

func TestModels(t *testing.T) {
	r := newTestRouter(t)
	ms := r.Models()
	require.Len(t, ms, 4)
	assert.Equal(t, gpt, ms[0].ID)
	assert.Equal(t, "Perplexity AI Pro", ms[3].Name)

	// callers cannot mutate the registry
	ms[0].Strengths[0] = "mutated"
	again, err := r.Model(gpt)
	require.NoError(t, err)
	assert.Equal(t, "code-generation", again.Strengths[0])

	_, err = r.Model("ghost")
	assert.ErrorIs(t, err, models.ErrUnknownModel)
}

func TestRules(t *testing.T) {
	r := newTestRouter(t)
	rules := r.Rules()
	assert.Len(t, rules, len(config.DefaultRules()))
	assert.Equal(t, []string{gemini, gpt, claude}, rules[models.DomainMobile])

	rules[models.DomainMobile][0] = "mutated"
	ids, ok := r.Rule(models.DomainMobile)
	require.True(t, ok)
	assert.Equal(t, gemini, ids[0])
}

func TestResolve(t *testing.T) {
	r := newTestRouter(t)

	target, err := r.Resolve(claude)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", target.Provider.Name)
	assert.Equal(t, "claude-3-5-sonnet-latest", target.Model)

	_, err = r.Resolve("ghost")
	assert.ErrorIs(t, err, models.ErrUnknownModel)

	cfg := config.Default()
	cfg.Providers = nil
	r, err = New(cfg)
	require.NoError(t, err)
	_, err = r.Resolve(gpt)
	assert.ErrorContains(t, err, "not configured")
}

func TestNewRejectsDuplicates(t *testing.T) {
	cfg := config.Default()
	cfg.Models = append(cfg.Models, cfg.Models[0])
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	f := Analyze("請用 Python 腳本快速比較兩個影片")
	assert.True(t, f.Reasoning)
	assert.True(t, f.Code)
	assert.True(t, f.Speed)
	assert.True(t, f.Multimodal)
	assert.False(t, f.Research)
	assert.Equal(t, []string{"reasoning", "speed", "code", "multimodal"}, f.Names())

	assert.Equal(t, Features{}, Analyze("hello there"))
}

func TestScore(t *testing.T) {
	all := Features{Reasoning: true, Creativity: true, Accuracy: true, Speed: true, Code: true, Research: true, Multimodal: true}
	profiles := config.DefaultModels()
	// gpt: 30+20+25+15+20
	assert.Equal(t, 110, Score(profiles[0], all))
	// perplexity: reasoning 85 and speed 85 are not above the thresholds
	assert.Equal(t, 15, Score(profiles[3], all))
	assert.Zero(t, Score(profiles[0], Features{}))
}
