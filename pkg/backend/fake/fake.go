// Package fake provides an in-process backend with canned answers and
// seeded latency, used by tests and the --fake demo mode.
package fake

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pario-ai/chorus/pkg/dispatch"
	"github.com/pario-ai/chorus/pkg/models"
)

var _ dispatch.Backend = (*Backend)(nil)

// Call records one invocation.
type Call struct {
	ModelID string
	Prompt  string
}

// Backend is a deterministic stand-in for real model providers. It is safe
// for concurrent use.
type Backend struct {
	mu         sync.Mutex
	rng        *rand.Rand
	minLatency time.Duration
	maxLatency time.Duration
	latencies  map[string]time.Duration
	failures   map[string]error
	hangs      map[string]bool
	texts      map[string]string
	calls      []Call
}

// Option configures a Backend.
type Option func(*Backend)

// WithSeed seeds the latency generator.
func WithSeed(seed uint64) Option {
	return func(b *Backend) { b.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLatency draws each call's latency uniformly from [lo, hi).
func WithLatency(lo, hi time.Duration) Option {
	return func(b *Backend) { b.minLatency, b.maxLatency = lo, hi }
}

// WithModelLatency fixes the latency of one model, overriding WithLatency.
func WithModelLatency(modelID string, d time.Duration) Option {
	return func(b *Backend) { b.latencies[modelID] = d }
}

// WithFailure makes every call to modelID fail with err.
func WithFailure(modelID string, err error) Option {
	return func(b *Backend) { b.failures[modelID] = err }
}

// WithHang makes calls to modelID block until their context is done.
func WithHang(modelID string) Option {
	return func(b *Backend) { b.hangs[modelID] = true }
}

// WithText fixes the answer of modelID.
func WithText(modelID, text string) Option {
	return func(b *Backend) { b.texts[modelID] = text }
}

// New creates a Backend with no latency unless configured.
func New(opts ...Option) *Backend {
	b := &Backend{
		rng:       rand.New(rand.NewPCG(1, 2)),
		latencies: make(map[string]time.Duration),
		failures:  make(map[string]error),
		hangs:     make(map[string]bool),
		texts:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Demo returns a backend with the 500-1500ms latency of a hosted model.
func Demo() *Backend {
	return New(WithSeed(uint64(time.Now().UnixNano())), WithLatency(500*time.Millisecond, 1500*time.Millisecond))
}

// Invoke implements dispatch.Backend.
func (b *Backend) Invoke(ctx context.Context, modelID, prompt string) (dispatch.Completion, error) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{ModelID: modelID, Prompt: prompt})
	latency := b.latencyLocked(modelID)
	failure := b.failures[modelID]
	hang := b.hangs[modelID]
	text, fixed := b.texts[modelID]
	b.mu.Unlock()

	if hang {
		<-ctx.Done()
		return dispatch.Completion{}, ctx.Err()
	}
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return dispatch.Completion{}, ctx.Err()
		case <-timer.C:
		}
	}
	if failure != nil {
		return dispatch.Completion{}, failure
	}
	if !fixed {
		text = Answer(modelID, prompt)
	}
	promptTokens := len([]rune(prompt))
	completionTokens := len([]rune(text))
	return dispatch.Completion{
		Text: text,
		Usage: &models.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// Calls returns the recorded invocations in call order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount returns the number of recorded invocations.
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *Backend) latencyLocked(modelID string) time.Duration {
	if d, ok := b.latencies[modelID]; ok {
		return d
	}
	if b.maxLatency <= b.minLatency {
		return b.minLatency
	}
	return b.minLatency + time.Duration(b.rng.Int64N(int64(b.maxLatency-b.minLatency)))
}

// Answer is the canned analysis text for modelID.
func Answer(modelID, prompt string) string {
	p := []rune(prompt)
	if len(p) > 50 {
		p = p[:50]
	}
	head := string(p)
	switch modelID {
	case "gpt-4o-mini":
		return fmt.Sprintf("ChatGPT (GPT-4o-mini) 的分析:\n\n基于您的提示词\"%s...\", 我提供以下建议:\n1. 技术架构\n2. 实现策略\n3. 最佳实践", head)
	case "gemini-2.5-flash":
		return fmt.Sprintf("Google Gemini 2.5 Flash 的分析:\n\n针对\"%s...\"的技术方案:\n• 方案1\n• 方案2\n• 方案3", head)
	case "claude-3.5-sonnet":
		return fmt.Sprintf("Claude 3.5 Sonnet 的分析:\n\n深入分析\"%s...\":\n- 背景分析\n- 关键要点\n- 实施建议", head)
	case "perplexity-pro":
		return fmt.Sprintf("Perplexity AI 的分析:\n\n最新研究表明\"%s...\":\n※ 相关参考\n※ 最佳实践\n※ 行业动向", head)
	default:
		return fmt.Sprintf("%s 的分析:\n\n基于提示词的详细回应...\n- 关键点1\n- 关键点2\n- 结论", modelID)
	}
}
