package router

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/pario-ai/chorus/pkg/config"
	"github.com/pario-ai/chorus/pkg/models"
)

// Base confidence reported for every decision. The jitter on top of it is
// informational only.
const (
	baseConfidence   = 0.85
	confidenceSpread = 0.1
)

// Target is the upstream endpoint serving a registered model.
type Target struct {
	Provider config.ProviderConfig
	Model    string
}

// Router selects backends for a request. It is read-only after New and safe
// for concurrent use.
type Router struct {
	profiles  map[string]models.ModelProfile
	order     []string
	rules     map[models.Domain][]string
	providers map[string]config.ProviderConfig
	jitter    func() float64
}

// Option configures a Router.
type Option func(*Router)

// WithJitter replaces the confidence jitter source. f must return values in [0, 1).
func WithJitter(f func() float64) Option {
	return func(r *Router) { r.jitter = f }
}

// New builds a Router from the model registry and routing rules in cfg.
func New(cfg *config.Config, opts ...Option) (*Router, error) {
	r := &Router{
		profiles:  make(map[string]models.ModelProfile, len(cfg.Models)),
		rules:     make(map[models.Domain][]string, len(cfg.Routing.Rules)),
		providers: make(map[string]config.ProviderConfig, len(cfg.Providers)),
		jitter:    rand.Float64,
	}
	for _, m := range cfg.Models {
		if _, dup := r.profiles[m.ID]; dup {
			return nil, fmt.Errorf("router: duplicate model id %q", m.ID)
		}
		m.Strengths = slices.Clone(m.Strengths)
		r.profiles[m.ID] = m
		r.order = append(r.order, m.ID)
	}
	for domain, ids := range cfg.Routing.Rules {
		r.rules[models.ParseDomain(domain)] = slices.Clone(ids)
	}
	for _, p := range cfg.Providers {
		r.providers[p.Name] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Models returns every registered profile in registration order.
func (r *Router) Models() []models.ModelProfile {
	out := make([]models.ModelProfile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profile(id))
	}
	return out
}

// Model returns the profile for id.
func (r *Router) Model(id string) (models.ModelProfile, error) {
	if _, ok := r.profiles[id]; !ok {
		return models.ModelProfile{}, fmt.Errorf("%w: %s", models.ErrUnknownModel, id)
	}
	return r.profile(id), nil
}

// Rule returns the candidate list configured for domain.
func (r *Router) Rule(domain models.Domain) ([]string, bool) {
	ids, ok := r.rules[domain]
	return slices.Clone(ids), ok
}

// Rules returns a copy of every configured domain rule.
func (r *Router) Rules() map[models.Domain][]string {
	out := make(map[models.Domain][]string, len(r.rules))
	for d, ids := range r.rules {
		out[d] = slices.Clone(ids)
	}
	return out
}

// Resolve returns the upstream provider and model name for a registered model.
// A model without an upstream model name is sent under its own id.
func (r *Router) Resolve(id string) (Target, error) {
	p, ok := r.profiles[id]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", models.ErrUnknownModel, id)
	}
	provider, ok := r.providers[p.Provider]
	if !ok {
		return Target{}, fmt.Errorf("model %s: provider %q not configured", id, p.Provider)
	}
	upstream := p.UpstreamModel
	if upstream == "" {
		upstream = p.ID
	}
	return Target{Provider: provider, Model: upstream}, nil
}

// Route picks up to count models for prompt. It never fails: the candidate
// pool is the known subset of preferred, else the domain's rule, else every
// registered model. Candidates are stably sorted by score, so equal scores
// keep pool order. count <= 0 selects the whole pool.
func (r *Router) Route(prompt string, domain models.Domain, preferred []string, count int) models.RoutingDecision {
	pool, source := r.candidates(domain, preferred)
	features := Analyze(prompt)

	type scored struct {
		id    string
		score int
	}
	ranked := make([]scored, len(pool))
	for i, id := range pool {
		ranked[i] = scored{id: id, score: Score(r.profiles[id], features)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return b.score - a.score
	})

	if count <= 0 || count > len(ranked) {
		count = len(ranked)
	}
	selected := make([]string, count)
	parts := make([]string, count)
	for i := range count {
		selected[i] = ranked[i].id
		parts[i] = fmt.Sprintf("%s=%d", ranked[i].id, ranked[i].score)
	}

	reason := fmt.Sprintf("selected %d of %d candidates from %s", count, len(pool), source)
	if names := features.Names(); len(names) > 0 {
		reason += "; features: " + strings.Join(names, ", ")
	}
	if count > 0 {
		reason += "; scores: " + strings.Join(parts, ", ")
	}

	return models.RoutingDecision{
		SelectedModelIDs: selected,
		Reason:           reason,
		Confidence:       baseConfidence + r.jitter()*confidenceSpread,
	}
}

func (r *Router) candidates(domain models.Domain, preferred []string) ([]string, string) {
	if pool := r.known(preferred); len(pool) > 0 {
		return pool, "explicit preference"
	}
	if ids, ok := r.rules[domain]; ok {
		if pool := r.known(ids); len(pool) > 0 {
			return pool, fmt.Sprintf("%s routing rule", domain)
		}
	}
	return slices.Clone(r.order), "all registered models"
}

// known keeps registered ids, dropping duplicates and preserving order.
func (r *Router) known(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := r.profiles[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (r *Router) profile(id string) models.ModelProfile {
	p := r.profiles[id]
	p.Strengths = slices.Clone(p.Strengths)
	return p
}
