package models

import (
	"slices"
	"strings"
)

// Domain tags a request with the subject area it belongs to.
type Domain string

// Known domains. Requests may carry other values; they route to the whole registry.
const (
	DomainMobile     Domain = "MOBILE"
	DomainFixed      Domain = "FIXED"
	DomainDatacenter Domain = "DATACENTER"
	DomainDev        Domain = "DEV"
	DomainAIData     Domain = "AI_DATA"
	DomainSecurity   Domain = "SECURITY"
	DomainAgentMCP   Domain = "AGENT_MCP"
)

// KnownDomains lists the domains that ship with a routing rule.
var KnownDomains = []Domain{
	DomainMobile, DomainFixed, DomainDatacenter, DomainDev,
	DomainAIData, DomainSecurity, DomainAgentMCP,
}

// ParseDomain normalizes case and surrounding whitespace.
func ParseDomain(s string) Domain {
	return Domain(strings.ToUpper(strings.TrimSpace(s)))
}

// Known reports whether d is one of KnownDomains.
func (d Domain) Known() bool {
	return slices.Contains(KnownDomains, d)
}

// ModelType is the kind of model a backend exposes.
type ModelType string

const (
	ModelTypeLLM       ModelType = "llm"
	ModelTypeEmbedding ModelType = "embedding"
	ModelTypeVision    ModelType = "vision"
)

// Capabilities are 0-100 scores used by the router.
type Capabilities struct {
	Reasoning  int `json:"reasoning" yaml:"reasoning"`
	Creativity int `json:"creativity" yaml:"creativity"`
	Accuracy   int `json:"accuracy" yaml:"accuracy"`
	Speed      int `json:"speed" yaml:"speed"`
}

// ModelProfile describes a registered backend model.
type ModelProfile struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Type          ModelType    `json:"type" yaml:"type"`
	Strengths     []string     `json:"strengths" yaml:"strengths"`
	Capabilities  Capabilities `json:"capabilities" yaml:"capabilities"`
	CostPerUnit   float64      `json:"cost_per_unit" yaml:"cost_per_unit"`
	Provider      string       `json:"provider,omitempty" yaml:"provider"`
	UpstreamModel string       `json:"upstream_model,omitempty" yaml:"upstream_model"`
}

// HasStrength reports whether tag is among the profile's strengths.
func (p ModelProfile) HasStrength(tag string) bool {
	return slices.Contains(p.Strengths, tag)
}

// RoutingDecision is the router's output for one request.
type RoutingDecision struct {
	SelectedModelIDs []string `json:"selected_model_ids"`
	Reason           string   `json:"reason"`
	Confidence       float64  `json:"confidence"`
}
