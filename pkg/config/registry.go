package config

import "github.com/pario-ai/chorus/pkg/models"

// Built-in model ids.
const (
	ModelGPT4oMini      = "gpt-4o-mini"
	ModelGemini25Flash  = "gemini-2.5-flash"
	ModelClaude35Sonnet = "claude-3.5-sonnet"
	ModelPerplexityPro  = "perplexity-pro"
)

// DefaultProviders returns the OpenAI-compatible endpoints of the built-in models.
// API keys are expected from the config file, e.g. api_key: ${OPENAI_API_KEY}.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "openai", URL: "https://api.openai.com/v1"},
		{Name: "google", URL: "https://generativelanguage.googleapis.com/v1beta/openai"},
		{Name: "anthropic", URL: "https://api.anthropic.com/v1"},
		{Name: "perplexity", URL: "https://api.perplexity.ai"},
	}
}

// DefaultModels returns the built-in model registry in registration order.
func DefaultModels() []models.ModelProfile {
	return []models.ModelProfile{
		{
			ID:            ModelGPT4oMini,
			Name:          "ChatGPT (GPT-4o-mini)",
			Type:          models.ModelTypeLLM,
			Strengths:     []string{"code-generation", "reasoning", "versatility"},
			Capabilities:  models.Capabilities{Reasoning: 95, Creativity: 85, Accuracy: 92, Speed: 90},
			CostPerUnit:   0.000015,
			Provider:      "openai",
			UpstreamModel: "gpt-4o-mini",
		},
		{
			ID:            ModelGemini25Flash,
			Name:          "Google Gemini 2.5 Flash",
			Type:          models.ModelTypeLLM,
			Strengths:     []string{"multimodal", "reasoning", "fast"},
			Capabilities:  models.Capabilities{Reasoning: 88, Creativity: 82, Accuracy: 90, Speed: 95},
			CostPerUnit:   0.0000075,
			Provider:      "google",
			UpstreamModel: "gemini-2.5-flash",
		},
		{
			ID:            ModelClaude35Sonnet,
			Name:          "Anthropic Claude 3.5 Sonnet",
			Type:          models.ModelTypeLLM,
			Strengths:     []string{"analysis", "writing", "reasoning"},
			Capabilities:  models.Capabilities{Reasoning: 92, Creativity: 88, Accuracy: 95, Speed: 80},
			CostPerUnit:   0.00003,
			Provider:      "anthropic",
			UpstreamModel: "claude-3-5-sonnet-latest",
		},
		{
			ID:            ModelPerplexityPro,
			Name:          "Perplexity AI Pro",
			Type:          models.ModelTypeLLM,
			Strengths:     []string{"research", "real-time", "web-search"},
			Capabilities:  models.Capabilities{Reasoning: 85, Creativity: 75, Accuracy: 88, Speed: 85},
			CostPerUnit:   0.00002,
			Provider:      "perplexity",
			UpstreamModel: "sonar-pro",
		},
	}
}

// DefaultRules returns the built-in per-domain candidate lists.
func DefaultRules() map[string][]string {
	return map[string][]string{
		string(models.DomainMobile):     {ModelGemini25Flash, ModelGPT4oMini, ModelClaude35Sonnet},
		string(models.DomainFixed):      {ModelClaude35Sonnet, ModelGPT4oMini, ModelGemini25Flash},
		string(models.DomainDatacenter): {ModelGPT4oMini, ModelClaude35Sonnet, ModelGemini25Flash},
		string(models.DomainDev):        {ModelGPT4oMini, ModelClaude35Sonnet, ModelGemini25Flash},
		string(models.DomainAIData):     {ModelClaude35Sonnet, ModelGPT4oMini, ModelGemini25Flash},
		string(models.DomainSecurity):   {ModelClaude35Sonnet, ModelGPT4oMini, ModelPerplexityPro},
		string(models.DomainAgentMCP):   {ModelClaude35Sonnet, ModelGPT4oMini, ModelGemini25Flash},
	}
}
