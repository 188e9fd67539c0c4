package mcp

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/pario-ai/chorus/pkg/models"
)

const (
	resourceModelProfiles = "resource://ai-model-profiles"
	resourceDomainRouting = "resource://domain-routing"
)

var allResources = []ResourceDefinition{
	{
		URI:         resourceModelProfiles,
		Name:        "AI model profiles",
		Description: "Registered models with capabilities, strengths and cost.",
		MimeType:    "application/json",
	},
	{
		URI:         resourceDomainRouting,
		Name:        "Domain routing rules",
		Description: "Candidate models configured for each technical domain.",
		MimeType:    "application/json",
	},
}

// Resources returns the static resource definitions.
func (t *Tools) Resources() []ResourceDefinition {
	return slices.Clone(allResources)
}

// ReadResource returns the JSON body of the resource at uri.
func (t *Tools) ReadResource(uri string) (ResourceContent, error) {
	var body any
	switch uri {
	case resourceModelProfiles:
		body = t.coord.AvailableModels()
	case resourceDomainRouting:
		rules := make(map[models.Domain][]string, len(t.rules))
		for d, ids := range t.rules {
			rules[d] = slices.Clone(ids)
		}
		body = rules
	default:
		return ResourceContent{}, fmt.Errorf("unknown resource: %s", uri)
	}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return ResourceContent{}, fmt.Errorf("encode resource %s: %w", uri, err)
	}
	return ResourceContent{URI: uri, MimeType: "application/json", Text: string(data)}, nil
}
