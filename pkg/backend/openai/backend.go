// Package openai invokes registered models through OpenAI-compatible
// chat completion endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pario-ai/chorus/pkg/config"
	"github.com/pario-ai/chorus/pkg/dispatch"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/pario-ai/chorus/pkg/router"
)

var _ dispatch.Backend = (*Backend)(nil)

// Resolver maps a model id to its upstream endpoint.
type Resolver interface {
	Resolve(modelID string) (router.Target, error)
}

// Backend holds one client per configured provider.
type Backend struct {
	resolver Resolver
	clients  map[string]*openai.Client
}

// New creates a client for every provider. extra options apply to all
// clients, e.g. option.WithMaxRetries.
func New(providers []config.ProviderConfig, resolver Resolver, extra ...option.RequestOption) *Backend {
	b := &Backend{
		resolver: resolver,
		clients:  make(map[string]*openai.Client, len(providers)),
	}
	for _, p := range providers {
		opts := []option.RequestOption{
			option.WithBaseURL(strings.TrimRight(p.URL, "/") + "/"),
		}
		if key := strings.TrimSpace(p.APIKey); key != "" {
			opts = append(opts, option.WithAPIKey(key))
		}
		opts = append(opts, extra...)
		client := openai.NewClient(opts...)
		b.clients[p.Name] = &client
	}
	return b
}

// Invoke sends prompt as a single user message.
func (b *Backend) Invoke(ctx context.Context, modelID, prompt string) (dispatch.Completion, error) {
	target, err := b.resolver.Resolve(modelID)
	if err != nil {
		return dispatch.Completion{}, err
	}
	client, ok := b.clients[target.Provider.Name]
	if !ok {
		return dispatch.Completion{}, fmt.Errorf("%w: no client for provider %q", models.ErrUnknownModel, target.Provider.Name)
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(target.Model),
	})
	if err != nil {
		return dispatch.Completion{}, fmt.Errorf("%s chat completion: %w", target.Provider.Name, err)
	}
	if len(resp.Choices) == 0 {
		return dispatch.Completion{}, errors.New("chat completion returned no choices")
	}

	return dispatch.Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: &models.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}
