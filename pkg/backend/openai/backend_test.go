package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/pario-ai/chorus/pkg/config"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/pario-ai/chorus/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "llama3",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "基地台掉話多半與切換參數有關"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
}`

type upstream struct {
	path   string
	auth   string
	model  string
	prompt string
}

func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *upstream) {
	t.Helper()
	seen := &upstream{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.Path
		seen.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(raw, &req)
		seen.model = req.Model
		if len(req.Messages) > 0 {
			seen.prompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestBackend(t *testing.T, url string) *Backend {
	t.Helper()
	cfg := config.Default()
	cfg.Providers = []config.ProviderConfig{{Name: "local", URL: url + "/v1", APIKey: "sk-local"}}
	cfg.Models = []models.ModelProfile{{ID: "llama", Provider: "local", UpstreamModel: "llama3"}}
	cfg.Routing.Rules = nil
	r, err := router.New(cfg)
	require.NoError(t, err)
	return New(cfg.Providers, r, option.WithMaxRetries(0))
}

func TestInvoke(t *testing.T) {
	srv, seen := newUpstream(t, http.StatusOK, completionBody)
	b := newTestBackend(t, srv.URL)

	c, err := b.Invoke(context.Background(), "llama", "排查基地台掉話原因")
	require.NoError(t, err)

	assert.Equal(t, "基地台掉話多半與切換參數有關", c.Text)
	require.NotNil(t, c.Usage)
	assert.Equal(t, 20, c.Usage.TotalTokens)
	assert.Equal(t, "/v1/chat/completions", seen.path)
	assert.Equal(t, "Bearer sk-local", seen.auth)
	assert.Equal(t, "llama3", seen.model)
	assert.Equal(t, "排查基地台掉話原因", seen.prompt)
}

func TestInvokeUpstreamError(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`)
	b := newTestBackend(t, srv.URL)

	_, err := b.Invoke(context.Background(), "llama", "hi")
	assert.Error(t, err)
}

func TestInvokeNoChoices(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"llama3","choices":[]}`)
	b := newTestBackend(t, srv.URL)

	_, err := b.Invoke(context.Background(), "llama", "hi")
	assert.ErrorContains(t, err, "no choices")
}

func TestInvokeUnknownModel(t *testing.T) {
	b := newTestBackend(t, "http://127.0.0.1:1")
	_, err := b.Invoke(context.Background(), "ghost", "hi")
	assert.ErrorIs(t, err, models.ErrUnknownModel)
}
