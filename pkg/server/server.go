// Package server exposes the coordination layer over HTTP under /api/agent/.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pario-ai/chorus/pkg/aggregate"
	"github.com/pario-ai/chorus/pkg/mcp"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Coordinator is the subset of the coordinator served over HTTP.
type Coordinator interface {
	Call(ctx context.Context, opts models.CallOptions) (models.CallResult, error)
	StreamCall(ctx context.Context, opts models.CallOptions) (<-chan models.StreamEvent, error)
	AvailableModels() []models.ModelProfile
	Model(id string) (models.ModelProfile, error)
	CacheStats() models.CacheStats
	ClearCache(ctx context.Context)
	ExecutionHistory(taskID string) ([]models.ExecutionContext, error)
}

// Server is the agent HTTP API.
type Server struct {
	listen  string
	version string
	coord   Coordinator
	tools   *mcp.Tools
	log     zerolog.Logger
	now     func() time.Time
	mux     *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithVersion sets the version reported by mcp-info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a Server listening on listen once ListenAndServe is called.
func New(listen string, coord Coordinator, tools *mcp.Tools, opts ...Option) *Server {
	s := &Server{
		listen:  listen,
		version: "dev",
		coord:   coord,
		tools:   tools,
		log:     zerolog.Nop(),
		now:     time.Now,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /api/agent/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/agent/models", s.handleModels)
	s.mux.HandleFunc("GET /api/agent/models/{id}", s.handleModel)
	s.mux.HandleFunc("POST /api/agent/call", s.handleCall)
	s.mux.HandleFunc("POST /api/agent/call-stream", s.handleCallStream)
	s.mux.HandleFunc("GET /api/agent/cache-stats", s.handleCacheStats)
	s.mux.HandleFunc("POST /api/agent/clear-cache", s.handleClearCache)
	s.mux.HandleFunc("GET /api/agent/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/agent/mcp-info", s.handleMCPInfo)
	s.mux.HandleFunc("GET /api/agent/mcp-tools", s.handleMCPTools)
	s.mux.HandleFunc("POST /api/agent/mcp-tool-call", s.handleMCPToolCall)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	s.mux.ServeHTTP(w, r)
	s.log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int64("duration_ms", s.now().Sub(start).Milliseconds()).
		Msg("request")
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.listen).Msg("chorus api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// callRequest is the body of call and call-stream.
type callRequest struct {
	Domain            string            `json:"domain"`
	UserInput         string            `json:"userInput"`
	PreferredModels   []string          `json:"preferredModels,omitempty"`
	ModelCount        int               `json:"modelCount,omitempty"`
	ParallelExecution *bool             `json:"parallelExecution,omitempty"`
	UseCache          *bool             `json:"useCache,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Style             string            `json:"style,omitempty"`
}

func (c callRequest) options() models.CallOptions {
	return models.CallOptions{
		Domain:            models.ParseDomain(c.Domain),
		UserInput:         c.UserInput,
		PreferredModels:   c.PreferredModels,
		ModelCount:        c.ModelCount,
		ParallelExecution: c.ParallelExecution,
		UseCache:          c.UseCache,
		Metadata:          c.Metadata,
	}
}

type toolCallRequest struct {
	ToolName   string          `json:"toolName"`
	Parameters json.RawMessage `json:"parameters"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"status":    "healthy",
		"cache":     toCacheStats(s.coord.CacheStats()),
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	profiles := s.coord.AvailableModels()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"models": toModels(profiles),
		"count":  len(profiles),
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	p, err := s.coord.Model(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "model": toModel(p)})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.coord.Call(r.Context(), req.options())
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("X-Chorus-Cache", cacheHeader(res.CacheHit))
	style := aggregate.ParseStyle(req.Style)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"result":     toResult(res.Result),
		"output":     aggregate.Render(style, res.Result.Responses),
		"cacheHit":   res.CacheHit,
		"cacheStats": toCacheStats(res.CacheStats),
	})
}

func (s *Server) handleCallStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "response writer does not support flushing")
		return
	}
	var req callRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.coord.StreamCall(r.Context(), req.options())
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	clientGone := false
	for ev := range events {
		// keep draining after the client leaves so the producer finishes
		if clientGone {
			continue
		}
		data, err := json.Marshal(toEvent(ev))
		if err != nil {
			s.log.Error().Err(err).Msg("marshal stream event")
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			s.log.Debug().Err(err).Str("task_id", ev.TaskID).Msg("stream client gone")
			clientGone = true
			continue
		}
		flusher.Flush()
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.coord.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"stats":   toCacheStats(stats),
		"hitRate": fmt.Sprintf("%.2f%%", stats.HitRate*100),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.coord.ClearCache(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "cache cleared",
		"stats":   toCacheStats(s.coord.CacheStats()),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.coord.ExecutionHistory(r.URL.Query().Get("taskId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"history": toHistory(history),
		"count":   len(history),
	})
}

func (s *Server) handleMCPInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"mcp": map[string]any{
			"name":      "chorus",
			"version":   s.version,
			"tools":     s.tools.Definitions(),
			"resources": s.tools.Resources(),
		},
	})
}

func (s *Server) handleMCPTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.tools.Definitions()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"tools": tools,
		"count": len(tools),
	})
}

func (s *Server) handleMCPToolCall(w http.ResponseWriter, r *http.Request) {
	var req toolCallRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ToolName == "" {
		s.writeError(w, fmt.Errorf("%w: toolName is required", models.ErrInvalidRequest))
		return
	}
	out, err := s.tools.Call(r.Context(), req.ToolName, req.Parameters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"toolName": req.ToolName,
		"result":   out,
	})
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read request body", models.ErrInvalidRequest)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid request body", models.ErrInvalidRequest)
	}
	return nil
}

func cacheHeader(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// statusFor maps coordination errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest), errors.Is(err, models.ErrUnknownTool):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnknownModel), errors.Is(err, models.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAllBackendsFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorType names the class of a failed request in error bodies.
func errorType(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusBadGateway:
		return "backend_error"
	default:
		return "chorus_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Int("status", code).Msg("request failed")
	}
	writeJSONError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": errorBody{Message: message, Type: errorType(code), Code: code},
	})
}
