// Package http exposes a ports.TurnProcessor over a small JSON API.
//
//	POST /v1/turns      run one turn (body: domain.TurnRequest)
//	GET  /v1/handlers   list loaded handlers
//	GET  /healthz       liveness
//	GET  /info          build information
//	GET  /openapi.json  API description
//	GET  /swagger       API browser
//	GET  /metrics       Prometheus exposition, when configured
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MaxBodyBytes bounds a turn request body.
const MaxBodyBytes = 1 << 20

// RequestIDHeader carries the request ID. An incoming value is reused as the
// turn's trace ID when the body does not set one.
const RequestIDHeader = "X-Request-Id"

// Server serves the turn API.
type Server struct {
	proc    ports.TurnProcessor
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for proc.
func NewHandler(proc ports.TurnProcessor, opts ...Option) http.Handler {
	s := &Server{
		proc:   proc,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Post("/v1/turns", s.ProcessTurn)
	r.Get("/v1/handlers", s.ListHandlers)
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	s.mountDocs(r)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HandlerSummary is one entry of GET /v1/handlers.
type HandlerSummary struct {
	ID          string   `json:"id"`
	Version     string   `json:"version"`
	Domain      string   `json:"domain"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Locales     []string `json:"locales,omitempty"`
	HasGraph    bool     `json:"has_graph"`
}

// Summarize flattens handler metadata for display.
func Summarize(md []ports.HandlerMetadata) []HandlerSummary {
	out := make([]HandlerSummary, 0, len(md))
	for _, m := range md {
		out = append(out, HandlerSummary{
			ID:          m.Identity.ID,
			Version:     m.Identity.Version.String(),
			Domain:      m.Domain,
			Name:        m.Info.Name,
			Description: m.Info.Description,
			Locales:     m.Info.Locales,
			HasGraph:    m.Graph != nil,
		})
	}
	return out
}

// ProcessTurn handles POST /v1/turns.
func (s *Server) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	rid := r.Header.Get(RequestIDHeader)

	var req domain.TurnRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.logger.Warn("Turn: Invalid request body", "request_id", rid, "error", err)
		s.writeError(w, rid, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Client.UserID == "" {
		s.writeError(w, rid, http.StatusBadRequest, "client.user_id is required")
		return
	}
	if err := req.Sanitize(domain.DefaultMaxInputSize); err != nil {
		s.writeError(w, rid, http.StatusBadRequest, "invalid input: "+err.Error())
		return
	}
	if req.TraceID == "" {
		req.TraceID = rid
	}

	res, err := s.proc.Process(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if domain.IsOrchestrationError(err) {
			status = http.StatusUnprocessableEntity
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("Turn failed", "request_id", rid, "trace_id", req.TraceID, "error", err)
		s.writeError(w, rid, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

// ListHandlers handles GET /v1/handlers.
func (s *Server) ListHandlers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Summarize(s.proc.Handlers()))
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "parley-http",
		"version": strings.TrimSpace(parley.Version),
	})
}

func (s *Server) writeError(w http.ResponseWriter, rid string, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg, RequestID: rid})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}
