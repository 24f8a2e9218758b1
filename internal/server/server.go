// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/metrics"
	"github.com/normanking/stancegate/internal/pipeline"
)

// Config holds HTTP server configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8420)
	Addr string

	// MaxBodyBytes caps a request body (default: 64 KiB)
	MaxBodyBytes int64

	// RequestTimeout bounds one pipeline run, including generation (default: 60s)
	RequestTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout (default: 5s)
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the server.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:8420",
		MaxBodyBytes:    64 << 10,
		RequestTimeout:  60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// APIError is the JSON error body.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Handler runs one message through the gates. *pipeline.Pipeline implements it.
type Handler interface {
	Handle(ctx context.Context, in pipeline.Input) (*pipeline.Response, error)
}

// Server serves POST /v1/messages, GET /v1/stats and GET /healthz.
type Server struct {
	config    *Config
	pipeline  Handler
	collector *metrics.Collector
	startedAt time.Time
}

// New creates a server. collector may be nil.
func New(cfg *Config, p Handler, collector *metrics.Collector) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{config: cfg, pipeline: p, collector: collector, startedAt: time.Now()}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.config.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = srv.Close()
		return err
	}
	return nil
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var in pipeline.Input
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	resp, err := s.pipeline.Handle(ctx, in)
	switch {
	case errors.Is(err, pipeline.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "text is required", "")
		return
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out", "")
		return
	case err != nil:
		log.Error().Err(err).Msg("pipeline failed")
		writeError(w, http.StatusBadGateway, "generation failed", "")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusNotFound, "stats disabled", "")
		return
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	stats := s.collector.Snapshot()
	writeJSON(w, http.StatusOK, struct {
		metrics.Stats
		AvgLatencyMs float64 `json:"avgLatencyMs"`
	}{stats, stats.AvgLatencyMs()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg, details string) {
	writeJSON(w, code, APIError{Code: code, Message: msg, Details: details})
}
