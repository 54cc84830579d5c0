// Package server is the HTTP/SSE endpoint layer. It translates JSON
// requests into orchestrator route calls and maps routing errors to
// status codes. No routing decisions live here.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fitstack/coach/internal/auth"
	"github.com/fitstack/coach/internal/coach"
	"github.com/fitstack/coach/internal/config"
	"github.com/fitstack/coach/internal/observability"
)

// Server wraps the chi router and the underlying http.Server.
type Server struct {
	orchestrator *coach.Orchestrator
	jwt          *auth.JWTService
	logger       *observability.Logger
	metrics      *observability.Metrics

	httpServer *http.Server
}

// New assembles the HTTP server around the orchestrator.
func New(cfg config.ServerConfig, orch *coach.Orchestrator, jwt *auth.JWTService, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		orchestrator: orch,
		jwt:          jwt,
		logger:       logger,
		metrics:      metrics,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt, logger))
		r.Post("/api/chat", s.handleChat)
		r.Get("/api/chat/stream", s.handleChatStream)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
