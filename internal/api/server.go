// Package api implements the HTTP/RPC surface of spec.md §6: project
// registration, sync, retrieval, agent missions, and admin telemetry,
// grounded on the teacher's internal/api (Server/routes/middleware/errors)
// but wired to codeintel's own sync/retrieval/agent/telemetry services in
// place of the teacher's query.Engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"codeintel/internal/agent"
	"codeintel/internal/credentials"
	"codeintel/internal/jobs"
	"codeintel/internal/llm"
	"codeintel/internal/logging"
	"codeintel/internal/storage"
	"codeintel/internal/sync"
	"codeintel/internal/telemetry"
)

// Server represents the HTTP API server.
type Server struct {
	router *http.ServeMux
	server *http.Server
	addr   string
	logger *logging.Logger

	Registry    *Registry
	Sync        *sync.Service
	LLM         *llm.Client
	Credentials *credentials.Pool
	Collector   *telemetry.Collector
	InterLog    *telemetry.InteractionLog
	Trace       *telemetry.Trace
	Cache       *storage.Cache
	Jobs        *jobs.Runner
	AgentSteps  int
}

// NewServer creates a new HTTP server instance, wiring every ambient and
// domain service the handlers need.
func NewServer(addr string, logger *logging.Logger, registry *Registry, svc *sync.Service, client *llm.Client,
	pool *credentials.Pool, collector *telemetry.Collector, interLog *telemetry.InteractionLog, trace *telemetry.Trace,
	cache *storage.Cache, runner *jobs.Runner, agentSteps int) *Server {

	s := &Server{
		addr:        addr,
		logger:      logger,
		router:      http.NewServeMux(),
		Registry:    registry,
		Sync:        svc,
		LLM:         client,
		Credentials: pool,
		Collector:   collector,
		InterLog:    interLog,
		Trace:       trace,
		Cache:       cache,
		Jobs:        runner,
		AgentSteps:  agentSteps,
	}

	s.registerRoutes()
	s.registerJobHandlers()

	handler := s.applyMiddleware(s.router)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // agent missions can run multiple LLM round trips
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// newLoop builds an agent.Loop against project state, bounded by the
// server's configured step budget.
func (s *Server) newLoop(p *ProjectState) *agent.Loop {
	loop := agent.NewLoop(s.LLM, p.Tools, s.InterLog, s.Trace)
	if s.AgentSteps > 0 {
		loop.MaxSteps = s.AgentSteps
	}
	return loop
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.addr,
	})

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", nil)

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully", nil)
	return nil
}

// ServeHTTP implements http.Handler, used directly by tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware()(handler)
	return handler
}
