// Package server exposes the ledger over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/server/handler"
	"github.com/alanyoungcy/optionsledger/internal/server/middleware"
	"github.com/alanyoungcy/optionsledger/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Write rate limit per client IP; applied only when a limiter is given.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Snapshots, Quotes and Audit are optional.
type Handlers struct {
	Health    *handler.HealthHandler
	Movements *handler.MovementHandler
	Summary   *handler.SummaryHandler
	CSV       *handler.CSVHandler
	Snapshots *handler.SnapshotHandler
	Quotes    *handler.QuoteHandler
	Audit     *handler.AuditHandler
}

// Server is the ledger's HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, limiter, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	m := handlers.Movements
	mux.HandleFunc("GET /api/movements/current", m.ListCurrent)
	mux.HandleFunc("GET /api/movements/history", m.ListHistory)
	mux.HandleFunc("GET /api/movements/{id}", m.GetMovement)
	mux.HandleFunc("POST /api/movements", m.CreateMovement)
	mux.HandleFunc("PUT /api/movements/{id}", m.UpdateMovement)
	mux.HandleFunc("POST /api/movements/{id}/roll", m.RollMovement)
	mux.HandleFunc("POST /api/movements/{id}/close", m.CloseMovement)
	mux.HandleFunc("POST /api/movements/{id}/assign", m.AssignMovement)
	mux.HandleFunc("POST /api/movements/{id}/revert-assignment", m.RevertAssignment)
	mux.HandleFunc("POST /api/movements/{id}/revert-close", m.RevertClose)
	mux.HandleFunc("GET /api/chains/{chain}", m.GetChain)

	mux.HandleFunc("GET /api/summary", handlers.Summary.GetSummary)

	mux.HandleFunc("GET /api/export.csv", handlers.CSV.Export)
	mux.HandleFunc("POST /api/import", handlers.CSV.Import)

	if handlers.Snapshots != nil {
		mux.HandleFunc("GET /api/snapshots", handlers.Snapshots.ListSnapshots)
		mux.HandleFunc("POST /api/snapshots", handlers.Snapshots.CreateSnapshot)
		mux.HandleFunc("POST /api/snapshots/restore", handlers.Snapshots.RestoreSnapshot)
	}
	if handlers.Quotes != nil {
		mux.HandleFunc("GET /api/quotes", handlers.Quotes.GetQuotes)
	}

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Innermost first: rate limit, auth, logging, CORS.
	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
