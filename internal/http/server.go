// Package http provides the HTTP server and routes for pseudotv.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/http/handlers"
	"github.com/pseudotv/pseudotv/internal/http/middleware"
	"github.com/pseudotv/pseudotv/internal/schedule"
	"github.com/pseudotv/pseudotv/internal/stream"
	"github.com/pseudotv/pseudotv/internal/transcoder"
)

// Server represents the HTTP server.
type Server struct {
	cfg        *config.Config
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(cfg *config.Config, registry *schedule.Registry, resolver transcoder.URLResolver, refresh stream.RefreshFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))

	router.Method(http.MethodGet, "/epg.xml", handlers.NewEPGHandler(cfg))
	router.Method(http.MethodGet, "/m3u", handlers.NewPlaylistHandler(cfg))
	router.Method(http.MethodGet, "/stream/{channelID}", handlers.NewStreamHandler(cfg, registry, resolver, refresh, logger))

	return &Server{
		cfg:    cfg,
		router: router,
		logger: logger,
	}
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
//
// WriteTimeout is deliberately left unset: stream sessions are unbounded
// long-lived responses.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: s.cfg.Server.ReadTimeout,
		IdleTimeout: s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("starting HTTP server", slog.String("address", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down HTTP server",
		slog.Duration("timeout", s.cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
