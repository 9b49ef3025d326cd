package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prodigy-ranking/backend/pkg/config"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// Fallbacks for a zero APIConfig timeout
const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Server serves the read API and the result stream
// ⭐ SSOT: HTTP server settings live here only
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server with the timeouts from cfg.API
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  orDefault(cfg.API.ReadTimeout, defaultReadTimeout),
			WriteTimeout: orDefault(cfg.API.WriteTimeout, defaultWriteTimeout),
			IdleTimeout:  orDefault(cfg.API.IdleTimeout, defaultIdleTimeout),
		},
		logger: log,
		config: cfg,
	}
}

// OnShutdown registers fn to run when Shutdown starts.
// Hijacked stream connections are not closed by http.Server, so the hub is stopped here.
func (s *Server) OnShutdown(fn func()) {
	s.httpServer.RegisterOnShutdown(fn)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port":          s.config.Port,
		"env":           s.config.Env,
		"read_timeout":  s.httpServer.ReadTimeout.String(),
		"write_timeout": s.httpServer.WriteTimeout.String(),
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
