// Package server owns HTTP server initialization and lifecycle management.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/chatd/internal/api"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default HTTP server configuration. WriteTimeout is
// zero: SSE chat streams stay open for as long as the provider generates.
func DefaultConfig() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        8080,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	config Config
	deps   api.Deps
	http   *http.Server
}

// NewServer creates a new HTTP server over the shared application services.
func NewServer(deps api.Deps, config Config) *Server {
	router := api.NewRouter(deps)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		config: config,
		deps:   deps,
		http:   httpServer,
	}
}

// Start starts the HTTP server and blocks until an error occurs.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("addr", s.http.Addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server, disposes the cached provider
// handles, and closes the database connection.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if s.deps.Factory != nil {
		if err := s.deps.Factory.Close(); err != nil {
			log.Warn().Err(err).Msg("provider handle disposal failed")
		}
	}

	if err := s.deps.DB.Close(); err != nil {
		return fmt.Errorf("database close error: %w", err)
	}

	log.Info().Msg("server shutdown complete")
	return nil
}
