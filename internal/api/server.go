// Package api provides the read-only ops HTTP endpoint for Gray Gate.
//
// It exposes the coordinator's status, registry contents, and component
// health for dashboards and scripts. Everything is read-only: mutations
// reach Gray Gate exclusively through the message bus.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-gate/internal/infrastructure/config"
	"github.com/nerrad567/gray-gate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-gate/internal/mirror"
	"github.com/nerrad567/gray-gate/internal/registry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusProvider exposes the coordinator's point-in-time status.
type StatusProvider interface {
	Status() mirror.Status
}

// HealthChecker verifies one dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the ops API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Registry    *registry.Registry
	Coordinator StatusProvider
	Version     string

	// Health holds named dependency checkers (database, mqtt) surfaced
	// on the health endpoint. Optional.
	Health map[string]HealthChecker
}

// Server is the ops HTTP server.
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	registry    *registry.Registry
	coordinator StatusProvider
	version     string
	health      map[string]HealthChecker
	server      *http.Server
	started     time.Time
}

// New creates a new ops API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("representation registry is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		registry:    deps.Registry,
		coordinator: deps.Coordinator,
		version:     deps.Version,
		health:      deps.Health,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	s.started = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("ops API listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("ops API shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down ops API: %w", err)
	}
	return nil
}
