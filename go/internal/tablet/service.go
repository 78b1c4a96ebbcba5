package tablet

import (
	"context"
	"net/http"

	"github.com/mcdev12/roulette-tablet/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Service is the local tablet surface: REST controls plus the WebSocket event feed.
type Service struct {
	connectionManager *ConnectionManager
	handler           *Handler
	registry          *session.Registry
}

// NewService wires the handler to registry. cm must be the notifier the
// registry's sessions publish to.
func NewService(cm *ConnectionManager, registry *session.Registry) *Service {
	return &Service{
		connectionManager: cm,
		handler:           NewHandler(registry, cm),
		registry:          registry,
	}
}

// Start runs the broadcaster and idle eviction until ctx is done, then stops
// every session.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting tablet service")

	go s.registry.RunEviction(ctx)
	s.connectionManager.Start(ctx)
	s.registry.Close()

	log.Info().Msg("tablet service stopped")
	return nil
}

// RegisterRoutes registers the tablet HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
	log.Info().Msg("tablet routes registered")
}

// GetStats returns statistics about the tablet service
func (s *Service) GetStats() ConnectionStats {
	stats := s.connectionManager.GetConnectionStats()
	stats.Sessions = s.registry.GameIDs()
	return stats
}
