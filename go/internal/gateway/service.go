// Package gateway pushes live room state to WebSocket clients and accepts clock
// commands from them.
package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service is the room gateway: connection manager plus its HTTP handlers
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
}

// Config holds configuration for the room gateway
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the room gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new room gateway service
func NewService(config Config, rooms RoomsApp, clocksApp ClocksApp, clock clockwork.Clock) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, rooms, clocksApp, clock)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
	}
}

// Start runs the gateway until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting room gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("room gateway stopped")
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
}

// GetStats returns statistics about the gateway
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
