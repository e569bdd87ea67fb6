package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/broadcast"
	"github.com/mcdev12/smashquiz/go/internal/quiz/gateway"
	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy         bool              `json:"healthy"`
	GameInitialized bool              `json:"game_initialized"`
	NATSConnected   *bool             `json:"nats_connected,omitempty"`
	Connections     int               `json:"connections"`
	Broadcast       *broadcast.Counts `json:"broadcast,omitempty"`
	Errors          []string          `json:"errors"`
}

type (
	stateSource interface {
		State() *models.GameState
	}
	connectionCounter interface {
		Stats() gateway.ConnectionStats
	}
	natsConn interface {
		IsConnected() bool
	}
)

// HealthChecker reports on the backend and its broadcast path. Only a lost
// NATS connection makes the server unhealthy; a missing game is normal.
type HealthChecker struct {
	game     stateSource
	displays connectionCounter
	nats     natsConn
	metrics  *broadcast.LogMetrics
}

type HealthOption func(*HealthChecker)

func WithDisplays(c connectionCounter) HealthOption {
	return func(h *HealthChecker) {
		h.displays = c
	}
}

func WithNATS(conn natsConn, metrics *broadcast.LogMetrics) HealthOption {
	return func(h *HealthChecker) {
		h.nats = conn
		h.metrics = metrics
	}
}

func NewHealthChecker(game stateSource, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{game: game}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HealthChecker) Check(_ context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:         true,
		GameInitialized: h.game.State() != nil,
		Errors:          []string{},
	}

	if h.displays != nil {
		status.Connections = h.displays.Stats().TotalConnections
	}

	if h.nats != nil {
		connected := h.nats.IsConnected()
		status.NATSConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.metrics != nil {
		counts := h.metrics.Snapshot()
		status.Broadcast = &counts
	}

	return status
}

// ServeHTTP handles GET /health.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}
