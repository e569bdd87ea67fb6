package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	RoleDisplay  = "display"
	RoleOperator = "operator"
)

// WebSocketHandler upgrades display connections on the message channel.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleConnection handles GET /ws?role=display|operator.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	switch role {
	case "":
		role = RoleDisplay
	case RoleDisplay, RoleOperator:
	default:
		http.Error(w, "role must be display or operator", http.StatusBadRequest)
		return
	}

	// Upgrade writes its own HTTP error response on failure.
	if _, err := h.connectionManager.UpgradeConnection(w, r, role); err != nil {
		log.Error().Err(err).Str("role", role).Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats handles GET /ws/stats.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
