package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
	"github.com/mcdev12/smashquiz/go/internal/quiz/view"
	"github.com/rs/zerolog/log"
)

// StateProvider returns the current game, or nil before initialize.
type StateProvider interface {
	GameState(ctx context.Context) (*models.GameState, error)
}

type StateProviderFunc func(ctx context.Context) (*models.GameState, error)

func (f StateProviderFunc) GameState(ctx context.Context) (*models.GameState, error) {
	return f(ctx)
}

// GameSource is implemented by the authoritative backend.
type GameSource interface {
	State() *models.GameState
}

// NewGameStateProvider reads state straight from an in-process backend.
func NewGameStateProvider(source GameSource) StateProvider {
	return StateProviderFunc(func(context.Context) (*models.GameState, error) {
		return source.State(), nil
	})
}

// NewEngineStateProvider reads the gateway's own synchronized copy.
func NewEngineStateProvider(e *engine.Engine) StateProvider {
	return StateProviderFunc(func(context.Context) (*models.GameState, error) {
		return e.Snapshot(), nil
	})
}

// StateResponse is the body of GET /api/game/state.
type StateResponse struct {
	Initialized bool         `json:"initialized"`
	Rule        *models.Rule `json:"rule,omitempty"`
	Board       view.Board   `json:"board"`
}

type StateHandler struct {
	stateProvider StateProvider
}

func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetGameState handles GET /api/game/state
func (h *StateHandler) HandleGetGameState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.stateProvider.GameState(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get game state")
		http.Error(w, "Failed to get game state", http.StatusInternalServerError)
		return
	}

	resp := StateResponse{Board: view.Build(state)}
	if state != nil {
		rule := state.Rule
		resp.Initialized = true
		resp.Rule = &rule
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode game state response")
	}
}

func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/game/state", h.HandleGetGameState)
}
