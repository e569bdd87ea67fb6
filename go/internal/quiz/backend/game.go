// Package backend is the authoritative owner of a smash quiz game: it
// applies commands, keeps the undo history and broadcasts every resulting
// message.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/broadcast"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotInitialized = errors.New("game not initialized")
	ErrTeamNotFound   = errors.New("team not found")
	ErrTeamNotActive  = errors.New("team is not active")
	ErrNoUndo         = errors.New("no more undo")
	ErrNoRedo         = errors.New("no more redo")
	ErrNoTeams        = errors.New("at least one team name is required")
)

// Game serializes all commands. Each successful command returns the message
// it produced and publishes the same message before the next command runs.
type Game struct {
	mu        sync.Mutex
	manager   *Manager
	history   *History
	publisher broadcast.Publisher
	sampler   Sampler
}

type Option func(*Game)

func WithSampler(s Sampler) Option {
	return func(g *Game) {
		g.sampler = s
	}
}

func NewGame(publisher broadcast.Publisher, opts ...Option) *Game {
	g := &Game{
		publisher: publisher,
		sampler:   NewRandSampler(),
	}
	if g.publisher == nil {
		g.publisher = broadcast.Nop{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns a copy of the current game, or nil before Initialize.
func (g *Game) State() *models.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.manager == nil {
		return nil
	}
	return &models.GameState{Rule: g.manager.Rule(), States: g.manager.Teams()}
}

// Initialize starts a new game and discards any previous one. A nil rule
// selects DefaultRule.
func (g *Game) Initialize(ctx context.Context, rule *models.Rule, names []string) (models.Message, error) {
	r := models.DefaultRule()
	if rule != nil {
		r = *rule
	}
	if err := r.Validate(); err != nil {
		return models.Message{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	manager := NewManager(r, names, g.sampler)
	if len(manager.teams) == 0 {
		return models.Message{}, ErrNoTeams
	}
	g.manager = manager
	g.history = NewHistory(r, manager.Teams())

	log.Info().Int("teams", len(manager.teams)).Bool("stock", r.IsStockMode()).Msg("game initialized")
	return g.emit(ctx, models.Message{Event: models.InitializeEvent(r), Update: manager.Teams()})
}

// Sync returns the full current state.
func (g *Game) Sync(ctx context.Context) (models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.manager == nil {
		return models.Message{}, ErrNotInitialized
	}
	return g.emit(ctx, g.snapshot())
}

func (g *Game) Undo(ctx context.Context) (models.Message, error) {
	return g.travel(ctx, "undo", (*History).Undo)
}

func (g *Game) Redo(ctx context.Context) (models.Message, error) {
	return g.travel(ctx, "redo", (*History).Redo)
}

func (g *Game) travel(ctx context.Context, name string, move func(*History) (models.Teams, error)) (models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.history == nil {
		return models.Message{}, ErrNotInitialized
	}
	teams, err := move(g.history)
	if err != nil {
		return models.Message{}, err
	}
	g.manager.restore(teams)

	log.Info().Str("command", name).Int("cursor", g.history.cursor).Msg("history moved")
	return g.emit(ctx, g.snapshot())
}

// Reset discards the game and its history.
func (g *Game) Reset(ctx context.Context) (models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.manager = nil
	g.history = nil

	log.Info().Msg("game reset")
	return g.emit(ctx, models.Message{Event: models.ResetEvent(), Update: models.Teams{}})
}

// Score resolves a smash or damage answer by attacker.
func (g *Game) Score(ctx context.Context, actor models.Actor, attacker string, correct bool) (models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.manager == nil {
		return models.Message{}, ErrNotInitialized
	}

	var update models.Teams
	var err error
	switch actor {
	case models.ActorSmash:
		update, err = g.manager.Smash(attacker, correct)
	case models.ActorDamage:
		update, err = g.manager.Damage(attacker, correct)
	default:
		return models.Message{}, fmt.Errorf("unknown actor %q", actor)
	}
	if err != nil {
		return models.Message{}, err
	}
	g.history.Commit(g.manager.Teams())

	log.Info().
		Str("actor", string(actor)).
		Str("team", attacker).
		Bool("correct", correct).
		Int("updated", len(update)).
		Msg("score recorded")
	return g.emit(ctx, models.Message{Event: models.AnswerEvent(actor, correct), Update: update})
}

func (g *Game) Smash(ctx context.Context, attacker string, correct bool) (models.Message, error) {
	return g.Score(ctx, models.ActorSmash, attacker, correct)
}

func (g *Game) Damage(ctx context.Context, attacker string, correct bool) (models.Message, error) {
	return g.Score(ctx, models.ActorDamage, attacker, correct)
}

// UpdateUI broadcasts a presentation hint. It works without a game.
func (g *Game) UpdateUI(ctx context.Context, cfg models.UIConfig) (models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emit(ctx, models.Message{Event: models.UIUpdateEvent(cfg.Clamp()), Update: models.Teams{}})
}

func (g *Game) snapshot() models.Message {
	return models.Message{Event: models.SyncEvent(g.manager.Rule()), Update: g.manager.Teams()}
}

// emit publishes msg. A failed broadcast does not fail the command since the
// state change has already happened.
func (g *Game) emit(ctx context.Context, msg models.Message) (models.Message, error) {
	if err := g.publisher.Publish(ctx, msg); err != nil {
		log.Error().Err(err).Str("event_type", broadcast.EventType(msg)).Msg("failed to broadcast message")
	}
	return msg, nil
}
