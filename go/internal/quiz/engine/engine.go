// Package engine owns the synchronized game state of one client process.
//
// An Engine is fed protocol messages from two independent sources, command
// responses and the broadcast stream, and serializes them through a single
// critical section. Readers only ever receive copies of the current state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Backend is the authoritative command surface. Every call is a round trip
// that returns the single message the backend produced.
type Backend interface {
	Initialize(ctx context.Context, rule models.Rule, names []string) (models.Message, error)
	Sync(ctx context.Context) (models.Message, error)
	Undo(ctx context.Context) (models.Message, error)
	Redo(ctx context.Context) (models.Message, error)
	Reset(ctx context.Context) (models.Message, error)
	Score(ctx context.Context, actor models.Actor, attacker string, correct bool) (models.Message, error)
	UpdateUI(ctx context.Context, cfg models.UIConfig) error
}

// Listener is notified with a copy of the state after every change.
// Listeners run in apply order and must not call Apply or Handle.
type Listener func(state *models.GameState)

// ErrUnknownActor is returned when a score is recorded for an invalid actor.
var ErrUnknownActor = errors.New("unknown actor")

type Engine struct {
	backend Backend
	clock   clockwork.Clock

	// applyMu makes apply plus listener notification atomic per message.
	applyMu sync.Mutex

	mu        sync.RWMutex
	state     *models.GameState
	version   uint64
	syncedAt  time.Time
	resyncing bool
	listeners map[int]Listener
	nextID    int
}

type Option func(*Engine)

// WithClock overrides the clock used to stamp snapshots.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// New creates an engine with no game state.
func New(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:   backend,
		clock:     clockwork.NewRealClock(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns a copy of the current state, or nil when not synchronized.
func (e *Engine) Snapshot() *models.GameState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Version increases by one on every state change.
func (e *Engine) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// LastSyncedAt is the time the last snapshot was applied.
func (e *Engine) LastSyncedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.syncedAt
}

// Watch registers a listener and returns a function that removes it.
func (e *Engine) Watch(fn Listener) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Apply reduces one message into the engine state. A gap delta leaves the
// state untouched and returns SideEffectRequestResync, unless a resync is
// already outstanding, in which case the delta is dropped silently.
func (e *Engine) Apply(msg models.Message) (*models.GameState, SideEffect) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	e.mu.Lock()
	next, effect := Reduce(e.state, msg)
	changed := effect == SideEffectNone
	if effect == SideEffectRequestResync {
		if e.resyncing {
			effect = SideEffectNone
		} else {
			e.resyncing = true
		}
	}
	if changed {
		e.state = next
		e.version++
		if msg.Event.IsSnapshot() {
			e.syncedAt = e.clock.Now()
			e.resyncing = false
		}
	}
	listeners := make([]Listener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	current := e.state
	version := e.version
	e.mu.Unlock()

	log.Debug().
		Str("event", msg.Event.Kind.String()).
		Int("teams", len(msg.Update)).
		Uint64("version", version).
		Str("side_effect", effect.String()).
		Msg("message applied")

	if changed {
		for _, fn := range listeners {
			fn(current.Clone())
		}
	}
	return current.Clone(), effect
}

// Handle applies msg and performs any side effect it requires.
func (e *Engine) Handle(ctx context.Context, msg models.Message) (*models.GameState, error) {
	state, effect := e.Apply(msg)
	if effect == SideEffectRequestResync {
		return e.resync(ctx)
	}
	return state, nil
}

func (e *Engine) resync(ctx context.Context) (*models.GameState, error) {
	defer func() {
		e.mu.Lock()
		e.resyncing = false
		e.mu.Unlock()
	}()

	log.Info().Msg("delta received before snapshot, requesting resync")
	msg, err := e.backend.Sync(ctx)
	if err != nil {
		return e.Snapshot(), fmt.Errorf("resync: %w", err)
	}
	state, _ := e.Apply(msg)
	return state, nil
}

func (e *Engine) command(ctx context.Context, name string, call func(context.Context) (models.Message, error)) (*models.GameState, error) {
	msg, err := call(ctx)
	if err != nil {
		log.Error().Err(err).Str("command", name).Msg("command failed")
		return e.Snapshot(), fmt.Errorf("%s: %w", name, err)
	}
	return e.Handle(ctx, msg)
}

// Initialize starts a new game with the given rule and team names.
func (e *Engine) Initialize(ctx context.Context, rule models.Rule, names []string) (*models.GameState, error) {
	return e.command(ctx, "initialize", func(ctx context.Context) (models.Message, error) {
		return e.backend.Initialize(ctx, rule, names)
	})
}

// Sync replaces the local state with the backend's current snapshot.
func (e *Engine) Sync(ctx context.Context) (*models.GameState, error) {
	return e.command(ctx, "sync", e.backend.Sync)
}

func (e *Engine) Undo(ctx context.Context) (*models.GameState, error) {
	return e.command(ctx, "undo", e.backend.Undo)
}

func (e *Engine) Redo(ctx context.Context) (*models.GameState, error) {
	return e.command(ctx, "redo", e.backend.Redo)
}

func (e *Engine) Reset(ctx context.Context) (*models.GameState, error) {
	return e.command(ctx, "reset", e.backend.Reset)
}

// RecordScore sends a smash or damage answer for team. Calling it before a
// game is initialized is a caller bug and panics.
func (e *Engine) RecordScore(ctx context.Context, team string, actor models.Actor, correct bool) (*models.GameState, error) {
	e.mu.RLock()
	initialized := e.state != nil
	e.mu.RUnlock()
	if !initialized {
		panic("engine: RecordScore called before the game was initialized")
	}
	if !actor.Valid() {
		return e.Snapshot(), fmt.Errorf("record score: %w: %q", ErrUnknownActor, actor)
	}

	return e.command(ctx, string(actor), func(ctx context.Context) (models.Message, error) {
		return e.backend.Score(ctx, actor, team, correct)
	})
}

// UpdateUI forwards a presentation hint. It does not touch game state.
func (e *Engine) UpdateUI(ctx context.Context, cfg models.UIConfig) error {
	if err := e.backend.UpdateUI(ctx, cfg.Clamp()); err != nil {
		return fmt.Errorf("ui_update: %w", err)
	}
	return nil
}
