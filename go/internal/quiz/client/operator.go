package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
	"github.com/mcdev12/smashquiz/go/internal/quiz/rules"
	"github.com/mcdev12/smashquiz/go/internal/quiz/selection"
	"github.com/mcdev12/smashquiz/go/internal/quiz/settings"
	"github.com/mcdev12/smashquiz/go/internal/quiz/view"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoGame          = errors.New("no game in progress")
	ErrTeamUnavailable = errors.New("team cannot act")
)

// Operator drives the game: it starts it from the settings form, arms and
// submits scoring actions, and moves through history.
type Operator struct {
	engine   *engine.Engine
	intent   selection.Intent
	store    settings.Store
	defaults settings.Settings
}

func NewOperator(e *engine.Engine, store settings.Store, defaults settings.Settings) *Operator {
	return &Operator{
		engine:   e,
		store:    store,
		defaults: defaults,
	}
}

// OpenForm returns the last submitted settings, or the defaults.
func (o *Operator) OpenForm(ctx context.Context) settings.Settings {
	return settings.LoadOrDefault(ctx, o.store, o.defaults)
}

// SaveForm validates and persists an edited form without starting a game.
func (o *Operator) SaveForm(ctx context.Context, form settings.Settings) error {
	if err := form.Validate(); err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	if err := o.store.Save(ctx, form); err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

// Start saves the form and initializes a game from it. A failed save is
// logged; the game still starts.
func (o *Operator) Start(ctx context.Context, form settings.Settings) (*models.GameState, error) {
	if err := form.Validate(); err != nil {
		return o.engine.Snapshot(), fmt.Errorf("start: %w", err)
	}
	if err := o.store.Save(ctx, form); err != nil {
		log.Warn().Err(err).Msg("failed to save settings")
	}

	o.intent.Clear()
	return o.engine.Initialize(ctx, form.Rule, form.Names)
}

// Select toggles the armed (team, actor) pair and reports whether something
// is armed afterwards. Eliminated or inactive teams cannot be armed, but the
// armed pair can always be toggled off.
func (o *Operator) Select(team string, actor models.Actor) (bool, error) {
	if !actor.Valid() {
		return false, fmt.Errorf("select: %w: %q", engine.ErrUnknownActor, actor)
	}
	if armed, ok := o.intent.Current(); ok && armed.Team == team && armed.Actor == actor {
		return o.intent.Select(team, actor), nil
	}
	state := o.engine.Snapshot()
	if state == nil {
		return false, ErrNoGame
	}
	ts, ok := state.States[team]
	if !ok || !rules.CanAct(ts, state.Rule) {
		return false, fmt.Errorf("%w: %q", ErrTeamUnavailable, team)
	}
	return o.intent.Select(team, actor), nil
}

func (o *Operator) Armed() (selection.Armed, bool) {
	return o.intent.Current()
}

// Submit sends the armed action with the verdict. It reports false when
// nothing was armed.
func (o *Operator) Submit(ctx context.Context, correct bool) (bool, error) {
	if o.engine.Snapshot() == nil {
		// Another operator may have reset the game after the selection.
		_, armed := o.intent.Current()
		o.intent.Clear()
		if armed {
			return true, ErrNoGame
		}
		return false, nil
	}
	return o.intent.Submit(ctx, correct, func(ctx context.Context, team string, actor models.Actor, correct bool) error {
		_, err := o.engine.RecordScore(ctx, team, actor, correct)
		return err
	})
}

func (o *Operator) Undo(ctx context.Context) (*models.GameState, error) {
	o.intent.Clear()
	return o.engine.Undo(ctx)
}

func (o *Operator) Redo(ctx context.Context) (*models.GameState, error) {
	o.intent.Clear()
	return o.engine.Redo(ctx)
}

func (o *Operator) Reset(ctx context.Context) (*models.GameState, error) {
	o.intent.Clear()
	return o.engine.Reset(ctx)
}

func (o *Operator) Sync(ctx context.Context) (*models.GameState, error) {
	return o.engine.Sync(ctx)
}

// SetFontSize broadcasts a clamped font size to the displays. Failures are
// only logged.
func (o *Operator) SetFontSize(ctx context.Context, size int) models.UIConfig {
	cfg := models.UIConfig{FontSize: size}.Clamp()
	if err := o.engine.UpdateUI(ctx, cfg); err != nil {
		log.Warn().Err(err).Int("font_size", cfg.FontSize).Msg("failed to update display ui")
	}
	return cfg
}

// HandleMessage applies broadcasts from other operators. UI hints are
// ignored.
func (o *Operator) HandleMessage(ctx context.Context, msg models.Message) {
	if msg.Event.UI != nil {
		return
	}
	if _, err := o.engine.Handle(ctx, msg); err != nil {
		log.Warn().Err(err).Msg("operator resync failed")
	}
}

func (o *Operator) Board() view.Board {
	return view.Build(o.engine.Snapshot())
}
