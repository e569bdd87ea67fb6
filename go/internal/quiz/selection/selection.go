// Package selection tracks the scoring action an operator has armed but not
// yet submitted. It holds no game state.
package selection

import (
	"context"
	"sync"

	"github.com/mcdev12/smashquiz/go/internal/models"
)

// Armed is the (team, actor) pair waiting for a correct/incorrect verdict.
type Armed struct {
	Team  string
	Actor models.Actor
}

// ScoreFunc sends the armed action to the backend.
type ScoreFunc func(ctx context.Context, team string, actor models.Actor, correct bool) error

// Intent is the None | Armed state machine. The zero value is unarmed.
type Intent struct {
	mu    sync.Mutex
	armed *Armed
}

// Current returns the armed pair, if any.
func (i *Intent) Current() (Armed, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.armed == nil {
		return Armed{}, false
	}
	return *i.armed, true
}

// Select arms (team, actor). Selecting the armed pair again disarms it and a
// different pair replaces it. It returns whether anything is armed afterwards.
func (i *Intent) Select(team string, actor models.Actor) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	next := Armed{Team: team, Actor: actor}
	if i.armed != nil && *i.armed == next {
		i.armed = nil
		return false
	}
	i.armed = &next
	return true
}

// Clear disarms without submitting.
func (i *Intent) Clear() {
	i.mu.Lock()
	i.armed = nil
	i.mu.Unlock()
}

// Submit sends the armed action with the given verdict. The intent is cleared
// before fn runs, so it is None whatever fn returns. Submitting while unarmed
// does nothing and reports false.
func (i *Intent) Submit(ctx context.Context, correct bool, fn ScoreFunc) (bool, error) {
	i.mu.Lock()
	armed := i.armed
	i.armed = nil
	i.mu.Unlock()

	if armed == nil {
		return false, nil
	}
	return true, fn(ctx, armed.Team, armed.Actor, correct)
}
