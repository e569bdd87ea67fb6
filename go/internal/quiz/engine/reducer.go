package engine

import (
	"github.com/mcdev12/smashquiz/go/internal/models"
)

// SideEffect is work the caller of Reduce must perform after applying a message.
type SideEffect int

const (
	SideEffectNone SideEffect = iota
	// SideEffectRequestResync asks the backend for a fresh snapshot because a
	// delta arrived before any snapshot.
	SideEffectRequestResync
)

func (s SideEffect) String() string {
	if s == SideEffectRequestResync {
		return "request_resync"
	}
	return "none"
}

// Reduce applies one protocol message to the current state and returns the
// next state. current is never modified; a delta always produces a new
// value so identity-based change detection sees the update.
//
//   - reset: nil
//   - initialize / sync: full replacement from the message
//   - delta on nil: nil plus SideEffectRequestResync, the message is dropped
//   - delta: every team in Update replaces its record, the rule is kept
func Reduce(current *models.GameState, msg models.Message) (*models.GameState, SideEffect) {
	switch msg.Event.Kind {
	case models.EventReset:
		return nil, SideEffectNone
	case models.EventInitialize, models.EventSync:
		var rule models.Rule
		if msg.Event.Rule != nil {
			rule = *msg.Event.Rule
		}
		return &models.GameState{Rule: rule, States: msg.Update.Clone()}, SideEffectNone
	}

	if current == nil {
		return nil, SideEffectRequestResync
	}

	next := current.Clone()
	for name, state := range msg.Update {
		next.States[name] = state
	}
	return next, SideEffectNone
}
