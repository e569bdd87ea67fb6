// Package rules derives presentation facts from a team record and the game
// rule. Every function is pure.
package rules

import (
	"github.com/mcdev12/smashquiz/go/internal/models"
)

// RemainingLife returns the effective life count of a team in stock mode:
// count + up (only when stealing) - down. The value is not clamped; a
// result <= 0 means the team is eliminated. ok is false in point mode.
func RemainingLife(state models.TeamState, rule models.Rule) (life int, ok bool) {
	if rule.Stock == nil {
		return 0, false
	}
	life = rule.Stock.Count - state.Down
	if rule.Stock.CanSteal {
		life += state.Up
	}
	return life, true
}

// IsEliminated reports whether the team has no life left. Point mode never
// eliminates. Exactly zero remaining life counts as eliminated.
func IsEliminated(state models.TeamState, rule models.Rule) bool {
	life, ok := RemainingLife(state, rule)
	if !ok {
		return false
	}
	return life <= 0
}

// CanAct reports whether the team may still be armed for a scoring action.
func CanAct(state models.TeamState, rule models.Rule) bool {
	return state.IsActive() && !IsEliminated(state, rule)
}

// DamageFraction is the stored damage ratio. It may exceed 1.
func DamageFraction(state models.TeamState) float64 {
	return state.Damage
}

// DisplayFraction clamps the damage ratio to [0, 1] for colour scales.
func DisplayFraction(state models.TeamState) float64 {
	d := DamageFraction(state)
	switch {
	case d < 0:
		return 0
	case d > 1:
		return 1
	}
	return d
}

// SortedNames returns team names in the canonical display order.
func SortedNames(states models.Teams) []string {
	return states.Names()
}

// Ordered returns the team records in the canonical display order.
func Ordered(states models.Teams) []models.TeamState {
	names := SortedNames(states)
	out := make([]models.TeamState, 0, len(names))
	for _, name := range names {
		out = append(out, states[name])
	}
	return out
}

// Survivors counts teams that are not eliminated.
func Survivors(game *models.GameState) int {
	if game == nil {
		return 0
	}
	n := 0
	for _, state := range game.States {
		if !IsEliminated(state, game.Rule) {
			n++
		}
	}
	return n
}
