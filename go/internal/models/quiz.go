package models

import (
	"errors"
	"fmt"
	"sort"
)

// TeamState is the per-team record the backend owns. Counters only grow
// during a game; elimination is derived by the rules package.
type TeamState struct {
	Name   string  `json:"name"`
	Damage float64 `json:"damage"`
	Up     int     `json:"up"`
	Down   int     `json:"down"`
	Active *bool   `json:"active,omitempty"`
}

// IsActive reports the optional active flag, defaulting to true.
func (t TeamState) IsActive() bool {
	return t.Active == nil || *t.Active
}

// NewTeamState returns a zeroed record for a freshly initialized game.
func NewTeamState(name string) TeamState {
	return TeamState{Name: name}
}

// Teams maps team name to its state.
type Teams map[string]TeamState

// Clone copies the map. TeamState values are copied; the optional Active
// pointer is shared because published states are never mutated.
func (t Teams) Clone() Teams {
	if t == nil {
		return Teams{}
	}
	out := make(Teams, len(t))
	for name, state := range t {
		out[name] = state
	}
	return out
}

// Names returns the team names in lexicographic order.
func (t Teams) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DamageRule describes the distribution the backend samples damage from.
// Values are fractions (10% is stored as 0.1).
type DamageRule struct {
	Mean   float64  `json:"mean" yaml:"mean"`
	StdDev float64  `json:"stdDev" yaml:"stdDev"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
}

// Clamp applies the max bound first and then the min bound.
func (d DamageRule) Clamp(v float64) float64 {
	if d.Max != nil && v > *d.Max {
		return *d.Max
	}
	if d.Min != nil && v < *d.Min {
		return *d.Min
	}
	return v
}

func (d DamageRule) validate(field string) error {
	if d.Mean < 0 {
		return fmt.Errorf("%s: mean must not be negative", field)
	}
	if d.StdDev < 0 {
		return fmt.Errorf("%s: stdDev must not be negative", field)
	}
	if d.Min != nil && d.Max != nil && *d.Min > *d.Max {
		return fmt.Errorf("%s: min %.3f is greater than max %.3f", field, *d.Min, *d.Max)
	}
	return nil
}

// StockRule enables lives-based elimination.
type StockRule struct {
	Count    int  `json:"count" yaml:"count"`
	CanSteal bool `json:"canSteal" yaml:"canSteal"`
}

// Rule is the configuration of one game. A nil Stock selects point mode.
type Rule struct {
	DamageIfCorrect   DamageRule `json:"damageIfCorrect" yaml:"damageIfCorrect"`
	DamageIfIncorrect DamageRule `json:"damageIfIncorrect" yaml:"damageIfIncorrect"`
	Stock             *StockRule `json:"stock,omitempty" yaml:"stock,omitempty"`
}

// ErrInvalidRule is wrapped by every Rule validation failure.
var ErrInvalidRule = errors.New("invalid rule")

// IsStockMode reports whether the rule eliminates teams.
func (r Rule) IsStockMode() bool {
	return r.Stock != nil
}

// Validate checks the numeric constraints of the rule.
func (r Rule) Validate() error {
	if err := r.DamageIfCorrect.validate("damageIfCorrect"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if err := r.DamageIfIncorrect.validate("damageIfIncorrect"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if r.Stock != nil && r.Stock.Count < 1 {
		return fmt.Errorf("%w: stock count must be at least 1", ErrInvalidRule)
	}
	return nil
}

// DefaultRule mirrors the values the operator form starts with.
func DefaultRule() Rule {
	return Rule{
		DamageIfCorrect: DamageRule{
			Mean:   0.1,
			StdDev: 0.05,
			Max:    float64Ptr(0.2),
			Min:    float64Ptr(0),
		},
		DamageIfIncorrect: DamageRule{
			Mean:   0.2,
			StdDev: 0.1,
			Max:    float64Ptr(0.4),
			Min:    float64Ptr(0),
		},
	}
}

// DefaultStockCount is the life count offered when stock mode is enabled.
const DefaultStockCount = 5

// DefaultTeamNames are the team names offered by a fresh operator form.
func DefaultTeamNames() []string {
	return []string{
		"宇宙のモフモフ探検隊",
		"カエルの革命家たち",
		"時速5kmのスナイパー",
		"パンダの逆襲",
		"未確認飛行ニンジン",
		"秘密結社クワガタムシ",
	}
}

// GameState is the synchronized view of one game. Absence is a nil pointer.
type GameState struct {
	Rule   Rule  `json:"rule"`
	States Teams `json:"states"`
}

// Clone returns a copy whose team map can be modified independently.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	return &GameState{
		Rule:   g.Rule,
		States: g.States.Clone(),
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}
