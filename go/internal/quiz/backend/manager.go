package backend

import (
	"fmt"
	"strings"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/rules"
)

// Manager applies scoring actions to the team map under one rule.
type Manager struct {
	rule    models.Rule
	teams   models.Teams
	sampler Sampler
}

// NewManager seeds one zeroed team per distinct non-blank name.
func NewManager(rule models.Rule, names []string, sampler Sampler) *Manager {
	teams := make(models.Teams, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := teams[name]; ok {
			continue
		}
		teams[name] = models.NewTeamState(name)
	}
	return &Manager{rule: rule, teams: teams, sampler: sampler}
}

func (m *Manager) Rule() models.Rule {
	return m.rule
}

func (m *Manager) Teams() models.Teams {
	return m.teams.Clone()
}

func (m *Manager) restore(teams models.Teams) {
	m.teams = teams.Clone()
}

func (m *Manager) attacker(name string) (models.TeamState, error) {
	state, ok := m.teams[name]
	if !ok {
		return models.TeamState{}, fmt.Errorf("%w: %q", ErrTeamNotFound, name)
	}
	if !rules.CanAct(state, m.rule) {
		return models.TeamState{}, fmt.Errorf("%w: %q", ErrTeamNotActive, name)
	}
	return state, nil
}

// Damage resolves a damage answer. A correct answer damages every other
// active team and reports all other teams; an incorrect one recoils on the
// attacker and reports only the attacker.
func (m *Manager) Damage(attacker string, correct bool) (models.Teams, error) {
	state, err := m.attacker(attacker)
	if err != nil {
		return nil, err
	}
	if !correct {
		return m.recoil(attacker, state), nil
	}

	update := models.Teams{}
	for _, name := range m.teams.Names() {
		if name == attacker {
			continue
		}
		other := m.teams[name]
		if rules.CanAct(other, m.rule) {
			other.Damage += sampleDamage(m.sampler, m.rule.DamageIfCorrect)
			m.teams[name] = other
		}
		update[name] = other
	}
	return update, nil
}

// Smash resolves a smash answer. On a correct answer each other active team
// is knocked out with probability equal to its damage; the attacker gains one
// up per victim and each victim gains one down and loses its damage. The
// update holds the attacker and the victims.
func (m *Manager) Smash(attacker string, correct bool) (models.Teams, error) {
	state, err := m.attacker(attacker)
	if err != nil {
		return nil, err
	}
	if !correct {
		return m.recoil(attacker, state), nil
	}

	update := models.Teams{}
	for _, name := range m.teams.Names() {
		if name == attacker {
			continue
		}
		victim := m.teams[name]
		if !rules.CanAct(victim, m.rule) {
			continue
		}
		if m.sampler.Float64() >= victim.Damage {
			continue
		}
		victim.Down++
		victim.Damage = 0
		m.teams[name] = victim
		update[name] = victim
	}

	state.Up += len(update)
	m.teams[attacker] = state
	update[attacker] = state
	return update, nil
}

func (m *Manager) recoil(attacker string, state models.TeamState) models.Teams {
	state.Damage += sampleDamage(m.sampler, m.rule.DamageIfIncorrect)
	m.teams[attacker] = state
	return models.Teams{attacker: state}
}
