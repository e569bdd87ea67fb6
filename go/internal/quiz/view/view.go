// Package view turns a game state into the rows a scoreboard shows.
package view

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/rules"
)

// Placeholder is shown while no snapshot has been applied.
const Placeholder = "waiting for game state..."

type Row struct {
	Name string `json:"name"`
	// Damage is the stored ratio and may exceed 1.
	Damage float64 `json:"damage"`
	// DamagePercent is the rounded display value of Damage.
	DamagePercent int `json:"damagePercent"`
	// Heat is Damage clamped to [0, 1] for colour scales.
	Heat          float64 `json:"heat"`
	Up            int     `json:"up"`
	Down          int     `json:"down"`
	RemainingLife *int    `json:"remainingLife,omitempty"`
	Eliminated    bool    `json:"eliminated"`
	Active        bool    `json:"active"`
}

type Board struct {
	Synced     bool  `json:"synced"`
	StockMode  bool  `json:"stockMode"`
	StockCount int   `json:"stockCount,omitempty"`
	CanSteal   bool  `json:"canSteal,omitempty"`
	Survivors  int   `json:"survivors"`
	Rows       []Row `json:"rows"`
}

// Build derives a board from state. A nil state yields an unsynced board.
func Build(state *models.GameState) Board {
	if state == nil {
		return Board{Rows: []Row{}}
	}

	board := Board{
		Synced:    true,
		StockMode: state.Rule.IsStockMode(),
		Survivors: rules.Survivors(state),
		Rows:      make([]Row, 0, len(state.States)),
	}
	if state.Rule.Stock != nil {
		board.StockCount = state.Rule.Stock.Count
		board.CanSteal = state.Rule.Stock.CanSteal
	}

	for _, team := range rules.Ordered(state.States) {
		row := Row{
			Name:          team.Name,
			Damage:        rules.DamageFraction(team),
			DamagePercent: int(math.Round(rules.DamageFraction(team) * 100)),
			Heat:          rules.DisplayFraction(team),
			Up:            team.Up,
			Down:          team.Down,
			Eliminated:    rules.IsEliminated(team, state.Rule),
			Active:        rules.CanAct(team, state.Rule),
		}
		if life, ok := rules.RemainingLife(team, state.Rule); ok {
			row.RemainingLife = &life
		}
		if row.Name == "" {
			row.Name = "?"
		}
		board.Rows = append(board.Rows, row)
	}
	return board
}

// Render writes the board as an aligned text table.
func Render(w io.Writer, b Board) error {
	if !b.Synced {
		_, err := fmt.Fprintln(w, Placeholder)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if b.StockMode {
		fmt.Fprintln(tw, "TEAM\tDAMAGE\tUP\tDOWN\tLIVES\t")
	} else {
		fmt.Fprintln(tw, "TEAM\tDAMAGE\tUP\tDOWN\t")
	}
	for _, row := range b.Rows {
		name := row.Name
		if row.Eliminated {
			name += " (out)"
		}
		if b.StockMode {
			lives := 0
			if row.RemainingLife != nil && *row.RemainingLife > 0 {
				lives = *row.RemainingLife
			}
			fmt.Fprintf(tw, "%s\t%d%%\t%d\t%d\t%s\t\n", name, row.DamagePercent, row.Up, row.Down, strings.Repeat("*", lives))
			continue
		}
		fmt.Fprintf(tw, "%s\t%d%%\t%d\t%d\t\n", name, row.DamagePercent, row.Up, row.Down)
	}
	if b.StockMode {
		fmt.Fprintf(tw, "survivors: %d\t\n", b.Survivors)
	}
	return tw.Flush()
}
