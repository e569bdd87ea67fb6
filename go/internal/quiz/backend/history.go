package backend

import (
	"github.com/mcdev12/smashquiz/go/internal/models"
)

type record struct {
	states models.Teams
	// before is the cursor at the time the record was committed.
	before int
}

// History is the undo tree of one game. Committing after an undo starts a new
// branch; the abandoned branch stays reachable only through its parent.
type History struct {
	rule    models.Rule
	records []record
	cursor  int
}

// NewHistory starts a history whose root is the freshly initialized teams.
func NewHistory(rule models.Rule, teams models.Teams) *History {
	return &History{
		rule:    rule,
		records: []record{{states: teams.Clone(), before: 0}},
	}
}

// Commit records teams as a child of the current cursor and moves to it.
func (h *History) Commit(teams models.Teams) {
	h.records = append(h.records, record{states: teams.Clone(), before: h.cursor})
	h.cursor = len(h.records) - 1
}

// Current returns a copy of the teams at the cursor.
func (h *History) Current() models.Teams {
	return h.records[h.cursor].states.Clone()
}

func (h *History) Rule() models.Rule {
	return h.rule
}

// Undo moves to the parent of the current record.
func (h *History) Undo() (models.Teams, error) {
	if h.cursor == 0 {
		return nil, ErrNoUndo
	}
	h.cursor = h.records[h.cursor].before
	return h.Current(), nil
}

// Redo moves to the most recently committed child of the current record.
func (h *History) Redo() (models.Teams, error) {
	next := -1
	for i := h.cursor + 1; i < len(h.records); i++ {
		if h.records[i].before == h.cursor {
			next = i
		}
	}
	if next < 0 {
		return nil, ErrNoRedo
	}
	h.cursor = next
	return h.Current(), nil
}

// Len is the number of records, the root included.
func (h *History) Len() int {
	return len(h.records)
}
