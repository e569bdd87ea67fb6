package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/mcdev12/smashquiz/go/internal/models"
)

func TestSelect_TogglesSamePair(t *testing.T) {
	var intent Intent
	if !intent.Select("A", models.ActorSmash) {
		t.Fatal("first select should arm")
	}
	if intent.Select("A", models.ActorSmash) {
		t.Fatal("second select of the same pair should disarm")
	}
	if _, ok := intent.Current(); ok {
		t.Fatal("expected no armed pair")
	}
}

func TestSelect_ReplacesDifferentPair(t *testing.T) {
	var intent Intent
	intent.Select("A", models.ActorSmash)
	if !intent.Select("B", models.ActorDamage) {
		t.Fatal("different pair should stay armed")
	}
	got, ok := intent.Current()
	if !ok || got != (Armed{Team: "B", Actor: models.ActorDamage}) {
		t.Fatalf("armed = %+v, %v; want B/damage", got, ok)
	}

	// Same team with a different actor is a different pair.
	intent.Select("B", models.ActorSmash)
	if got, _ := intent.Current(); got.Actor != models.ActorSmash {
		t.Fatalf("actor = %s, want smash", got.Actor)
	}
}

func TestSubmit_UnarmedIsNoop(t *testing.T) {
	var intent Intent
	called := false
	sent, err := intent.Submit(context.Background(), true, func(context.Context, string, models.Actor, bool) error {
		called = true
		return nil
	})
	if sent || err != nil || called {
		t.Fatalf("submit while unarmed: sent=%v err=%v called=%v", sent, err, called)
	}
}

func TestSubmit_ClearsRegardlessOfOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "failure", err: errors.New("backend unreachable")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var intent Intent
			intent.Select("A", models.ActorDamage)

			var gotTeam string
			var gotActor models.Actor
			var gotCorrect bool
			sent, err := intent.Submit(context.Background(), false, func(_ context.Context, team string, actor models.Actor, correct bool) error {
				if _, armed := intent.Current(); armed {
					t.Error("intent still armed while the command is in flight")
				}
				gotTeam, gotActor, gotCorrect = team, actor, correct
				return tt.err
			})
			if !sent {
				t.Fatal("expected submission")
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if gotTeam != "A" || gotActor != models.ActorDamage || gotCorrect {
				t.Fatalf("sent (%s, %s, %v), want (A, damage, false)", gotTeam, gotActor, gotCorrect)
			}
			if _, armed := intent.Current(); armed {
				t.Fatal("intent should be cleared after submit")
			}
		})
	}
}
