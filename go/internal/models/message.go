package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EventKind is the decoded tag of a protocol message.
type EventKind int

const (
	// EventDelta merges Update into the existing state.
	EventDelta EventKind = iota
	// EventReset discards the game.
	EventReset
	// EventInitialize starts a new game from Update.
	EventInitialize
	// EventSync replaces the whole state with Update.
	EventSync
)

func (k EventKind) String() string {
	switch k {
	case EventReset:
		return "reset"
	case EventInitialize:
		return "initialize"
	case EventSync:
		return "sync"
	default:
		return "delta"
	}
}

// Actor is the kind of scoring action a team attempts.
type Actor string

const (
	ActorSmash  Actor = "smash"
	ActorDamage Actor = "damage"
)

// Valid reports whether a is a known actor.
func (a Actor) Valid() bool {
	return a == ActorSmash || a == ActorDamage
}

// Answer describes the scoring event that produced a delta.
type Answer struct {
	Actor   Actor `json:"actor_type"`
	Success bool  `json:"success"`
}

// UIConfig is a presentation hint broadcast to display clients.
type UIConfig struct {
	FontSize int `json:"fontSize"`
}

const (
	MinFontSize     = 5
	MaxFontSize     = 30
	DefaultFontSize = 12
)

// Clamp bounds the font size to the range displays accept.
func (c UIConfig) Clamp() UIConfig {
	switch {
	case c.FontSize < MinFontSize:
		c.FontSize = MinFontSize
	case c.FontSize > MaxFontSize:
		c.FontSize = MaxFontSize
	}
	return c
}

// Event is the tagged part of a Message. Kind is decided once when the
// message is decoded; Rule is set for Initialize and Sync, and a Delta may
// carry the Answer or UI detail it was produced by.
type Event struct {
	Kind   EventKind
	Rule   *Rule
	Answer *Answer
	UI     *UIConfig

	// raw keeps unrecognised delta shapes so re-encoding is lossless.
	raw json.RawMessage
}

const resetTag = "reset"

func ResetEvent() Event {
	return Event{Kind: EventReset}
}

func InitializeEvent(rule Rule) Event {
	return Event{Kind: EventInitialize, Rule: &rule}
}

func SyncEvent(rule Rule) Event {
	return Event{Kind: EventSync, Rule: &rule}
}

func AnswerEvent(actor Actor, success bool) Event {
	return Event{Kind: EventDelta, Answer: &Answer{Actor: actor, Success: success}}
}

func UIUpdateEvent(cfg UIConfig) Event {
	return Event{Kind: EventDelta, UI: &cfg}
}

// IsSnapshot reports whether the event carries a full replacement state.
func (e Event) IsSnapshot() bool {
	return e.Kind == EventInitialize || e.Kind == EventSync
}

// MarshalJSON encodes the event in the backend's wire shape: the literal
// "reset", {"initialize": rule}, {"sync": rule} or a delta marker object.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventReset:
		return json.Marshal(resetTag)
	case EventInitialize, EventSync:
		if e.Rule == nil {
			return nil, fmt.Errorf("%s event without rule", e.Kind)
		}
		return json.Marshal(map[string]*Rule{e.Kind.String(): e.Rule})
	}

	switch {
	case len(e.raw) > 0:
		return e.raw, nil
	case e.Answer != nil:
		return json.Marshal(map[string]*Answer{"answer": e.Answer})
	case e.UI != nil:
		return json.Marshal(map[string]*UIConfig{"uiUpdate": e.UI})
	default:
		return []byte(`{}`), nil
	}
}

// UnmarshalJSON classifies the payload into one of the four event kinds.
// Any shape other than reset, initialize or sync is a delta.
func (e *Event) UnmarshalJSON(data []byte) error {
	*e = Event{}
	data = bytes.TrimSpace(data)

	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag == resetTag {
			e.Kind = EventReset
			return nil
		}
		e.raw = append(json.RawMessage(nil), data...)
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		e.raw = append(json.RawMessage(nil), data...)
		return nil
	}

	for _, kind := range []EventKind{EventInitialize, EventSync} {
		payload, ok := fields[kind.String()]
		if !ok {
			continue
		}
		rule, err := decodeRule(payload)
		if err != nil {
			return fmt.Errorf("decode %s rule: %w", kind, err)
		}
		e.Kind = kind
		e.Rule = &rule
		return nil
	}

	e.raw = append(json.RawMessage(nil), data...)
	if payload, ok := fields["answer"]; ok {
		var answer Answer
		if err := json.Unmarshal(payload, &answer); err == nil {
			e.Answer = &answer
		}
	}
	if payload, ok := fields["uiUpdate"]; ok {
		var cfg UIConfig
		if err := json.Unmarshal(payload, &cfg); err == nil {
			e.UI = &cfg
		}
	}
	return nil
}

var errMissingRule = errors.New("missing rule payload")

func decodeRule(payload json.RawMessage) (Rule, error) {
	var rule Rule
	if len(payload) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return rule, errMissingRule
	}
	if err := json.Unmarshal(payload, &rule); err != nil {
		return rule, err
	}
	return rule, nil
}

// Message is the unit of the protocol: an event tag plus the team records
// it touches (all teams for snapshots, a subset for deltas).
type Message struct {
	Event  Event `json:"event"`
	Update Teams `json:"update"`
}

// NewSnapshotMessage builds a Sync message for the given state.
func NewSnapshotMessage(state *GameState) Message {
	return Message{Event: SyncEvent(state.Rule), Update: state.States.Clone()}
}

// DecodeMessage parses one protocol message.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Update == nil {
		msg.Update = Teams{}
	}
	return msg, nil
}
