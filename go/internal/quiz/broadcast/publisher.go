// Package broadcast delivers every backend message on the "message" channel
// to whoever renders game state: in-process listeners, a JetStream subject or
// both.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/smashquiz/go/internal/models"
)

// Channel is the name displays subscribe to.
const Channel = "message"

// Publisher sends one protocol message to all subscribers.
type Publisher interface {
	Publish(ctx context.Context, msg models.Message) error
}

// Envelope wraps a message on the bus so consumers can deduplicate and route
// without decoding the payload.
type Envelope struct {
	EventID   uuid.UUID       `json:"eventId"`
	EventType string          `json:"eventType"`
	Channel   string          `json:"channel"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope encodes msg with a fresh event ID.
func NewEnvelope(msg models.Message, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal message: %w", err)
	}
	return Envelope{
		EventID:   uuid.New(),
		EventType: EventType(msg),
		Channel:   Channel,
		Timestamp: now.UTC(),
		Payload:   payload,
	}, nil
}

// Message decodes the payload.
func (e Envelope) Message() (models.Message, error) {
	return models.DecodeMessage(e.Payload)
}

// EventType names a message for subjects and logs.
func EventType(msg models.Message) string {
	if msg.Event.Kind != models.EventDelta {
		return msg.Event.Kind.String()
	}
	switch {
	case msg.Event.Answer != nil:
		return "answer"
	case msg.Event.UI != nil:
		return "ui_update"
	}
	return msg.Event.Kind.String()
}

// Local forwards messages to publishers attached after construction, such
// as a gateway built around the backend that publishes into it. Subscribers
// receive each message in subscription order.
type Local struct {
	mu     sync.RWMutex
	subs   []localSub
	nextID int
}

type localSub struct {
	id        int
	publisher Publisher
}

func NewLocal() *Local {
	return &Local{}
}

// Subscribe attaches p and returns a function that detaches it.
func (l *Local) Subscribe(p Publisher) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs = append(l.subs, localSub{id: id, publisher: p})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.subs {
			if sub.id == id {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *Local) Publish(ctx context.Context, msg models.Message) error {
	l.mu.RLock()
	subs := make(Multi, 0, len(l.subs))
	for _, sub := range l.subs {
		subs = append(subs, sub.publisher)
	}
	l.mu.RUnlock()

	return subs.Publish(ctx, msg)
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, msg models.Message) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Publish(context.Context, models.Message) error { return nil }
