package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/smashquiz/go/internal/models"
)

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []models.Message
}

func (f *flakyPublisher) Publish(_ context.Context, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("nats: no responders available")
	}
	f.got = append(f.got, msg)
	return nil
}

func answerMessage() models.Message {
	return models.Message{
		Event:  models.AnswerEvent(models.ActorSmash, true),
		Update: models.Teams{"A": {Name: "A", Up: 1}},
	}
}

func TestEventType(t *testing.T) {
	tests := []struct {
		msg  models.Message
		want string
	}{
		{msg: models.Message{Event: models.ResetEvent()}, want: "reset"},
		{msg: models.Message{Event: models.InitializeEvent(models.DefaultRule())}, want: "initialize"},
		{msg: models.Message{Event: models.SyncEvent(models.DefaultRule())}, want: "sync"},
		{msg: answerMessage(), want: "answer"},
		{msg: models.Message{Event: models.UIUpdateEvent(models.UIConfig{FontSize: 14})}, want: "ui_update"},
		{msg: models.Message{Event: models.Event{Kind: models.EventDelta}}, want: "delta"},
	}
	for _, tt := range tests {
		if got := EventType(tt.msg); got != tt.want {
			t.Fatalf("EventType(%s) = %q, want %q", tt.msg.Event.Kind, got, tt.want)
		}
	}
}

func TestEnvelopeCarriesMessage(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("JST", 9*60*60))
	env, err := NewEnvelope(answerMessage(), now)
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	if env.Channel != Channel || env.EventType != "answer" {
		t.Fatalf("envelope header = %s/%s", env.Channel, env.EventType)
	}
	if env.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp not UTC: %v", env.Timestamp)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	msg, err := decoded.Message()
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if msg.Event.Answer == nil || msg.Event.Answer.Actor != models.ActorSmash {
		t.Fatalf("answer lost: %+v", msg.Event)
	}
	if diff := cmp.Diff(answerMessage().Update, msg.Update); diff != "" {
		t.Fatalf("update mismatch (-want +got):\n%s", diff)
	}
	if decoded.EventID != env.EventID {
		t.Fatal("event id changed in transit")
	}
}

func TestLocalSubscribeAndUnsubscribe(t *testing.T) {
	local := NewLocal()
	first, second := &flakyPublisher{}, &flakyPublisher{failures: 1}

	if err := local.Publish(context.Background(), answerMessage()); err != nil {
		t.Fatalf("publish with no subscribers: %v", err)
	}

	stop := local.Subscribe(first)
	local.Subscribe(second)

	if err := local.Publish(context.Background(), answerMessage()); err == nil {
		t.Fatal("expected the failing subscriber's error")
	}
	stop()
	if err := local.Publish(context.Background(), answerMessage()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(first.got) != 1 || len(second.got) != 1 {
		t.Fatalf("deliveries = (%d, %d), want (1, 1)", len(first.got), len(second.got))
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &flakyPublisher{}
	failing := &flakyPublisher{failures: 10}
	err := Multi{ok, failing, Nop{}}.Publish(context.Background(), answerMessage())
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.got) != 1 {
		t.Fatal("healthy publisher should still receive the message")
	}
}

func TestRetryPublisher_SucceedsAfterFailures(t *testing.T) {
	inner := &flakyPublisher{failures: 2}
	metrics := NewLogMetrics()
	p := NewRetryPublisher(inner, 3, 0, WithRetryMetrics(metrics))

	if err := p.Publish(context.Background(), answerMessage()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
	if got := metrics.Snapshot().Retries; got != 2 {
		t.Fatalf("retries = %d, want 2", got)
	}
}

func TestRetryPublisher_GivesUp(t *testing.T) {
	inner := &flakyPublisher{failures: 10}
	p := NewRetryPublisher(inner, 2, 0)

	err := p.Publish(context.Background(), answerMessage())
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryPublisher_WaitsOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &flakyPublisher{failures: 1}
	p := NewRetryPublisher(inner, 1, time.Second, WithRetryClock(clock))

	done := make(chan error, 1)
	go func() {
		done <- p.Publish(context.Background(), answerMessage())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("retry never waited: %v", err)
	}
	clock.Advance(time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("publish did not finish after the clock advanced")
	}
}

func TestRetryPublisher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewRetryPublisher(&flakyPublisher{failures: 10}, 5, time.Hour)

	if err := p.Publish(ctx, answerMessage()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestMetricPublisherCounts(t *testing.T) {
	metrics := NewLogMetrics()
	good := NewMetricPublisher(&flakyPublisher{}, metrics)
	bad := NewMetricPublisher(&flakyPublisher{failures: 1}, metrics)

	_ = good.Publish(context.Background(), answerMessage())
	_ = good.Publish(context.Background(), models.Message{Event: models.ResetEvent()})
	_ = bad.Publish(context.Background(), answerMessage())

	want := Counts{
		Published: map[string]int{"answer": 1, "reset": 1},
		Failed:    map[string]int{"answer": 1},
	}
	if diff := cmp.Diff(want, metrics.Snapshot()); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestSubject(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	if got := cfg.Subject("sync"); got != "smashquiz.events.sync" {
		t.Fatalf("subject = %q", got)
	}
}
