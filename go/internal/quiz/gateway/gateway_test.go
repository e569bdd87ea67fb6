package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/broadcast"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
)

type staticSource struct {
	state *models.GameState
}

func (s staticSource) State() *models.GameState { return s.state.Clone() }

type recordingSink struct {
	mu   sync.Mutex
	msgs []models.Message
	err  error
}

func (r *recordingSink) Publish(_ context.Context, msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

type stubBackend struct {
	syncMsg models.Message
	syncErr error
}

func (b stubBackend) Initialize(context.Context, models.Rule, []string) (models.Message, error) {
	return models.Message{}, errors.New("not supported")
}
func (b stubBackend) Sync(context.Context) (models.Message, error) { return b.syncMsg, b.syncErr }
func (b stubBackend) Undo(context.Context) (models.Message, error) {
	return models.Message{}, errors.New("not supported")
}
func (b stubBackend) Redo(context.Context) (models.Message, error) {
	return models.Message{}, errors.New("not supported")
}
func (b stubBackend) Reset(context.Context) (models.Message, error) {
	return models.Message{}, errors.New("not supported")
}
func (b stubBackend) Score(context.Context, models.Actor, string, bool) (models.Message, error) {
	return models.Message{}, errors.New("not supported")
}
func (b stubBackend) UpdateUI(context.Context, models.UIConfig) error { return nil }

func sampleState() *models.GameState {
	return &models.GameState{
		Rule: models.DefaultRule(),
		States: models.Teams{
			"A": {Name: "A", Damage: 0.5, Up: 1},
			"B": {Name: "B"},
		},
	}
}

func newTestServer(t *testing.T, provider StateProvider) (*Service, *httptest.Server) {
	t.Helper()
	svc := NewService(DefaultConnectionConfig(), provider)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(CORSMiddleware(mux))
	t.Cleanup(srv.Close)
	return svc, srv
}

func waitForConnections(t *testing.T, svc *Service, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.Stats().TotalConnections == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("connections = %d, want %d", svc.Stats().TotalConnections, n)
}

func TestWebSocketReceivesPublishedMessages(t *testing.T) {
	svc, srv := newTestServer(t, NewGameStateProvider(staticSource{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.connectionManager.Start(ctx)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=display"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForConnections(t, svc, 1)

	sent := []models.Message{
		models.NewSnapshotMessage(sampleState()),
		{Event: models.AnswerEvent(models.ActorDamage, true), Update: models.Teams{"B": {Name: "B", Damage: 0.1}}},
	}
	for _, msg := range sent {
		if err := svc.Publisher().Publish(ctx, msg); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i, want := range sent {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		got, err := models.DecodeMessage(data)
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if got.Event.Kind != want.Event.Kind {
			t.Fatalf("message %d kind = %v, want %v", i, got.Event.Kind, want.Event.Kind)
		}
		if diff := cmp.Diff(want.Update, got.Update); diff != "" {
			t.Fatalf("message %d update mismatch (-want +got):\n%s", i, diff)
		}
	}

	stats := svc.Stats()
	if stats.ByRole[RoleDisplay] != 1 {
		t.Fatalf("stats = %+v, want one display", stats)
	}
}

func TestWebSocketRejectsUnknownRole(t *testing.T) {
	_, srv := newTestServer(t, NewGameStateProvider(staticSource{}))

	resp, err := http.Get(srv.URL + "/ws?role=admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStateEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		state       *models.GameState
		initialized bool
		rows        int
	}{
		{name: "before initialize", state: nil, initialized: false, rows: 0},
		{name: "running game", state: sampleState(), initialized: true, rows: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newTestServer(t, NewGameStateProvider(staticSource{state: tt.state}))

			resp, err := http.Get(srv.URL + "/api/game/state")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}

			var body StateResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Initialized != tt.initialized || len(body.Board.Rows) != tt.rows {
				t.Fatalf("body = %+v", body)
			}
			if tt.initialized && body.Board.Rows[0].Name != "A" {
				t.Fatalf("rows not in canonical order: %+v", body.Board.Rows)
			}
		})
	}
}

func TestStateEndpointRejectsPost(t *testing.T) {
	_, srv := newTestServer(t, NewGameStateProvider(staticSource{}))

	resp, err := http.Post(srv.URL+"/api/game/state", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestProcessMessageForwardsEnvelope(t *testing.T) {
	sink := &recordingSink{}
	ec := &EventConsumer{sink: sink, config: DefaultJetStreamConsumerConfig()}

	msg := models.Message{Event: models.ResetEvent(), Update: models.Teams{}}
	env, err := broadcast.NewEnvelope(msg, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	data, _ := json.Marshal(env)

	if err := ec.processMessage(context.Background(), "smashquiz.events.reset", data); err != nil {
		t.Fatalf("process: %v", err)
	}

	foreign := env
	foreign.Channel = "other"
	data, _ = json.Marshal(foreign)
	if err := ec.processMessage(context.Background(), "smashquiz.events.reset", data); err != nil {
		t.Fatalf("process foreign: %v", err)
	}

	if len(sink.msgs) != 1 || sink.msgs[0].Event.Kind != models.EventReset {
		t.Fatalf("forwarded = %+v, want one reset", sink.msgs)
	}

	if err := ec.processMessage(context.Background(), "x", []byte("not json")); err == nil {
		t.Fatal("expected error for malformed envelope")
	}

	sink.err = errors.New("down")
	data, _ = json.Marshal(env)
	if err := ec.processMessage(context.Background(), "x", data); err == nil {
		t.Fatal("expected sink error to be returned so the message is redelivered")
	}
}

func TestMirrorTracksBroadcast(t *testing.T) {
	snapshot := models.NewSnapshotMessage(sampleState())
	mirror := engine.New(stubBackend{syncMsg: snapshot})
	m := NewMirror(mirror)
	ctx := context.Background()

	ui := models.Message{Event: models.UIUpdateEvent(models.UIConfig{FontSize: 20}), Update: models.Teams{}}
	if err := m.Publish(ctx, ui); err != nil {
		t.Fatalf("publish ui: %v", err)
	}
	if mirror.Snapshot() != nil || mirror.Version() != 0 {
		t.Fatal("ui update must not touch the mirrored state")
	}

	// A delta before any snapshot makes the mirror pull one.
	delta := models.Message{Event: models.AnswerEvent(models.ActorDamage, true), Update: models.Teams{"B": {Name: "B", Damage: 0.3}}}
	if err := m.Publish(ctx, delta); err != nil {
		t.Fatalf("publish delta: %v", err)
	}
	if diff := cmp.Diff(sampleState(), mirror.Snapshot()); diff != "" {
		t.Fatalf("mirror state mismatch (-want +got):\n%s", diff)
	}

	if err := m.Publish(ctx, delta); err != nil {
		t.Fatalf("publish delta: %v", err)
	}
	if got := mirror.Snapshot().States["B"].Damage; got != 0.3 {
		t.Fatalf("B damage = %v, want 0.3", got)
	}

	provider := NewEngineStateProvider(mirror)
	state, err := provider.GameState(ctx)
	if err != nil || state == nil || len(state.States) != 2 {
		t.Fatalf("provider state = %+v, %v", state, err)
	}
}

func TestMirrorSwallowsResyncFailure(t *testing.T) {
	m := NewMirror(engine.New(stubBackend{syncErr: errors.New("backend down")}))
	delta := models.Message{Event: models.AnswerEvent(models.ActorSmash, true), Update: models.Teams{"A": {Name: "A"}}}
	if err := m.Publish(context.Background(), delta); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishFailsAfterStop(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cm.Start(ctx)

	done := make(chan error, 1)
	go func() {
		// More than the queue holds: none of these may block.
		var err error
		for i := 0; i < 1001; i++ {
			if err = cm.Publish(context.Background(), models.Message{Event: models.ResetEvent()}); !errors.Is(err, ErrManagerStopped) {
				break
			}
		}
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrManagerStopped) {
			t.Fatalf("err = %v, want %v", err, ErrManagerStopped)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after the manager stopped")
	}
}
