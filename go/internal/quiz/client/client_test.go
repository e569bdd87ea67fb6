package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/backend"
	"github.com/mcdev12/smashquiz/go/internal/quiz/broadcast"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
	"github.com/mcdev12/smashquiz/go/internal/quiz/gateway"
	"github.com/mcdev12/smashquiz/go/internal/quiz/server"
	"github.com/mcdev12/smashquiz/go/internal/quiz/settings"
)

type memStore struct {
	mu    sync.Mutex
	saved *settings.Settings
	err   error
}

func (m *memStore) Load(context.Context) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return settings.Settings{}, settings.ErrNotFound
	}
	return *m.saved, nil
}

func (m *memStore) Save(_ context.Context, s settings.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = &s
	return nil
}

type stack struct {
	game    *backend.Game
	gateway *gateway.Service
	srv     *httptest.Server
}

// newStack runs a backend with its embedded gateway, like the server binary.
func newStack(t *testing.T) *stack {
	t.Helper()
	s := &stack{}
	local := broadcast.NewLocal()
	s.game = backend.NewGame(local, backend.WithSampler(backend.NewSeededSampler(7, 11)))
	s.gateway = gateway.NewService(gateway.DefaultConnectionConfig(), gateway.NewGameStateProvider(s.game))
	local.Subscribe(s.gateway.Publisher())

	mux := http.NewServeMux()
	server.RegisterService(mux, server.NewService(s.game))
	s.gateway.RegisterRoutes(mux)
	s.srv = httptest.NewServer(server.NewHTTPServer("0", mux).Handler)

	ctx, cancel := context.WithCancel(context.Background())
	go s.gateway.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.srv.Close()
	})
	return s
}

func (s *stack) commands() *CommandClient {
	return NewCommandClient(s.srv.Client(), s.srv.URL+"/")
}

func (s *stack) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws?role=display"
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testForm(names ...string) settings.Settings {
	rule := models.DefaultRule()
	rule.DamageIfCorrect = models.DamageRule{Mean: 1, StdDev: 0}
	rule.DamageIfIncorrect = models.DamageRule{Mean: 0.3, StdDev: 0}
	rule.Stock = &models.StockRule{Count: 1}
	return settings.Settings{Rule: rule, Names: names}
}

func TestCommandClientSurfacesConnectErrors(t *testing.T) {
	s := newStack(t)
	c := s.commands()
	ctx := context.Background()

	_, err := c.Sync(ctx)
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("sync before initialize: %v", err)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("err = %T, want *connect.Error", err)
	}

	msg, err := c.Initialize(ctx, models.DefaultRule(), []string{"A"})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if msg.Event.Kind != models.EventInitialize {
		t.Fatalf("kind = %v, want initialize", msg.Event.Kind)
	}

	if _, err := c.Score(ctx, models.Actor("kick"), "A", true); !errors.Is(err, engine.ErrUnknownActor) {
		t.Fatalf("err = %v, want ErrUnknownActor", err)
	}
	if err := c.UpdateUI(ctx, models.UIConfig{FontSize: 14}); err != nil {
		t.Fatalf("ui update: %v", err)
	}
}

func TestOperatorFlow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	store := &memStore{}
	op := NewOperator(engine.New(s.commands()), store, settings.Default())

	if diff := cmp.Diff(settings.Default(), op.OpenForm(ctx)); diff != "" {
		t.Fatalf("empty store should open defaults (-want +got):\n%s", diff)
	}
	if _, err := op.Select("A", models.ActorDamage); !errors.Is(err, ErrNoGame) {
		t.Fatalf("select before start: %v", err)
	}

	form := testForm("A", "B")
	if _, err := op.Start(ctx, form); err != nil {
		t.Fatalf("start: %v", err)
	}
	if diff := cmp.Diff(form, op.OpenForm(ctx)); diff != "" {
		t.Fatalf("form should be saved on start (-want +got):\n%s", diff)
	}

	if _, err := op.Select("Z", models.ActorDamage); !errors.Is(err, ErrTeamUnavailable) {
		t.Fatalf("select unknown team: %v", err)
	}
	if submitted, err := op.Submit(ctx, true); submitted || err != nil {
		t.Fatalf("unarmed submit = %v, %v", submitted, err)
	}

	// Incorrect damage recoils on the attacker.
	if armed, err := op.Select("A", models.ActorDamage); !armed || err != nil {
		t.Fatalf("select = %v, %v", armed, err)
	}
	if submitted, err := op.Submit(ctx, false); !submitted || err != nil {
		t.Fatalf("submit = %v, %v", submitted, err)
	}
	if _, armed := op.Armed(); armed {
		t.Fatal("submit should disarm")
	}
	if got := op.Board().Rows[0].DamagePercent; got != 30 {
		t.Fatalf("A damage = %d%%, want 30%%", got)
	}

	// A correct damage by A maxes B, then a correct smash eliminates it.
	op.Select("A", models.ActorDamage)
	op.Submit(ctx, true)
	op.Select("A", models.ActorSmash)
	if _, err := op.Submit(ctx, true); err != nil {
		t.Fatalf("smash: %v", err)
	}
	board := op.Board()
	if !board.Rows[1].Eliminated || board.Rows[0].Up != 1 || board.Survivors != 1 {
		t.Fatalf("board after smash = %+v", board)
	}
	if _, err := op.Select("B", models.ActorSmash); !errors.Is(err, ErrTeamUnavailable) {
		t.Fatalf("eliminated team should not be selectable: %v", err)
	}

	state, err := op.Undo(ctx)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if state.States["B"].Down != 0 {
		t.Fatalf("undo should restore B: %+v", state.States["B"])
	}
	state, err = op.Redo(ctx)
	if err != nil {
		t.Fatalf("redo: %v", err)
	}
	if state.States["B"].Down != 1 {
		t.Fatalf("redo should replay the smash: %+v", state.States["B"])
	}

	if got := op.SetFontSize(ctx, 99); got.FontSize != models.MaxFontSize {
		t.Fatalf("font size = %d, want %d", got.FontSize, models.MaxFontSize)
	}

	state, err = op.Reset(ctx)
	if err != nil || state != nil {
		t.Fatalf("reset = %+v, %v", state, err)
	}
	if _, err := op.Undo(ctx); connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("undo after reset: %v", err)
	}
}

func TestOperatorStartRejectsInvalidForm(t *testing.T) {
	s := newStack(t)
	store := &memStore{}
	op := NewOperator(engine.New(s.commands()), store, settings.Default())

	if _, err := op.Start(context.Background(), settings.Settings{Rule: models.DefaultRule()}); err == nil {
		t.Fatal("expected an error for a form without teams")
	}
	if store.saved != nil {
		t.Fatal("an invalid form must not be saved")
	}
}

func TestOperatorStartSurvivesSaveFailure(t *testing.T) {
	s := newStack(t)
	op := NewOperator(engine.New(s.commands()), &memStore{err: errors.New("disk full")}, settings.Default())

	state, err := op.Start(context.Background(), testForm("A"))
	if err != nil || state == nil {
		t.Fatalf("start = %+v, %v", state, err)
	}
}

func TestOperatorSaveFormPersistsEdits(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	op := NewOperator(engine.New(nil), store, settings.Default())

	form := op.OpenForm(ctx)
	if diff := cmp.Diff(settings.Default(), form); diff != "" {
		t.Fatalf("empty store should give defaults (-want +got):\n%s", diff)
	}

	form.Names = []string{"Mario", "Kirby"}
	form.Rule.Stock = &models.StockRule{Count: 3, CanSteal: true}
	if err := op.SaveForm(ctx, form); err != nil {
		t.Fatalf("save form: %v", err)
	}
	if diff := cmp.Diff(form, op.OpenForm(ctx)); diff != "" {
		t.Fatalf("reopened form mismatch (-want +got):\n%s", diff)
	}

	if err := op.SaveForm(ctx, settings.Settings{Rule: form.Rule}); err == nil {
		t.Fatal("expected an error for a form without teams")
	}
	if diff := cmp.Diff(form, op.OpenForm(ctx)); diff != "" {
		t.Fatalf("invalid form overwrote the stored one (-want +got):\n%s", diff)
	}
}

func TestOperatorDeselectsEliminatedTeam(t *testing.T) {
	ctx := context.Background()
	op := NewOperator(engine.New(nil), &memStore{}, settings.Default())
	form := testForm("A", "B")
	op.HandleMessage(ctx, models.Message{
		Event:  models.InitializeEvent(form.Rule),
		Update: models.Teams{"A": models.NewTeamState("A"), "B": models.NewTeamState("B")},
	})

	if armed, err := op.Select("A", models.ActorSmash); !armed || err != nil {
		t.Fatalf("select = %v, %v", armed, err)
	}

	// Another operator's smash eliminates A while it is armed here.
	op.HandleMessage(ctx, models.Message{
		Event:  models.AnswerEvent(models.ActorSmash, true),
		Update: models.Teams{"A": {Name: "A", Down: 1}},
	})

	armed, err := op.Select("A", models.ActorSmash)
	if armed || err != nil {
		t.Fatalf("toggle off = %v, %v", armed, err)
	}
	if current, ok := op.Armed(); ok {
		t.Fatalf("still armed: %+v", current)
	}

	if _, err := op.Select("A", models.ActorSmash); !errors.Is(err, ErrTeamUnavailable) {
		t.Fatalf("arming an eliminated team: err = %v", err)
	}
}

func TestOperatorSubmitAfterRemoteReset(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	op := NewOperator(engine.New(s.commands()), &memStore{}, settings.Default())
	if _, err := op.Start(ctx, testForm("A", "B")); err != nil {
		t.Fatalf("start: %v", err)
	}
	op.Select("A", models.ActorSmash)

	op.HandleMessage(ctx, models.Message{Event: models.ResetEvent(), Update: models.Teams{}})

	submitted, err := op.Submit(ctx, true)
	if !submitted || !errors.Is(err, ErrNoGame) {
		t.Fatalf("submit = %v, %v", submitted, err)
	}
	if _, armed := op.Armed(); armed {
		t.Fatal("selection should be cleared")
	}
}

func TestDisplayFollowsOperator(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	display := NewDisplay(engine.New(s.commands()))
	go display.Subscriber(s.wsURL()).Run(ctx)
	eventually(t, "display connection", func() bool { return s.gateway.Stats().TotalConnections == 1 })

	if display.Board().Synced {
		t.Fatal("display should not be synced before a game exists")
	}

	op := NewOperator(engine.New(s.commands()), &memStore{}, settings.Default())
	if _, err := op.Start(ctx, testForm("A", "B", "C")); err != nil {
		t.Fatalf("start: %v", err)
	}
	op.Select("B", models.ActorDamage)
	if _, err := op.Submit(ctx, true); err != nil {
		t.Fatalf("submit: %v", err)
	}
	op.SetFontSize(ctx, 20)

	eventually(t, "display to match operator", func() bool {
		return cmp.Equal(op.Board(), display.Board())
	})
	eventually(t, "ui update", func() bool { return display.UI().FontSize == 20 })

	// A display joining mid-game bootstraps from Sync.
	late := NewDisplay(engine.New(s.commands()))
	go late.Subscriber(s.wsURL()).Run(ctx)
	eventually(t, "late display to sync", func() bool {
		return cmp.Equal(op.Board(), late.Board())
	})
	if late.UI().FontSize != models.DefaultFontSize {
		t.Fatalf("late display font = %d, want default", late.UI().FontSize)
	}

	var out strings.Builder
	if err := late.Render(&out); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out.String(), "LIVES") {
		t.Fatalf("render output:\n%s", out.String())
	}
}

func TestSubscriberReconnects(t *testing.T) {
	var accepted atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted.Add(1)
		conn.Close()
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	var bootstraps atomic.Int32
	sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"),
		func(context.Context, models.Message) {},
		WithBootstrap(func(context.Context) error {
			bootstraps.Add(1)
			return errors.New("no game")
		}),
		WithSubscriberClock(clock),
		WithReconnectWait(5*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	eventually(t, "first bootstrap", func() bool { return bootstraps.Load() == 1 })
	waitCtx, waitCancel := context.WithTimeout(ctx, 3*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("subscriber never waited to reconnect: %v", err)
	}
	clock.Advance(5 * time.Second)
	eventually(t, "second bootstrap", func() bool { return bootstraps.Load() == 2 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber did not stop")
	}
	if accepted.Load() < 2 {
		t.Fatalf("accepted = %d, want at least 2", accepted.Load())
	}
}

func TestDisplaySkipsUIInEngine(t *testing.T) {
	e := engine.New(nil)
	d := NewDisplay(e)
	d.HandleMessage(context.Background(), models.Message{Event: models.UIUpdateEvent(models.UIConfig{FontSize: 100}), Update: models.Teams{}})

	if d.UI().FontSize != models.MaxFontSize {
		t.Fatalf("font = %d, want clamped max", d.UI().FontSize)
	}
	if e.Version() != 0 {
		t.Fatal("ui update must not reach the engine")
	}
}
