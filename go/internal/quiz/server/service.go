// Package server exposes the authoritative game over connect.
package server

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/rpc"
)

// GameApp defines what the service layer needs from the backend.
type GameApp interface {
	Initialize(ctx context.Context, rule *models.Rule, names []string) (models.Message, error)
	Sync(ctx context.Context) (models.Message, error)
	Undo(ctx context.Context) (models.Message, error)
	Redo(ctx context.Context) (models.Message, error)
	Reset(ctx context.Context) (models.Message, error)
	Smash(ctx context.Context, attacker string, correct bool) (models.Message, error)
	Damage(ctx context.Context, attacker string, correct bool) (models.Message, error)
	UpdateUI(ctx context.Context, cfg models.UIConfig) (models.Message, error)
}

// Service implements the QuizService procedures.
type Service struct {
	app GameApp
}

func NewService(app GameApp) *Service {
	return &Service{
		app: app,
	}
}

func (s *Service) Initialize(ctx context.Context, req *connect.Request[rpc.InitializeRequest]) (*connect.Response[models.Message], error) {
	msg, err := s.app.Initialize(ctx, req.Msg.Rule, req.Msg.Names)
	return respond(msg, err)
}

func (s *Service) Sync(ctx context.Context, _ *connect.Request[rpc.Empty]) (*connect.Response[models.Message], error) {
	return respond(s.app.Sync(ctx))
}

func (s *Service) Undo(ctx context.Context, _ *connect.Request[rpc.Empty]) (*connect.Response[models.Message], error) {
	return respond(s.app.Undo(ctx))
}

func (s *Service) Redo(ctx context.Context, _ *connect.Request[rpc.Empty]) (*connect.Response[models.Message], error) {
	return respond(s.app.Redo(ctx))
}

func (s *Service) Reset(ctx context.Context, _ *connect.Request[rpc.Empty]) (*connect.Response[models.Message], error) {
	return respond(s.app.Reset(ctx))
}

func (s *Service) Smash(ctx context.Context, req *connect.Request[rpc.ScoreRequest]) (*connect.Response[models.Message], error) {
	return respond(s.app.Smash(ctx, req.Msg.Attacker, req.Msg.Correct))
}

func (s *Service) Damage(ctx context.Context, req *connect.Request[rpc.ScoreRequest]) (*connect.Response[models.Message], error) {
	return respond(s.app.Damage(ctx, req.Msg.Attacker, req.Msg.Correct))
}

func (s *Service) UIUpdate(ctx context.Context, req *connect.Request[rpc.UIUpdateRequest]) (*connect.Response[models.Message], error) {
	return respond(s.app.UpdateUI(ctx, req.Msg.UIConfig))
}

func respond(msg models.Message, err error) (*connect.Response[models.Message], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&msg), nil
}

// NewQuizServiceHandler builds the HTTP handler for every procedure and
// returns the path prefix to mount it on.
func NewQuizServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{rpc.WithJSON()}, opts...)

	initialize := connect.NewUnaryHandler(rpc.QuizServiceInitializeProcedure, svc.Initialize, opts...)
	sync := connect.NewUnaryHandler(rpc.QuizServiceSyncProcedure, svc.Sync, opts...)
	undo := connect.NewUnaryHandler(rpc.QuizServiceUndoProcedure, svc.Undo, opts...)
	redo := connect.NewUnaryHandler(rpc.QuizServiceRedoProcedure, svc.Redo, opts...)
	reset := connect.NewUnaryHandler(rpc.QuizServiceResetProcedure, svc.Reset, opts...)
	smash := connect.NewUnaryHandler(rpc.QuizServiceSmashProcedure, svc.Smash, opts...)
	damage := connect.NewUnaryHandler(rpc.QuizServiceDamageProcedure, svc.Damage, opts...)
	uiUpdate := connect.NewUnaryHandler(rpc.QuizServiceUIUpdateProcedure, svc.UIUpdate, opts...)

	return "/" + rpc.QuizServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case rpc.QuizServiceInitializeProcedure:
			initialize.ServeHTTP(w, r)
		case rpc.QuizServiceSyncProcedure:
			sync.ServeHTTP(w, r)
		case rpc.QuizServiceUndoProcedure:
			undo.ServeHTTP(w, r)
		case rpc.QuizServiceRedoProcedure:
			redo.ServeHTTP(w, r)
		case rpc.QuizServiceResetProcedure:
			reset.ServeHTTP(w, r)
		case rpc.QuizServiceSmashProcedure:
			smash.ServeHTTP(w, r)
		case rpc.QuizServiceDamageProcedure:
			damage.ServeHTTP(w, r)
		case rpc.QuizServiceUIUpdateProcedure:
			uiUpdate.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
