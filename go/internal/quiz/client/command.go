// Package client holds the operator and display sides of a smash quiz: a
// command client for the backend, a websocket subscriber for the broadcast
// stream, and the two shells that drive an engine from them.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
	"github.com/mcdev12/smashquiz/go/internal/quiz/rpc"
)

// CommandClient calls the backend over connect. Errors are returned as the
// *connect.Error the transport produced.
type CommandClient struct {
	initialize *connect.Client[rpc.InitializeRequest, models.Message]
	sync       *connect.Client[rpc.Empty, models.Message]
	undo       *connect.Client[rpc.Empty, models.Message]
	redo       *connect.Client[rpc.Empty, models.Message]
	reset      *connect.Client[rpc.Empty, models.Message]
	smash      *connect.Client[rpc.ScoreRequest, models.Message]
	damage     *connect.Client[rpc.ScoreRequest, models.Message]
	uiUpdate   *connect.Client[rpc.UIUpdateRequest, models.Message]
}

var _ engine.Backend = (*CommandClient)(nil)

// NewCommandClient targets the backend at baseURL, e.g. http://localhost:8080.
func NewCommandClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *CommandClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{rpc.WithJSON()}, opts...)

	return &CommandClient{
		initialize: connect.NewClient[rpc.InitializeRequest, models.Message](httpClient, baseURL+rpc.QuizServiceInitializeProcedure, opts...),
		sync:       connect.NewClient[rpc.Empty, models.Message](httpClient, baseURL+rpc.QuizServiceSyncProcedure, opts...),
		undo:       connect.NewClient[rpc.Empty, models.Message](httpClient, baseURL+rpc.QuizServiceUndoProcedure, opts...),
		redo:       connect.NewClient[rpc.Empty, models.Message](httpClient, baseURL+rpc.QuizServiceRedoProcedure, opts...),
		reset:      connect.NewClient[rpc.Empty, models.Message](httpClient, baseURL+rpc.QuizServiceResetProcedure, opts...),
		smash:      connect.NewClient[rpc.ScoreRequest, models.Message](httpClient, baseURL+rpc.QuizServiceSmashProcedure, opts...),
		damage:     connect.NewClient[rpc.ScoreRequest, models.Message](httpClient, baseURL+rpc.QuizServiceDamageProcedure, opts...),
		uiUpdate:   connect.NewClient[rpc.UIUpdateRequest, models.Message](httpClient, baseURL+rpc.QuizServiceUIUpdateProcedure, opts...),
	}
}

func (c *CommandClient) Initialize(ctx context.Context, rule models.Rule, names []string) (models.Message, error) {
	return unary(ctx, c.initialize, &rpc.InitializeRequest{Rule: &rule, Names: names})
}

func (c *CommandClient) Sync(ctx context.Context) (models.Message, error) {
	return unary(ctx, c.sync, &rpc.Empty{})
}

func (c *CommandClient) Undo(ctx context.Context) (models.Message, error) {
	return unary(ctx, c.undo, &rpc.Empty{})
}

func (c *CommandClient) Redo(ctx context.Context) (models.Message, error) {
	return unary(ctx, c.redo, &rpc.Empty{})
}

func (c *CommandClient) Reset(ctx context.Context) (models.Message, error) {
	return unary(ctx, c.reset, &rpc.Empty{})
}

func (c *CommandClient) Score(ctx context.Context, actor models.Actor, attacker string, correct bool) (models.Message, error) {
	req := &rpc.ScoreRequest{Attacker: attacker, Correct: correct}
	switch actor {
	case models.ActorSmash:
		return unary(ctx, c.smash, req)
	case models.ActorDamage:
		return unary(ctx, c.damage, req)
	default:
		return models.Message{}, fmt.Errorf("%w: %q", engine.ErrUnknownActor, actor)
	}
}

// UpdateUI discards the echoed message; displays receive it by broadcast.
func (c *CommandClient) UpdateUI(ctx context.Context, cfg models.UIConfig) error {
	_, err := unary(ctx, c.uiUpdate, &rpc.UIUpdateRequest{UIConfig: cfg})
	return err
}

func unary[Req any](ctx context.Context, client *connect.Client[Req, models.Message], req *Req) (models.Message, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return models.Message{}, err
	}
	msg := *resp.Msg
	if msg.Update == nil {
		msg.Update = models.Teams{}
	}
	return msg, nil
}
