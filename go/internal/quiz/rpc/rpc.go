// Package rpc defines the smash quiz command service: procedure paths,
// request shapes and the JSON codec shared by the server and its clients.
package rpc

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
	"github.com/mcdev12/smashquiz/go/internal/models"
)

const QuizServiceName = "smashquiz.v1.QuizService"

const (
	QuizServiceInitializeProcedure = "/smashquiz.v1.QuizService/Initialize"
	QuizServiceSyncProcedure       = "/smashquiz.v1.QuizService/Sync"
	QuizServiceUndoProcedure       = "/smashquiz.v1.QuizService/Undo"
	QuizServiceRedoProcedure       = "/smashquiz.v1.QuizService/Redo"
	QuizServiceResetProcedure      = "/smashquiz.v1.QuizService/Reset"
	QuizServiceSmashProcedure      = "/smashquiz.v1.QuizService/Smash"
	QuizServiceDamageProcedure     = "/smashquiz.v1.QuizService/Damage"
	QuizServiceUIUpdateProcedure   = "/smashquiz.v1.QuizService/UIUpdate"
)

// InitializeRequest starts a game. A nil Rule selects the default rule.
type InitializeRequest struct {
	Rule  *models.Rule `json:"rule,omitempty"`
	Names []string     `json:"names"`
}

type Empty struct{}

// ScoreRequest is shared by Smash and Damage.
type ScoreRequest struct {
	Attacker string `json:"attacker"`
	Correct  bool   `json:"correct"`
}

type UIUpdateRequest struct {
	UIConfig models.UIConfig `json:"uiConfig"`
}

// JSONCodec encodes plain Go structs with encoding/json. It registers under
// the "json" name, replacing connect's protobuf JSON codec.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// WithJSON configures a handler or client to speak the JSON codec.
func WithJSON() connect.Option {
	return connect.WithCodec(JSONCodec{})
}
