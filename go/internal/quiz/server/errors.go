package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/backend"
)

func toConnectError(err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidRule), errors.Is(err, backend.ErrNoTeams):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, backend.ErrTeamNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, backend.ErrNotInitialized), errors.Is(err, backend.ErrTeamNotActive):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, backend.ErrNoUndo), errors.Is(err, backend.ErrNoRedo):
		return connect.NewError(connect.CodeOutOfRange, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
