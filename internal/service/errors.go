package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/tablemates/internal/lifecycle"
	"github.com/mmynk/tablemates/internal/matching"
	"github.com/mmynk/tablemates/internal/storage"
)

var (
	errUnauthenticated = errors.New("caller identity required")
	errInvalidArgument = errors.New("invalid argument")
)

// toConnectError maps core errors onto Connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	switch {
	case errors.Is(err, errInvalidArgument), errors.Is(err, lifecycle.ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, matching.ErrNoSector):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, storage.ErrNotMember):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
