package authorization

import (
	"context"
	"errors"
)

type Service interface {
	// Authorize checks whether the member may perform action on object.
	// Roles are derived from the member's admin flag on every call.
	Authorize(ctx context.Context, memberID string, isAdmin bool, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
