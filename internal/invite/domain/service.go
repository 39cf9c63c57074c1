package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	// Issue supersedes every live token of the member and returns a fresh one.
	Issue(ctx context.Context, memberID string) (IssuedToken, error)
	IssueTx(ctx context.Context, tx *gorm.DB, memberID string) (IssuedToken, error)
	// Validate returns the bound member id of a usable token.
	Validate(ctx context.Context, token string) (string, error)
	// Consume marks the token used inside tx. It fails with the same errors
	// as Validate when the token is no longer usable.
	Consume(ctx context.Context, tx *gorm.DB, token string) (string, error)
	// ActiveFor returns nil when the member has no live token.
	ActiveFor(ctx context.Context, memberID string) (*IssuedToken, error)
	InviteURL(token string) string
}

var (
	ErrNotFound    = errors.New("token_not_found")
	ErrAlreadyUsed = errors.New("token_already_used")
	ErrExpired     = errors.New("token_expired")
)
