package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type CreateMemberRequest struct {
	ID          string
	Type        Type
	RedirectURL string
	IsAdmin     bool
}

type Service interface {
	Create(ctx context.Context, req CreateMemberRequest) (Member, error)
	// CreateTx runs Create inside a caller-owned transaction.
	CreateTx(ctx context.Context, tx *gorm.DB, req CreateMemberRequest) (Member, error)
	Get(ctx context.Context, id string) (Member, error)
	List(ctx context.Context) ([]Member, error)
	Stats(ctx context.Context) (Stats, error)
	// FindByAuthIdentity returns nil when no member is bound to identityID.
	FindByAuthIdentity(ctx context.Context, identityID string) (*Member, error)
	// FindByEmail returns nil when no member registered with email.
	FindByEmail(ctx context.Context, email string) (*Member, error)
	BindIdentity(ctx context.Context, tx *gorm.DB, memberID, identityID, email string) error
	// Activate reports whether this call moved the member from pending to active.
	Activate(ctx context.Context, tx *gorm.DB, memberID string) (bool, error)
	TouchLogin(ctx context.Context, memberID string) error
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidType     = errors.New("invalid_type")
	ErrMissingRedirect = errors.New("missing_redirect")
	ErrDuplicateID     = errors.New("duplicate_id")
	ErrNotFound        = errors.New("not_found")
	ErrAlreadyBound    = errors.New("already_bound")
	ErrNotActivatable  = errors.New("not_activatable")
)
