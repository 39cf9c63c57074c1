package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

//go:generate mockgen -source=provider.go -destination=../mocks/mock_provider.go -package=mocks

type SignUpRequest struct {
	Email       string
	Password    string
	InviteToken string
}

// Ref identifies a credential identity to callers outside this package.
type Ref struct {
	ID    string
	Email string
}

// Grant is an issued login session. Token is the raw cookie value.
type Grant struct {
	Ref
	Token     string
	ExpiresAt time.Time
	Next      string
}

// Provider is the credential identity collaborator. SignUp receives the
// caller's transaction so adapters backed by the same store can join it.
type Provider interface {
	SignUp(ctx context.Context, tx *gorm.DB, req SignUpRequest) (Ref, error)
	Exists(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, identityID string) error
	// SendConfirmation mails a one-time code whose callback lands on next.
	SendConfirmation(ctx context.Context, identityID, next string) error
	ExchangeCode(ctx context.Context, code string) (*Grant, error)
	SignIn(ctx context.Context, email, password string) (*Grant, error)
	Authenticate(ctx context.Context, token string) (*Ref, error)
	SignOut(ctx context.Context, token string) error
}

var (
	ErrEmailExists        = errors.New("email_exists")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailNotConfirmed  = errors.New("email_not_confirmed")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrIdentityNotFound   = errors.New("identity_not_found")
	ErrInvalidSession     = errors.New("invalid_session")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionRevoked     = errors.New("session_revoked")
)
