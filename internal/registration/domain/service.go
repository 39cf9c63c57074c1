package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
)

type RegisterRequest struct {
	Token           string
	Email           string
	Password        string
	PasswordConfirm string
}

type RegisterResult struct {
	MemberID            string `json:"member_id"`
	PendingConfirmation bool   `json:"pending_confirmation"`
}

type ConfirmResult struct {
	Grant    *identitydomain.Grant
	MemberID string
	Redirect string
}

type Service interface {
	// Inspect reports the member a registration link belongs to.
	Inspect(ctx context.Context, token string) (string, error)
	Register(ctx context.Context, req RegisterRequest) (RegisterResult, error)
	// Confirm exchanges an emailed code for a session and activates the
	// member bound to the confirmed identity.
	Confirm(ctx context.Context, code, next string) (ConfirmResult, error)
	// ResendConfirmation re-sends the confirmation mail of a pending member.
	// It reports success whether or not the address is known.
	ResendConfirmation(ctx context.Context, email string) error
}

// TokenLocker serializes concurrent submissions of the same invite token.
type TokenLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

const MinPasswordLength = 8

var (
	ErrInvalidLink       = errors.New("invalid_link")
	ErrUsedLink          = errors.New("used_link")
	ErrExpiredLink       = errors.New("expired_link")
	ErrWeakPassword      = errors.New("weak_password")
	ErrPasswordMismatch  = errors.New("password_mismatch")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrDuplicateEmail    = errors.New("duplicate_email")
	ErrAlreadyRegistered = errors.New("already_registered")
	ErrInProgress        = errors.New("registration_in_progress")
	ErrAuthFailed        = errors.New("auth_failed")
)

// DependencyError wraps a failure of the store or the identity provider.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

const (
	DependencyStore    = "store"
	DependencyIdentity = "identity_provider"
)
