package domain

import (
	"context"
	"errors"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 250
)

// ListAuditLogRequest filters the log. Empty fields match everything.
// Before is an entry id; only older entries are returned.
type ListAuditLogRequest struct {
	Action     string
	TargetType string
	TargetID   string
	Before     string
	Limit      int
}

type Service interface {
	// AuditLog appends an entry. An empty actorType takes the actor from ctx,
	// falling back to system.
	AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) ([]AuditLog, error)
}

var ErrInvalidAction = errors.New("invalid_action")
