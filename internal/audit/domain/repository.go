package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	// List returns entries newest first.
	List(ctx context.Context, db *gorm.DB, query ListAuditLogRequest) ([]AuditLog, error)
}
