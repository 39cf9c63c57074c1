package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *InviteToken) error
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*InviteToken, error)
	FindLive(ctx context.Context, db *gorm.DB, memberID string, now time.Time) (*InviteToken, error)
	ExpireLive(ctx context.Context, db *gorm.DB, memberID string, now time.Time) (int64, error)
	MarkUsed(ctx context.Context, db *gorm.DB, token string, now time.Time) (bool, error)
}
