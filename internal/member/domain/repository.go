package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Member, error)
	FindByAuthIdentity(ctx context.Context, db *gorm.DB, identityID string) (*Member, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Member, error)
	List(ctx context.Context, db *gorm.DB) ([]*Member, error)
	Stats(ctx context.Context, db *gorm.DB) (Stats, error)
	BumpTokenEpoch(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error)
	BindIdentity(ctx context.Context, db *gorm.DB, id, identityID, email string, now time.Time) (bool, error)
	Activate(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error)
	TouchLogin(ctx context.Context, db *gorm.DB, id string, now time.Time) error
}
