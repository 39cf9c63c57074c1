package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindProfile(ctx context.Context, db *gorm.DB, memberID string) (*Profile, error)
	UpsertProfile(ctx context.Context, db *gorm.DB, profile *Profile) error
	ListLinks(ctx context.Context, db *gorm.DB, memberID string) ([]Link, error)
	DeleteLinks(ctx context.Context, db *gorm.DB, memberID string) error
	InsertLinks(ctx context.Context, db *gorm.DB, links []Link) error
}
