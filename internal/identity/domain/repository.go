package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertIdentity(ctx context.Context, db *gorm.DB, identity *Identity) error
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Identity, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Identity, error)
	DeleteIdentity(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	MarkConfirmed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error

	InsertConfirmation(ctx context.Context, db *gorm.DB, confirmation *Confirmation) error
	UseConfirmation(ctx context.Context, db *gorm.DB, codeHash string, now time.Time) (*Confirmation, error)

	InsertSession(ctx context.Context, db *gorm.DB, session *Session) error
	FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*Session, error)
	TouchSession(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	RevokeSession(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
}
