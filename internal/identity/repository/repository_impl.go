package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/metalid/internal/identity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIdentity(ctx context.Context, db *gorm.DB, identity *domain.Identity) error {
	return db.WithContext(ctx).Create(identity).Error
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Identity, error) {
	var identity domain.Identity
	err := db.WithContext(ctx).Where("email = ?", email).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Identity, error) {
	var identity domain.Identity
	err := db.WithContext(ctx).Where("id = ?", id).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// DeleteIdentity removes the identity with its sessions and confirmation codes.
func (r *repo) DeleteIdentity(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity_id = ?", id).Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("identity_id = ?", id).Delete(&domain.Confirmation{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Identity{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrIdentityNotFound
		}
		return nil
	})
}

func (r *repo) MarkConfirmed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE identities SET email_confirmed_at = COALESCE(email_confirmed_at, ?), updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	).Error
}

func (r *repo) InsertConfirmation(ctx context.Context, db *gorm.DB, confirmation *domain.Confirmation) error {
	return db.WithContext(ctx).Create(confirmation).Error
}

// UseConfirmation atomically marks an unused, unexpired code as used and
// returns it. It returns nil when no such code exists.
func (r *repo) UseConfirmation(ctx context.Context, db *gorm.DB, codeHash string, now time.Time) (*domain.Confirmation, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE identity_confirmations SET used_at = ?
		 WHERE code_hash = ? AND used_at IS NULL AND expires_at > ?`,
		now,
		codeHash,
		now,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var confirmation domain.Confirmation
	if err := db.WithContext(ctx).Where("code_hash = ?", codeHash).First(&confirmation).Error; err != nil {
		return nil, err
	}
	return &confirmation, nil
}

func (r *repo) InsertSession(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.Session, error) {
	var session domain.Session
	err := db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) TouchSession(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", id).Update("last_seen_at", now).Error
}

func (r *repo) RevokeSession(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", now).Error
}
