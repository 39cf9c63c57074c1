package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/metalid/internal/invite/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, token *domain.InviteToken) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invite_tokens (token, member_id, expires_at, used_at, created_at)
		 VALUES (?, ?, ?, NULL, ?)`,
		token.Token,
		token.MemberID,
		token.ExpiresAt,
		token.CreatedAt,
	).Error
}

func (r *repo) FindByToken(ctx context.Context, db *gorm.DB, token string) (*domain.InviteToken, error) {
	var item domain.InviteToken
	err := db.WithContext(ctx).Raw(
		`SELECT token, member_id, expires_at, used_at, created_at
		 FROM invite_tokens WHERE token = ?`,
		token,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.Token == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindLive(ctx context.Context, db *gorm.DB, memberID string, now time.Time) (*domain.InviteToken, error) {
	var item domain.InviteToken
	err := db.WithContext(ctx).Raw(
		`SELECT token, member_id, expires_at, used_at, created_at
		 FROM invite_tokens
		 WHERE member_id = ? AND used_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		memberID,
		now,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.Token == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ExpireLive(ctx context.Context, db *gorm.DB, memberID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invite_tokens SET expires_at = ?
		 WHERE member_id = ? AND used_at IS NULL AND expires_at > ?`,
		now,
		memberID,
		now,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkUsed(ctx context.Context, db *gorm.DB, token string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invite_tokens SET used_at = ?
		 WHERE token = ? AND used_at IS NULL AND expires_at > ?`,
		now,
		token,
		now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
