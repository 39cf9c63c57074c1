package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/metalid/internal/member/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const memberColumns = `id, auth_identity, email, type, status, redirect_url, is_admin, token_epoch, created_at, updated_at, last_login_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO members (id, auth_identity, email, type, status, redirect_url, is_admin, token_epoch, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		member.ID,
		member.AuthIdentity,
		member.Email,
		member.Type,
		member.Status,
		member.RedirectURL,
		member.IsAdmin,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT `+memberColumns+` FROM members WHERE id = ?`,
		id,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == "" {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) FindByAuthIdentity(ctx context.Context, db *gorm.DB, identityID string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT `+memberColumns+` FROM members WHERE auth_identity = ? LIMIT 1`,
		identityID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == "" {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT `+memberColumns+` FROM members WHERE email = ? LIMIT 1`,
		email,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == "" {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Member, error) {
	var members []*domain.Member
	err := db.WithContext(ctx).
		Model(&domain.Member{}).
		Order("id asc").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB) (domain.Stats, error) {
	var stats domain.Stats
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS total,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending
		 FROM members`,
		domain.StatusActive,
		domain.StatusPending,
	).Scan(&stats).Error
	return stats, err
}

func (r *repo) BumpTokenEpoch(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE members SET token_epoch = token_epoch + 1, updated_at = ? WHERE id = ?`,
		now,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) BindIdentity(ctx context.Context, db *gorm.DB, id, identityID, email string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE members SET auth_identity = ?, email = ?, updated_at = ?
		 WHERE id = ? AND auth_identity IS NULL AND status = ?`,
		identityID,
		email,
		now,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Activate only succeeds for a pending member that has a bound identity and
// at least one consumed invite token.
func (r *repo) Activate(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE members SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND auth_identity IS NOT NULL
		   AND EXISTS (SELECT 1 FROM invite_tokens t WHERE t.member_id = members.id AND t.used_at IS NOT NULL)`,
		domain.StatusActive,
		now,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) TouchLogin(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE members SET last_login_at = ? WHERE id = ?`,
		now,
		id,
	).Error
}
