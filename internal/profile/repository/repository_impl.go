package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/metalid/internal/profile/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindProfile(ctx context.Context, db *gorm.DB, memberID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Where("member_id = ?", memberID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repo) UpsertProfile(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "member_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name",
			"avatar_url",
			"bio_short",
			"bio_long",
			"team_name",
			"region",
			"career_start",
			"privacy_settings",
			"updated_at",
		}),
	}).Create(profile).Error
}

func (r *repo) ListLinks(ctx context.Context, db *gorm.DB, memberID string) ([]domain.Link, error) {
	var links []domain.Link
	err := db.WithContext(ctx).Raw(
		`SELECT id, member_id, platform, label, url, display_order
		 FROM links WHERE member_id = ?
		 ORDER BY display_order ASC, id ASC`,
		memberID,
	).Scan(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *repo) DeleteLinks(ctx context.Context, db *gorm.DB, memberID string) error {
	return db.WithContext(ctx).Exec(`DELETE FROM links WHERE member_id = ?`, memberID).Error
}

func (r *repo) InsertLinks(ctx context.Context, db *gorm.DB, links []domain.Link) error {
	if len(links) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&links).Error
}
