package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/metalid/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, query domain.ListAuditLogRequest) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	err := db.WithContext(ctx).
		Scopes(
			equals("action", query.Action),
			equals("target_type", query.TargetType),
			equals("target_id", query.TargetID),
			olderThan(query.Before),
		).
		Order("id DESC").
		Limit(query.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func equals(column, value string) func(*gorm.DB) *gorm.DB {
	value = strings.TrimSpace(value)
	return func(db *gorm.DB) *gorm.DB {
		if value == "" {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}

func olderThan(id string) func(*gorm.DB) *gorm.DB {
	id = strings.TrimSpace(id)
	return func(db *gorm.DB) *gorm.DB {
		if id == "" {
			return db
		}
		return db.Where("id < ?", id)
	}
}
