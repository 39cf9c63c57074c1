package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
	"github.com/smallbiznis/metalid/internal/identity/password"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	memberservice "github.com/smallbiznis/metalid/internal/member/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidAdminMemberID = errors.New("invalid_bootstrap_admin_member_id")

// EnsureBootstrapAdmin makes sure the configured member exists and carries the
// admin flag. With an email and password it also creates a confirmed local
// identity and binds it, so a fresh install can sign in without an invite.
// Existing bindings are left alone.
func EnsureBootstrapAdmin(ctx context.Context, db *gorm.DB, cfg config.BootstrapConfig, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if cfg.AdminMemberID == "" {
		return nil
	}
	if !memberservice.ValidID(cfg.AdminMemberID) {
		return ErrInvalidAdminMemberID
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := clk.Now().UTC()

		member, err := ensureAdminMember(ctx, tx, cfg.AdminMemberID, now)
		if err != nil {
			return err
		}

		if member.AuthIdentity != nil || cfg.AdminEmail == "" || cfg.AdminPassword == "" {
			return nil
		}
		if node == nil {
			return errors.New("seed id generator is required")
		}

		email, err := identitydomain.NormalizeEmail(cfg.AdminEmail)
		if err != nil {
			return fmt.Errorf("bootstrap admin email: %w", err)
		}

		var identity identitydomain.Identity
		err = tx.WithContext(ctx).Where("email = ?", email).First(&identity).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			hashed, err := password.Hash(cfg.AdminPassword)
			if err != nil {
				return err
			}
			identity = identitydomain.Identity{
				ID:               node.Generate(),
				Email:            email,
				PasswordHash:     hashed,
				EmailConfirmedAt: &now,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := tx.WithContext(ctx).Create(&identity).Error; err != nil {
				return err
			}
		}

		identityID := identity.ID.String()
		if err := tx.WithContext(ctx).
			Model(&memberdomain.Member{}).
			Where("id = ? AND auth_identity IS NULL", member.ID).
			Updates(map[string]any{
				"auth_identity": identityID,
				"email":         email,
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}

		log.Info("bootstrap admin bound",
			zap.String("member_id", member.ID),
			zap.String("identity_id", identityID),
		)
		return nil
	})
}

func ensureAdminMember(ctx context.Context, tx *gorm.DB, id string, now time.Time) (*memberdomain.Member, error) {
	var member memberdomain.Member
	err := tx.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if err == nil {
		if member.IsAdmin {
			return &member, nil
		}
		if err := tx.WithContext(ctx).
			Model(&memberdomain.Member{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_admin": true, "updated_at": now}).Error; err != nil {
			return nil, err
		}
		member.IsAdmin = true
		return &member, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	member = memberdomain.Member{
		ID:        id,
		Type:      memberdomain.TypeProfile,
		Status:    memberdomain.StatusActive,
		IsAdmin:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}
