package service

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	"github.com/smallbiznis/metalid/internal/audit/masking"
	"github.com/smallbiznis/metalid/internal/clock"
	obscontext "github.com/smallbiznis/metalid/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	now := s.clock.Now()
	entry := &auditdomain.AuditLog{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Action:     action,
		TargetType: targetType,
		TargetID:   trimmed(targetID),
		Metadata:   envelope(ctx, metadata),
		CreatedAt:  now,
	}
	entry.ActorType, entry.ActorID = actor(ctx, actorType, actorID)

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Warn("audit insert failed", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) ([]auditdomain.AuditLog, error) {
	switch {
	case req.Limit <= 0:
		req.Limit = auditdomain.DefaultListLimit
	case req.Limit > auditdomain.MaxListLimit:
		req.Limit = auditdomain.MaxListLimit
	}
	entries, err := s.repo.List(ctx, s.db, req)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []auditdomain.AuditLog{}
	}
	return entries, nil
}

// envelope masks caller metadata and stamps the request id.
func envelope(ctx context.Context, metadata map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap(masking.MaskJSON(metadata))
	if out == nil {
		out = datatypes.JSONMap{}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		out["request_id"] = requestID
	}
	return out
}

func actor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	actorType = strings.TrimSpace(actorType)
	if actorType != "" {
		return actorType, trimmed(actorID)
	}
	ctxType, ctxID := obscontext.ActorFromContext(ctx)
	if ctxType == "" {
		return string(auditdomain.ActorTypeSystem), trimmed(actorID)
	}
	if id := trimmed(actorID); id != nil {
		return ctxType, id
	}
	return ctxType, trimmed(&ctxID)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
