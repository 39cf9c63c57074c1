package service

import (
	"context"
	"strings"

	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	invitedomain "github.com/smallbiznis/metalid/internal/invite/domain"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/smallbiznis/metalid/internal/observability/metrics"
	"github.com/smallbiznis/metalid/internal/provisioning/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Members memberdomain.Service
	Invites invitedomain.Service
	Audit   auditdomain.Service `optional:"true"`
	Metrics *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	members memberdomain.Service
	invites invitedomain.Service
	audit   auditdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("provisioning.service"),
		members: p.Members,
		invites: p.Invites,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) CreateMember(ctx context.Context, req domain.CreateMemberRequest) (domain.CreateMemberResponse, error) {
	var (
		member memberdomain.Member
		issued invitedomain.IssuedToken
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		member, err = s.members.CreateTx(ctx, tx, req)
		if err != nil {
			return err
		}
		issued, err = s.invites.IssueTx(ctx, tx, member.ID)
		return err
	})
	if err != nil {
		return domain.CreateMemberResponse{}, err
	}

	s.metrics.RecordMemberCreated(ctx, string(member.Type))
	s.metrics.RecordTokenIssued(ctx, "initial")
	s.record(ctx, auditdomain.ActionMemberCreated, member.ID, map[string]any{
		"type": string(member.Type),
	})
	s.record(ctx, auditdomain.ActionInviteIssued, member.ID, map[string]any{
		"reason":     "initial",
		"expires_at": issued.ExpiresAt,
	})

	return domain.CreateMemberResponse{
		MemberID:  member.ID,
		InviteURL: issued.URL,
	}, nil
}

func (s *Service) ReissueToken(ctx context.Context, memberID string) (domain.ReissueTokenResponse, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return domain.ReissueTokenResponse{}, domain.ErrMissingMemberID
	}

	issued, err := s.invites.Issue(ctx, memberID)
	if err != nil {
		return domain.ReissueTokenResponse{}, err
	}

	s.metrics.RecordTokenIssued(ctx, "reissue")
	s.record(ctx, auditdomain.ActionInviteIssued, memberID, map[string]any{
		"reason":     "reissue",
		"expires_at": issued.ExpiresAt,
	})

	return domain.ReissueTokenResponse{InviteURL: issued.URL}, nil
}

func (s *Service) record(ctx context.Context, action, memberID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.AuditLog(ctx, "", nil, action, auditdomain.TargetMember, &memberID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.String("member_id", memberID), zap.Error(err))
	}
}
