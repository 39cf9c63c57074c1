package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
	invitedomain "github.com/smallbiznis/metalid/internal/invite/domain"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/smallbiznis/metalid/internal/observability/metrics"
	"github.com/smallbiznis/metalid/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tokenLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Invites  invitedomain.Service
	Members  memberdomain.Service
	Identity identitydomain.Provider
	Locker   domain.TokenLocker  `optional:"true"`
	Audit    auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	invites  invitedomain.Service
	members  memberdomain.Service
	identity identitydomain.Provider
	locker   domain.TokenLocker
	audit    auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("registration.service"),
		invites:  p.Invites,
		members:  p.Members,
		identity: p.Identity,
		locker:   p.Locker,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

func (s *Service) Inspect(ctx context.Context, token string) (string, error) {
	memberID, err := s.invites.Validate(ctx, token)
	if err != nil {
		return "", mapTokenError(err)
	}
	return memberID, nil
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (result domain.RegisterResult, err error) {
	defer func() {
		s.metrics.RecordRegistration(ctx, outcome(err))
	}()

	memberID, err := s.Inspect(ctx, req.Token)
	if err != nil {
		return domain.RegisterResult{}, err
	}

	if utf8.RuneCountInString(req.Password) < domain.MinPasswordLength {
		return domain.RegisterResult{}, domain.ErrWeakPassword
	}
	if req.Password != req.PasswordConfirm {
		return domain.RegisterResult{}, domain.ErrPasswordMismatch
	}
	email, err := identitydomain.NormalizeEmail(req.Email)
	if err != nil {
		return domain.RegisterResult{}, domain.ErrInvalidEmail
	}

	exists, err := s.identity.Exists(ctx, email)
	if err != nil {
		return domain.RegisterResult{}, &domain.DependencyError{Dependency: domain.DependencyIdentity, Err: err}
	}
	if exists {
		return domain.RegisterResult{}, domain.ErrDuplicateEmail
	}

	release, err := s.lockToken(ctx, req.Token)
	if err != nil {
		return domain.RegisterResult{}, err
	}
	defer release()

	var created *identitydomain.Ref
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumedFor, err := s.invites.Consume(ctx, tx, req.Token)
		if err != nil {
			return mapTokenError(err)
		}
		if consumedFor != memberID {
			return domain.ErrInvalidLink
		}

		ref, err := s.identity.SignUp(ctx, tx, identitydomain.SignUpRequest{
			Email:       email,
			Password:    req.Password,
			InviteToken: req.Token,
		})
		if err != nil {
			switch {
			case errors.Is(err, identitydomain.ErrEmailExists):
				return domain.ErrDuplicateEmail
			case errors.Is(err, identitydomain.ErrInvalidEmail):
				return domain.ErrInvalidEmail
			default:
				return &domain.DependencyError{Dependency: domain.DependencyIdentity, Err: err}
			}
		}
		created = &ref

		if err := s.members.BindIdentity(ctx, tx, memberID, ref.ID, ref.Email); err != nil {
			if errors.Is(err, memberdomain.ErrAlreadyBound) {
				return domain.ErrAlreadyRegistered
			}
			return asDependency(err)
		}
		return nil
	})
	if err != nil {
		if created != nil {
			s.compensate(ctx, created.ID)
		}
		return domain.RegisterResult{}, asDependency(err)
	}

	if err := s.identity.SendConfirmation(ctx, created.ID, identitydomain.DefaultNextPath); err != nil {
		s.log.Warn("confirmation mail failed", zap.String("member_id", memberID), zap.Error(err))
	}
	s.record(ctx, auditdomain.ActionMemberRegistered, memberID, map[string]any{
		"identity_id": created.ID,
	})

	s.log.Info("member registered", zap.String("member_id", memberID))
	return domain.RegisterResult{MemberID: memberID, PendingConfirmation: true}, nil
}

func (s *Service) Confirm(ctx context.Context, code, next string) (domain.ConfirmResult, error) {
	grant, err := s.identity.ExchangeCode(ctx, code)
	if err != nil {
		if errors.Is(err, identitydomain.ErrInvalidCode) {
			return domain.ConfirmResult{}, domain.ErrAuthFailed
		}
		return domain.ConfirmResult{}, &domain.DependencyError{Dependency: domain.DependencyIdentity, Err: err}
	}

	redirect := grant.Next
	if strings.TrimSpace(next) != "" {
		redirect = next
	}
	result := domain.ConfirmResult{
		Grant:    grant,
		Redirect: identitydomain.SafeNext(redirect),
	}

	member, err := s.members.FindByAuthIdentity(ctx, grant.ID)
	if err != nil {
		return domain.ConfirmResult{}, asDependency(err)
	}
	if member == nil {
		return result, nil
	}
	result.MemberID = member.ID

	activated, err := s.members.Activate(ctx, nil, member.ID)
	switch {
	case errors.Is(err, memberdomain.ErrNotActivatable):
		s.log.Warn("confirmed identity bound to a member that cannot activate", zap.String("member_id", member.ID))
	case err != nil:
		return domain.ConfirmResult{}, asDependency(err)
	case activated:
		s.metrics.RecordActivation(ctx)
		s.record(ctx, auditdomain.ActionMemberActivated, member.ID, nil)
	}

	return result, nil
}

func (s *Service) ResendConfirmation(ctx context.Context, rawEmail string) error {
	email, err := identitydomain.NormalizeEmail(rawEmail)
	if err != nil {
		return domain.ErrInvalidEmail
	}
	member, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return asDependency(err)
	}
	if member == nil || member.IsActive() || member.AuthIdentity == nil {
		return nil
	}
	if err := s.identity.SendConfirmation(ctx, *member.AuthIdentity, identitydomain.DefaultNextPath); err != nil {
		return &domain.DependencyError{Dependency: domain.DependencyIdentity, Err: err}
	}
	return nil
}

// lockToken guards against two browsers submitting the same card at once.
// Without a locker the conditional consume alone decides the winner.
func (s *Service) lockToken(ctx context.Context, token string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	sum := sha256.Sum256([]byte(token))
	key := "register:token:" + hex.EncodeToString(sum[:])

	lockToken, ok, err := s.locker.TryLock(ctx, key, tokenLockTTL)
	if err != nil {
		s.log.Warn("token lock unavailable", zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, domain.ErrInProgress
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, lockToken); err != nil {
			s.log.Warn("token lock release failed", zap.Error(err))
		}
	}, nil
}

func (s *Service) compensate(ctx context.Context, identityID string) {
	err := s.identity.Delete(context.WithoutCancel(ctx), identityID)
	if err == nil || errors.Is(err, identitydomain.ErrIdentityNotFound) {
		return
	}
	s.log.Error("failed to delete orphaned identity", zap.String("identity_id", identityID), zap.Error(err))
}

func (s *Service) record(ctx context.Context, action, memberID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.AuditLog(ctx, string(auditdomain.ActorTypeMember), &memberID, action, auditdomain.TargetMember, &memberID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, invitedomain.ErrNotFound):
		return domain.ErrInvalidLink
	case errors.Is(err, invitedomain.ErrAlreadyUsed):
		return domain.ErrUsedLink
	case errors.Is(err, invitedomain.ErrExpired):
		return domain.ErrExpiredLink
	default:
		return &domain.DependencyError{Dependency: domain.DependencyStore, Err: err}
	}
}

// asDependency wraps errors that are not already part of the registration
// vocabulary.
func asDependency(err error) error {
	if err == nil {
		return nil
	}
	var depErr *domain.DependencyError
	if errors.As(err, &depErr) {
		return err
	}
	for _, known := range []error{
		domain.ErrInvalidLink, domain.ErrUsedLink, domain.ErrExpiredLink,
		domain.ErrDuplicateEmail, domain.ErrInvalidEmail, domain.ErrAlreadyRegistered,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &domain.DependencyError{Dependency: domain.DependencyStore, Err: err}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var depErr *domain.DependencyError
	if errors.As(err, &depErr) {
		return "error"
	}
	return err.Error()
}
