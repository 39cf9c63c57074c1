package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	"github.com/smallbiznis/metalid/internal/invite/domain"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tokenBytes = 32

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Cfg     config.Config
	Policy  *config.InvitePolicyHolder
	Repo    domain.Repository
	Members memberdomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	baseURL string
	policy  *config.InvitePolicyHolder
	repo    domain.Repository
	members memberdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invite.service"),
		clock:   p.Clock,
		baseURL: strings.TrimRight(p.Cfg.AppURL, "/"),
		policy:  p.Policy,
		repo:    p.Repo,
		members: p.Members,
	}
}

func (s *Service) Issue(ctx context.Context, memberID string) (domain.IssuedToken, error) {
	var issued domain.IssuedToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		issued, err = s.IssueTx(ctx, tx, memberID)
		return err
	})
	if err != nil {
		return domain.IssuedToken{}, err
	}
	return issued, nil
}

// IssueTx bumps the member's token epoch first so that concurrent issues for
// the same member queue on the member row before touching invite_tokens.
func (s *Service) IssueTx(ctx context.Context, tx *gorm.DB, memberID string) (domain.IssuedToken, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return domain.IssuedToken{}, memberdomain.ErrNotFound
	}

	now := s.clock.Now()
	ok, err := s.members.BumpTokenEpoch(ctx, tx, memberID, now)
	if err != nil {
		return domain.IssuedToken{}, err
	}
	if !ok {
		return domain.IssuedToken{}, memberdomain.ErrNotFound
	}

	expired, err := s.repo.ExpireLive(ctx, tx, memberID, now)
	if err != nil {
		return domain.IssuedToken{}, err
	}

	value, err := generateToken()
	if err != nil {
		return domain.IssuedToken{}, err
	}

	token := domain.InviteToken{
		Token:     value,
		MemberID:  memberID,
		ExpiresAt: now.Add(s.policy.Get().TokenTTL),
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, tx, &token); err != nil {
		return domain.IssuedToken{}, err
	}

	s.log.Info("invite token issued",
		zap.String("member_id", memberID),
		zap.Int64("superseded", expired),
		zap.Time("expires_at", token.ExpiresAt),
	)

	return s.toIssued(token), nil
}

func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	item, err := s.lookup(ctx, s.db, token)
	if err != nil {
		return "", err
	}
	return item.MemberID, nil
}

func (s *Service) Consume(ctx context.Context, tx *gorm.DB, token string) (string, error) {
	if tx == nil {
		tx = s.db
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrNotFound
	}

	ok, err := s.repo.MarkUsed(ctx, tx, token, s.clock.Now())
	if err != nil {
		return "", err
	}
	if !ok {
		if _, err := s.lookup(ctx, tx, token); err != nil {
			return "", err
		}
		// Usable on re-read: the row changed between the two statements.
		return "", domain.ErrAlreadyUsed
	}

	item, err := s.repo.FindByToken(ctx, tx, token)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", domain.ErrNotFound
	}
	return item.MemberID, nil
}

func (s *Service) ActiveFor(ctx context.Context, memberID string) (*domain.IssuedToken, error) {
	item, err := s.repo.FindLive(ctx, s.db, strings.TrimSpace(memberID), s.clock.Now())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	issued := s.toIssued(*item)
	return &issued, nil
}

func (s *Service) InviteURL(token string) string {
	return s.baseURL + "/register?token=" + url.QueryEscape(token)
}

// lookup classifies a token: unknown, then used, then expired.
func (s *Service) lookup(ctx context.Context, db *gorm.DB, token string) (*domain.InviteToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrNotFound
	}
	item, err := s.repo.FindByToken(ctx, db, token)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if item.UsedAt != nil {
		return nil, domain.ErrAlreadyUsed
	}
	if !s.clock.Now().Before(item.ExpiresAt) {
		return nil, domain.ErrExpired
	}
	return item, nil
}

func (s *Service) toIssued(token domain.InviteToken) domain.IssuedToken {
	return domain.IssuedToken{
		Token:     token.Token,
		MemberID:  token.MemberID,
		ExpiresAt: token.ExpiresAt,
		URL:       s.InviteURL(token.Token),
	}
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
