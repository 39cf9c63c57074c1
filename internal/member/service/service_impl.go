package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/smallbiznis/metalid/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var memberIDPattern = regexp.MustCompile(`^[0-9]{6}$`)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("member.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// ValidID reports whether id is exactly six ASCII digits.
func ValidID(id string) bool {
	return memberIDPattern.MatchString(id)
}

func (s *Service) Create(ctx context.Context, req domain.CreateMemberRequest) (domain.Member, error) {
	return s.CreateTx(ctx, s.db, req)
}

func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, req domain.CreateMemberRequest) (domain.Member, error) {
	id := req.ID
	if !ValidID(id) {
		return domain.Member{}, domain.ErrInvalidID
	}

	memberType := domain.Type(strings.TrimSpace(string(req.Type)))
	if memberType == "" {
		memberType = domain.TypeProfile
	}
	if !memberType.Valid() {
		return domain.Member{}, domain.ErrInvalidType
	}

	var redirectURL *string
	if memberType == domain.TypeRedirect {
		target := strings.TrimSpace(req.RedirectURL)
		if target == "" {
			return domain.Member{}, domain.ErrMissingRedirect
		}
		redirectURL = &target
	}

	now := s.clock.Now()
	member := domain.Member{
		ID:          id,
		Type:        memberType,
		Status:      domain.StatusPending,
		RedirectURL: redirectURL,
		IsAdmin:     req.IsAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.conn(tx), &member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Member{}, domain.ErrDuplicateID
		}
		return domain.Member{}, err
	}

	s.log.Info("member created",
		zap.String("member_id", member.ID),
		zap.String("type", string(member.Type)),
	)
	return member, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Member, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Member{}, domain.ErrNotFound
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Member{}, err
	}
	if item == nil {
		return domain.Member{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Member, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	members := make([]domain.Member, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		members = append(members, *item)
	}
	return members, nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	return s.repo.Stats(ctx, s.db)
}

func (s *Service) FindByAuthIdentity(ctx context.Context, identityID string) (*domain.Member, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, nil
	}
	return s.repo.FindByAuthIdentity(ctx, s.db, identityID)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*domain.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	return s.repo.FindByEmail(ctx, s.db, email)
}

func (s *Service) BindIdentity(ctx context.Context, tx *gorm.DB, memberID, identityID, email string) error {
	conn := s.conn(tx)
	ok, err := s.repo.BindIdentity(ctx, conn, memberID, identityID, email, s.clock.Now())
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrAlreadyBound
		}
		return err
	}
	if ok {
		return nil
	}

	existing, err := s.repo.FindByID(ctx, conn, memberID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadyBound
}

func (s *Service) Activate(ctx context.Context, tx *gorm.DB, memberID string) (bool, error) {
	conn := s.conn(tx)
	ok, err := s.repo.Activate(ctx, conn, memberID, s.clock.Now())
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info("member activated", zap.String("member_id", memberID))
		return true, nil
	}

	existing, err := s.repo.FindByID(ctx, conn, memberID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, domain.ErrNotFound
	}
	if existing.IsActive() {
		return false, nil
	}
	return false, domain.ErrNotActivatable
}

func (s *Service) TouchLogin(ctx context.Context, memberID string) error {
	return s.repo.TouchLogin(ctx, s.db, memberID, s.clock.Now())
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
