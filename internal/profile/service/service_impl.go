package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	"github.com/smallbiznis/metalid/internal/clock"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/smallbiznis/metalid/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const careerStartLayout = "2006-01"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Repo    domain.Repository
	Members memberdomain.Repository
	Audit   auditdomain.Service `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	repo    domain.Repository
	members memberdomain.Repository
	audit   auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("profile.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		repo:    p.Repo,
		members: p.Members,
		audit:   p.Audit,
	}
}

func (s *Service) OwnerView(ctx context.Context, memberID string) (*domain.OwnerProfile, error) {
	member, err := s.members.FindByID(ctx, s.db, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNotFound
	}
	return s.load(ctx, s.db, member.ID)
}

func (s *Service) PublicView(ctx context.Context, memberID string) (*domain.Projection, error) {
	member, err := s.members.FindByID(ctx, s.db, strings.TrimSpace(memberID))
	if err != nil {
		return nil, err
	}
	if member == nil || !member.IsActive() {
		return nil, domain.ErrNotFound
	}
	if member.IsRedirect() && member.RedirectURL != nil && *member.RedirectURL != "" {
		return &domain.Projection{RedirectURL: *member.RedirectURL}, nil
	}

	owner, err := s.load(ctx, s.db, member.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Projection{Profile: project(owner)}, nil
}

func (s *Service) SaveProfile(ctx context.Context, memberID string, input domain.ProfileInput) (*domain.Profile, error) {
	profile, err := s.buildProfile(memberID, input)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureMember(ctx, tx, memberID); err != nil {
			return err
		}
		if err := s.mergePrivacy(ctx, tx, profile, input.Privacy); err != nil {
			return err
		}
		return s.repo.UpsertProfile(ctx, tx, profile)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, memberID, nil)
	return profile, nil
}

func (s *Service) SaveLinks(ctx context.Context, memberID string, candidates []domain.LinkInput) ([]domain.Link, error) {
	accepted, err := completeLinks(candidates)
	if err != nil {
		return nil, err
	}
	var links []domain.Link
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureMember(ctx, tx, memberID); err != nil {
			return err
		}
		links, err = s.replaceLinks(ctx, tx, memberID, accepted)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, memberID, map[string]any{"links": len(links)})
	return links, nil
}

func (s *Service) Save(ctx context.Context, memberID string, input domain.ProfileInput, candidates []domain.LinkInput) (*domain.OwnerProfile, error) {
	profile, err := s.buildProfile(memberID, input)
	if err != nil {
		return nil, err
	}
	accepted, err := completeLinks(candidates)
	if err != nil {
		return nil, err
	}

	var links []domain.Link
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureMember(ctx, tx, memberID); err != nil {
			return err
		}
		if err := s.mergePrivacy(ctx, tx, profile, input.Privacy); err != nil {
			return err
		}
		if err := s.repo.UpsertProfile(ctx, tx, profile); err != nil {
			return err
		}
		links, err = s.replaceLinks(ctx, tx, memberID, accepted)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, memberID, map[string]any{"links": len(links)})
	s.log.Info("profile saved", zap.String("member_id", memberID), zap.Int("links", len(links)))
	return &domain.OwnerProfile{Profile: *profile, Links: links}, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, memberID string) (*domain.OwnerProfile, error) {
	profile, err := s.repo.FindProfile(ctx, db, memberID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &domain.Profile{
			MemberID:        memberID,
			PrivacySettings: datatypes.NewJSONType(domain.DefaultPrivacy()),
		}
	}
	links, err := s.repo.ListLinks(ctx, db, memberID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.Link{}
	}
	return &domain.OwnerProfile{Profile: *profile, Links: links}, nil
}

func (s *Service) ensureMember(ctx context.Context, tx *gorm.DB, memberID string) error {
	member, err := s.members.FindByID(ctx, tx, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) replaceLinks(ctx context.Context, tx *gorm.DB, memberID string, accepted []domain.LinkInput) ([]domain.Link, error) {
	if err := s.repo.DeleteLinks(ctx, tx, memberID); err != nil {
		return nil, err
	}
	links := make([]domain.Link, 0, len(accepted))
	for i, candidate := range accepted {
		links = append(links, domain.Link{
			ID:           s.genID.Generate(),
			MemberID:     memberID,
			Platform:     candidate.Platform,
			Label:        candidate.Label,
			URL:          candidate.URL,
			DisplayOrder: i,
		})
	}
	if err := s.repo.InsertLinks(ctx, tx, links); err != nil {
		return nil, err
	}
	return links, nil
}

func (s *Service) buildProfile(memberID string, input domain.ProfileInput) (*domain.Profile, error) {
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, domain.ErrInvalidDisplayName
	}

	bioShort := optional(input.BioShort)
	if bioShort != nil && utf8.RuneCountInString(*bioShort) > domain.MaxBioShortLength {
		return nil, domain.ErrBioTooLong
	}

	region := optional(input.Region)
	if region != nil && !domain.ValidRegion(*region) {
		return nil, domain.ErrInvalidRegion
	}

	var careerStart *time.Time
	if raw := strings.TrimSpace(input.CareerStart); raw != "" {
		parsed, err := time.ParseInLocation(careerStartLayout, raw, time.UTC)
		if err != nil {
			return nil, domain.ErrInvalidCareerStart
		}
		careerStart = &parsed
	}

	return &domain.Profile{
		MemberID:        memberID,
		DisplayName:     displayName,
		AvatarURL:       optional(input.AvatarURL),
		BioShort:        bioShort,
		BioLong:         optional(input.BioLong),
		TeamName:        optional(input.TeamName),
		Region:          region,
		CareerStart:     careerStart,
		UpdatedAt:       s.clock.Now(),
	}, nil
}

// mergePrivacy fills the flags the caller left out from the stored profile,
// falling back to the defaults for a first save.
func (s *Service) mergePrivacy(ctx context.Context, tx *gorm.DB, profile *domain.Profile, input domain.PrivacyInput) error {
	base := domain.DefaultPrivacy()
	stored, err := s.repo.FindProfile(ctx, tx, profile.MemberID)
	if err != nil {
		return err
	}
	if stored != nil {
		base = stored.Privacy()
	}
	profile.PrivacySettings = datatypes.NewJSONType(input.Apply(base))
	return nil
}

func (s *Service) record(ctx context.Context, memberID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.AuditLog(ctx, string(auditdomain.ActorTypeMember), &memberID, auditdomain.ActionProfileUpdated, "profile", &memberID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("member_id", memberID), zap.Error(err))
	}
}

// completeLinks keeps candidates with both a label and a url, in submission
// order. Incomplete rows are editor blanks and are dropped silently.
func completeLinks(candidates []domain.LinkInput) ([]domain.LinkInput, error) {
	accepted := make([]domain.LinkInput, 0, len(candidates))
	for _, candidate := range candidates {
		label := strings.TrimSpace(candidate.Label)
		rawURL := strings.TrimSpace(candidate.URL)
		if label == "" || rawURL == "" {
			continue
		}
		platform := domain.Platform(strings.ToLower(strings.TrimSpace(string(candidate.Platform))))
		if platform == "" {
			platform = domain.PlatformWebsite
		}
		if !platform.Valid() {
			return nil, domain.ErrInvalidPlatform
		}
		accepted = append(accepted, domain.LinkInput{Platform: platform, Label: label, URL: rawURL})
	}
	if len(accepted) > domain.MaxLinks {
		return nil, domain.ErrTooManyLinks
	}
	return accepted, nil
}

func project(owner *domain.OwnerProfile) *domain.PublicProfile {
	profile := owner.Profile
	privacy := profile.Privacy()

	public := &domain.PublicProfile{
		MemberID:    profile.MemberID,
		DisplayName: DisplayName(profile),
		BioShort:    deref(profile.BioShort),
		AvatarURL:   deref(profile.AvatarURL),
		Links:       make([]domain.PublicLink, 0, len(owner.Links)),
	}
	if privacy.TeamName {
		public.TeamName = deref(profile.TeamName)
	}
	if privacy.Region {
		public.Region = deref(profile.Region)
	}
	if privacy.CareerStart && profile.CareerStart != nil {
		public.CareerStart = profile.CareerStart.UTC().Format(careerStartLayout)
	}
	if privacy.BioLong {
		public.BioLong = deref(profile.BioLong)
	}
	for _, link := range owner.Links {
		public.Links = append(public.Links, domain.PublicLink{
			Platform: link.Platform,
			Label:    link.Label,
			URL:      link.URL,
		})
	}
	return public
}

// DisplayName falls back to the member number when no name was saved.
func DisplayName(profile domain.Profile) string {
	if name := strings.TrimSpace(profile.DisplayName); name != "" {
		return name
	}
	return fmt.Sprintf("会員 #%s", profile.MemberID)
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
