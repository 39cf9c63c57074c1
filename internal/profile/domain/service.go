package domain

import (
	"context"
	"errors"
)

// ProfileInput is the raw editor submission. CareerStart is "YYYY-MM" or empty.
type ProfileInput struct {
	DisplayName string       `json:"display_name"`
	AvatarURL   string       `json:"avatar_url"`
	BioShort    string       `json:"bio_short"`
	BioLong     string       `json:"bio_long"`
	TeamName    string       `json:"team_name"`
	Region      string       `json:"region"`
	CareerStart string       `json:"career_start"`
	Privacy     PrivacyInput `json:"privacy_settings"`
}

// PrivacyInput carries the flags the editor sent. A nil flag keeps the
// stored value, or the default for a profile saved for the first time.
type PrivacyInput struct {
	TeamName    *bool `json:"team_name,omitempty"`
	Region      *bool `json:"region,omitempty"`
	CareerStart *bool `json:"career_start,omitempty"`
	BioLong     *bool `json:"bio_long,omitempty"`
}

// Apply overlays the submitted flags on base. Tournaments and stats are
// always visible.
func (in PrivacyInput) Apply(base PrivacySettings) PrivacySettings {
	out := base
	if in.TeamName != nil {
		out.TeamName = *in.TeamName
	}
	if in.Region != nil {
		out.Region = *in.Region
	}
	if in.CareerStart != nil {
		out.CareerStart = *in.CareerStart
	}
	if in.BioLong != nil {
		out.BioLong = *in.BioLong
	}
	out.Tournaments = true
	out.Stats = true
	return out
}

type LinkInput struct {
	Platform Platform `json:"platform"`
	Label    string   `json:"label"`
	URL      string   `json:"url"`
}

type Service interface {
	OwnerView(ctx context.Context, memberID string) (*OwnerProfile, error)
	PublicView(ctx context.Context, memberID string) (*Projection, error)
	SaveProfile(ctx context.Context, memberID string, input ProfileInput) (*Profile, error)
	SaveLinks(ctx context.Context, memberID string, candidates []LinkInput) ([]Link, error)
	Save(ctx context.Context, memberID string, input ProfileInput, candidates []LinkInput) (*OwnerProfile, error)
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidDisplayName = errors.New("invalid_display_name")
	ErrBioTooLong         = errors.New("bio_too_long")
	ErrInvalidRegion      = errors.New("invalid_region")
	ErrInvalidCareerStart = errors.New("invalid_career_start")
	ErrInvalidPlatform    = errors.New("invalid_platform")
	ErrTooManyLinks       = errors.New("too_many_links")
)
