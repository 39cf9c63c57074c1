package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	MaxLinks          = 5
	MaxBioShortLength = 100
)

type Platform string

const (
	PlatformX         Platform = "x"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformYouTube   Platform = "youtube"
	PlatformWebsite   Platform = "website"
)

var platformLabels = map[Platform]string{
	PlatformX:         "X（旧Twitter）",
	PlatformInstagram: "Instagram",
	PlatformFacebook:  "Facebook",
	PlatformYouTube:   "YouTube",
	PlatformWebsite:   "ホームページ",
}

func (p Platform) Valid() bool {
	_, ok := platformLabels[p]
	return ok
}

// Label is the human readable platform name shown in the editor.
func (p Platform) Label() string {
	return platformLabels[p]
}

// PrivacySettings toggles which optional fields appear on the public page.
type PrivacySettings struct {
	TeamName    bool `json:"team_name"`
	Region      bool `json:"region"`
	CareerStart bool `json:"career_start"`
	BioLong     bool `json:"bio_long"`
	Tournaments bool `json:"tournaments"`
	Stats       bool `json:"stats"`
}

func DefaultPrivacy() PrivacySettings {
	return PrivacySettings{
		TeamName:    true,
		Region:      true,
		CareerStart: true,
		BioLong:     true,
		Tournaments: true,
		Stats:       true,
	}
}

type Profile struct {
	MemberID        string                              `gorm:"primaryKey;type:varchar(6)" json:"member_id"`
	DisplayName     string                              `gorm:"not null" json:"display_name"`
	AvatarURL       *string                             `json:"avatar_url,omitempty"`
	BioShort        *string                             `json:"bio_short,omitempty"`
	BioLong         *string                             `json:"bio_long,omitempty"`
	TeamName        *string                             `json:"team_name,omitempty"`
	Region          *string                             `json:"region,omitempty"`
	CareerStart     *time.Time                          `json:"career_start,omitempty"`
	PrivacySettings datatypes.JSONType[PrivacySettings] `gorm:"not null" json:"privacy_settings"`
	UpdatedAt       time.Time                           `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

func (p Profile) Privacy() PrivacySettings {
	return p.PrivacySettings.Data()
}

type Link struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID     string       `gorm:"type:varchar(6);not null;index" json:"member_id"`
	Platform     Platform     `gorm:"type:varchar(16);not null" json:"platform"`
	Label        string       `gorm:"not null" json:"label"`
	URL          string       `gorm:"not null" json:"url"`
	DisplayOrder int          `gorm:"not null" json:"display_order"`
}

func (Link) TableName() string { return "links" }

// OwnerProfile is the unfiltered editor view.
type OwnerProfile struct {
	Profile Profile `json:"profile"`
	Links   []Link  `json:"links"`
}

type PublicLink struct {
	Platform Platform `json:"platform"`
	Label    string   `json:"label"`
	URL      string   `json:"url"`
}

// PublicProfile only carries fields the member allowed to be shown.
type PublicProfile struct {
	MemberID    string       `json:"member_id"`
	DisplayName string       `json:"display_name"`
	BioShort    string       `json:"bio_short,omitempty"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	TeamName    string       `json:"team_name,omitempty"`
	Region      string       `json:"region,omitempty"`
	CareerStart string       `json:"career_start,omitempty"`
	BioLong     string       `json:"bio_long,omitempty"`
	Links       []PublicLink `json:"links"`
}

// Projection is either a redirect instruction or a public profile.
type Projection struct {
	RedirectURL string
	Profile     *PublicProfile
}

func (p Projection) IsRedirect() bool { return p.RedirectURL != "" }
