package domain

import "time"

type Type string

const (
	TypeProfile  Type = "profile"
	TypeRedirect Type = "redirect"
)

func (t Type) Valid() bool {
	return t == TypeProfile || t == TypeRedirect
}

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

// Member is a card holder identified by a persistent 6-digit number.
// TokenEpoch is bumped on every invite issue so concurrent issues for the
// same member serialize on the member row.
type Member struct {
	ID           string     `gorm:"primaryKey;type:varchar(6)" json:"id"`
	AuthIdentity *string    `gorm:"uniqueIndex" json:"auth_identity,omitempty"`
	Email        *string    `json:"email,omitempty"`
	Type         Type       `gorm:"type:varchar(16);not null;default:'profile'" json:"type"`
	Status       Status     `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	RedirectURL  *string    `json:"redirect_url,omitempty"`
	IsAdmin      bool       `gorm:"not null;default:false" json:"is_admin"`
	TokenEpoch   int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

func (Member) TableName() string { return "members" }

func (m Member) IsActive() bool { return m.Status == StatusActive }

func (m Member) IsRedirect() bool { return m.Type == TypeRedirect }

// Stats summarizes member counts for the admin dashboard.
type Stats struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Pending int64 `json:"pending"`
}
