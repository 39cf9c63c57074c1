package domain

import "time"

// InviteToken is a single-use registration secret bound to one member.
// Rows are never deleted; superseded tokens are expired in place.
type InviteToken struct {
	Token     string     `gorm:"primaryKey;type:varchar(64)" json:"-"`
	MemberID  string     `gorm:"type:varchar(6);not null;index" json:"member_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (InviteToken) TableName() string { return "invite_tokens" }

// Usable reports whether the token is unused and unexpired at now.
func (t InviteToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

type IssuedToken struct {
	Token     string    `json:"token"`
	MemberID  string    `json:"member_id"`
	ExpiresAt time.Time `json:"expires_at"`
	URL       string    `json:"invite_url"`
}
