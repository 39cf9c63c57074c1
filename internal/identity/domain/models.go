// Package domain contains the credential identity types owned by the local
// identity provider.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Identity is an email/password credential. It is linked to a member by
// members.auth_identity, never the other way round.
type Identity struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	Email            string       `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash     string       `gorm:"type:text;not null"`
	InviteToken      *string      `gorm:"type:text"`
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (Identity) TableName() string { return "identities" }

func (i Identity) Confirmed() bool { return i.EmailConfirmedAt != nil }

// Session is a persisted login session. Only the token hash is stored.
type Session struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	IdentityID snowflake.ID `gorm:"not null;index"`
	TokenHash  string       `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt  time.Time    `gorm:"not null;index"`
	RevokedAt  *time.Time
	CreatedAt  time.Time `gorm:"not null"`
	LastSeenAt time.Time `gorm:"not null"`
}

func (Session) TableName() string { return "identity_sessions" }

// Confirmation is a one-time email confirmation code.
type Confirmation struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	IdentityID snowflake.ID `gorm:"not null;index"`
	CodeHash   string       `gorm:"type:text;not null;uniqueIndex"`
	NextPath   string       `gorm:"type:text;not null"`
	ExpiresAt  time.Time    `gorm:"not null"`
	UsedAt     *time.Time
	CreatedAt  time.Time `gorm:"not null"`
}

func (Confirmation) TableName() string { return "identity_confirmations" }
