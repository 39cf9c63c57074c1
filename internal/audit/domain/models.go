package domain

import (
	"time"

	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem ActorType = "system"
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeMember ActorType = "member"
)

// Target types.
const (
	TargetMember   = "member"
	TargetIdentity = "identity"
)

const (
	ActionMemberCreated       = "member.created"
	ActionInviteIssued        = "invite.issued"
	ActionMemberRegistered    = "member.registered"
	ActionMemberActivated     = "member.activated"
	ActionLoginFailed         = "member.login_failed"
	ActionProfileUpdated      = "profile.updated"
	ActionAuthorizationDenied = "authorization.denied"
)

// AuditLog is an append-only record of a member lifecycle event. IDs are
// ULIDs so lexical order is creation order.
type AuditLog struct {
	ID         string            `gorm:"primaryKey;type:char(26)" json:"id"`
	ActorType  string            `gorm:"type:varchar(16);not null" json:"actor_type"`
	ActorID    *string           `json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType string            `gorm:"type:varchar(32);not null" json:"target_type"`
	TargetID   *string           `gorm:"index" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
