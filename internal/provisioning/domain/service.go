package domain

import (
	"context"
	"errors"

	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
)

type CreateMemberRequest = memberdomain.CreateMemberRequest

type CreateMemberResponse struct {
	MemberID  string `json:"member_id"`
	InviteURL string `json:"invite_url"`
}

type ReissueTokenResponse struct {
	InviteURL string `json:"invite_url"`
}

// Service creates members together with their first invite.
type Service interface {
	CreateMember(ctx context.Context, req CreateMemberRequest) (CreateMemberResponse, error)
	ReissueToken(ctx context.Context, memberID string) (ReissueTokenResponse, error)
}

var ErrMissingMemberID = errors.New("missing_member_id")
