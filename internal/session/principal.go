package session

import (
	"context"

	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
)

// Principal is the authenticated caller of one request. Member is nil when
// the identity is not bound to any member yet.
type Principal struct {
	IdentityID string
	Email      string
	Member     *memberdomain.Member
}

func (p *Principal) MemberID() string {
	if p == nil || p.Member == nil {
		return ""
	}
	return p.Member.ID
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Member != nil && p.Member.IsAdmin
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	if principal == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	principal, _ := ctx.Value(principalKey{}).(*Principal)
	return principal
}
