package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/metalid/internal/authorization"
	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
	obscontext "github.com/smallbiznis/metalid/internal/observability/context"
	"github.com/smallbiznis/metalid/internal/observability/logger"
	"github.com/smallbiznis/metalid/internal/session"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "principal"
	contextMemberIDKey  = "member_id"

	loginPath   = "/login"
	memberHome  = "/my"
	actorMember = "member"
)

// ResolvePrincipal attaches the caller behind the session cookie to the
// request. Missing or stale sessions leave the request anonymous.
func (s *Server) ResolvePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ref, err := s.identity.Authenticate(ctx, token)
		if err != nil {
			if !isSessionError(err) {
				logger.FromContext(ctx).Warn("session lookup failed", zap.Error(err))
			}
			c.Next()
			return
		}

		member, err := s.memberSvc.FindByAuthIdentity(ctx, ref.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		principal := &session.Principal{
			IdentityID: ref.ID,
			Email:      ref.Email,
			Member:     member,
		}
		ctx = session.WithPrincipal(ctx, principal)
		if member != nil {
			ctx = obscontext.WithActor(ctx, actorMember, member.ID)
			c.Set(contextMemberIDKey, member.ID)
		}
		c.Set(contextPrincipalKey, principal)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// MemberPage guards /my. Callers without a bound member are sent to the
// login page with the original path as redirect target.
func (s *Server) MemberPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFromGin(c)
		if principal == nil || principal.Member == nil {
			redirectToLogin(c)
			return
		}
		if err := s.authorize(c, principal, authorization.ObjectMemberArea, authorization.ActionView); err != nil {
			redirectToLogin(c)
			return
		}
		c.Next()
	}
}

// AdminPage guards /admin. Signed-in members without the admin role are
// downgraded to their own page instead of receiving an error.
func (s *Server) AdminPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFromGin(c)
		if principal == nil || principal.Member == nil {
			redirectToLogin(c)
			return
		}
		if err := s.authorize(c, principal, authorization.ObjectAdminArea, authorization.ActionView); err != nil {
			if !errors.Is(err, authorization.ErrForbidden) {
				AbortWithError(c, err)
				return
			}
			c.Redirect(http.StatusFound, memberHome)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminAPI guards /api/admin with typed 401/403 responses.
func (s *Server) AdminAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFromGin(c)
		if principal == nil || principal.Member == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authorize(c, principal, authorization.ObjectAdminArea, authorization.ActionManage); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// MemberAPI guards JSON writes of the member area.
func (s *Server) MemberAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFromGin(c)
		if principal == nil || principal.Member == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authorize(c, principal, authorization.ObjectMemberArea, authorization.ActionManage); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorize(c *gin.Context, principal *session.Principal, object, action string) error {
	if s.authzSvc == nil {
		return authorization.ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), principal.MemberID(), principal.IsAdmin(), object, action)
}

func principalFromGin(c *gin.Context) *session.Principal {
	if value, ok := c.Get(contextPrincipalKey); ok {
		if principal, ok := value.(*session.Principal); ok {
			return principal
		}
	}
	return session.PrincipalFromContext(c.Request.Context())
}

func redirectToLogin(c *gin.Context) {
	target := loginPath + "?redirect=" + url.QueryEscape(c.Request.URL.Path)
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func isSessionError(err error) bool {
	return errors.Is(err, identitydomain.ErrInvalidSession) ||
		errors.Is(err, identitydomain.ErrSessionExpired) ||
		errors.Is(err, identitydomain.ErrSessionRevoked)
}
