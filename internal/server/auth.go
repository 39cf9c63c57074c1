package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
	"github.com/smallbiznis/metalid/internal/observability/logger"
	registrationdomain "github.com/smallbiznis/metalid/internal/registration/domain"
	"go.uber.org/zap"
)

const authFailedRedirect = loginPath + "?error=auth_failed"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect"`
}

// LoginPage describes the login form state: where to go after signing in
// and the error marker set by a failed confirmation callback.
func (s *Server) LoginPage(c *gin.Context) {
	if principal := principalFromGin(c); principal != nil && principal.Member != nil {
		c.Redirect(http.StatusFound, loginRedirect(c.Query("redirect")))
		return
	}

	resp := gin.H{"redirect": loginRedirect(c.Query("redirect"))}
	if marker := strings.TrimSpace(c.Query("error")); marker != "" {
		resp["error"] = marker
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	grant, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if s.auditSvc != nil && errors.Is(err, identitydomain.ErrInvalidCredentials) {
			if auditErr := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeMember), nil, auditdomain.ActionLoginFailed, auditdomain.TargetIdentity, nil, map[string]any{
				"email": strings.TrimSpace(req.Email),
			}); auditErr != nil {
				logger.FromContext(ctx).Warn("audit write failed", zap.String("action", auditdomain.ActionLoginFailed), zap.Error(auditErr))
			}
		}
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, grant.Token, grant.ExpiresAt)

	member, err := s.memberSvc.FindByAuthIdentity(ctx, grant.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if member != nil {
		if err := s.memberSvc.TouchLogin(ctx, member.ID); err != nil {
			logger.FromContext(ctx).Warn("touch login failed", zap.String("member_id", member.ID), zap.Error(err))
		}
	}

	resp := gin.H{"redirect": loginRedirect(req.Redirect)}
	if member != nil {
		resp["member_id"] = member.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.identity.SignOut(c.Request.Context(), token); err != nil && !isSessionError(err) {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

// AuthCallback lands the emailed confirmation link. Any failure sends the
// caller back to the login page with the auth_failed marker.
func (s *Server) AuthCallback(c *gin.Context) {
	ctx := c.Request.Context()
	result, err := s.registrationSvc.Confirm(ctx, c.Query("code"), c.Query("next"))
	if err != nil {
		if !errors.Is(err, registrationdomain.ErrAuthFailed) {
			logger.FromContext(ctx).Error("confirmation callback failed", zap.Error(err))
		}
		c.Redirect(http.StatusFound, authFailedRedirect)
		return
	}

	if result.Grant != nil {
		s.sessions.Set(c, result.Grant.Token, result.Grant.ExpiresAt)
	}
	c.Redirect(http.StatusFound, result.Redirect)
}

// loginRedirect keeps same-origin paths and defaults to the member page.
func loginRedirect(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return memberHome
	}
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = unescaped
	}
	if identitydomain.SafeNext(raw) != raw {
		return memberHome
	}
	return raw
}
