package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/metalid/internal/authorization"
	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
	invitedomain "github.com/smallbiznis/metalid/internal/invite/domain"
	legacydomain "github.com/smallbiznis/metalid/internal/legacy/domain"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/smallbiznis/metalid/internal/observability/logger"
	profiledomain "github.com/smallbiznis/metalid/internal/profile/domain"
	provisioningdomain "github.com/smallbiznis/metalid/internal/provisioning/domain"
	registrationdomain "github.com/smallbiznis/metalid/internal/registration/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationFields maps domain validation sentinels to the request field
// they concern.
var validationFields = map[error]string{
	memberdomain.ErrInvalidID:              "id",
	memberdomain.ErrInvalidType:            "type",
	memberdomain.ErrMissingRedirect:        "redirect_url",
	provisioningdomain.ErrMissingMemberID:  "member_id",
	registrationdomain.ErrWeakPassword:     "password",
	registrationdomain.ErrPasswordMismatch: "password_confirm",
	registrationdomain.ErrInvalidEmail:     "email",
	identitydomain.ErrInvalidEmail:         "email",
	profiledomain.ErrInvalidDisplayName:    "display_name",
	profiledomain.ErrBioTooLong:            "bio_short",
	profiledomain.ErrInvalidRegion:         "region",
	profiledomain.ErrInvalidCareerStart:    "career_start",
	profiledomain.ErrInvalidPlatform:       "links",
	profiledomain.ErrTooManyLinks:          "links",
	ErrInvalidRequest:                      "request",
}

var validationMessages = map[string]string{
	"invalid_id":           "member id must be exactly six digits",
	"invalid_type":         "type must be profile or redirect",
	"missing_redirect":     "redirect url is required for redirect members",
	"missing_member_id":    "member id is required",
	"weak_password":        "password must be at least 8 characters",
	"password_mismatch":    "passwords do not match",
	"invalid_email":        "email address is invalid",
	"invalid_display_name": "display name is required",
	"bio_too_long":         "short bio must be at most 100 characters",
	"invalid_region":       "region is not a known prefecture",
	"invalid_career_start": "career start must be YYYY-MM",
	"invalid_platform":     "unknown link platform",
	"too_many_links":       "at most 5 links are allowed",
	"invalid_request":      "invalid request",
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("request failed",
				zap.String("route", c.FullPath()),
				zap.Error(lastErr.Err),
			)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if field, ok := validationField(err); ok {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   field,
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identitydomain.ErrInvalidCredentials),
		errors.Is(err, identitydomain.ErrInvalidSession),
		errors.Is(err, identitydomain.ErrSessionExpired),
		errors.Is(err, identitydomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, identitydomain.ErrEmailNotConfirmed):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, memberdomain.ErrDuplicateID):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_id",
			Message: "member id already exists",
		}
	case errors.Is(err, registrationdomain.ErrDuplicateEmail),
		errors.Is(err, identitydomain.ErrEmailExists):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_email",
			Message: "email address is already registered",
		}
	case errors.Is(err, registrationdomain.ErrAlreadyRegistered),
		errors.Is(err, registrationdomain.ErrInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "registration already in progress",
		}
	case errors.Is(err, registrationdomain.ErrUsedLink):
		return http.StatusGone, errorPayload{
			Type:    "used_link",
			Message: "this registration link has already been used",
		}
	case errors.Is(err, registrationdomain.ErrExpiredLink):
		return http.StatusGone, errorPayload{
			Type:    "expired",
			Message: "this registration link has expired",
		}
	case errors.Is(err, registrationdomain.ErrInvalidLink):
		return http.StatusNotFound, errorPayload{
			Type:    "invalid_link",
			Message: "this registration link is invalid",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, legacydomain.ErrDisabled):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case isUpstreamError(err):
		return http.StatusBadGateway, errorPayload{
			Type:    "dependency_error",
			Message: "upstream dependency failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationField(err error) (string, bool) {
	for sentinel, field := range validationFields {
		if errors.Is(err, sentinel) {
			return field, true
		}
	}
	return "", false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, memberdomain.ErrNotFound),
		errors.Is(err, profiledomain.ErrNotFound),
		errors.Is(err, invitedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// isUpstreamError reports failures of collaborators outside the store.
func isUpstreamError(err error) bool {
	if errors.Is(err, legacydomain.ErrUnavailable) {
		return true
	}
	var depErr *registrationdomain.DependencyError
	return errors.As(err, &depErr) && depErr.Dependency == registrationdomain.DependencyIdentity
}

func validationErrorMessage(code string) string {
	if message, ok := validationMessages[code]; ok {
		return message
	}
	return "invalid value"
}

// classifyErrorForLog feeds the request logger with the mapped error type.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	return payload.Type, http.StatusText(status)
}
