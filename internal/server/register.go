package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	registrationdomain "github.com/smallbiznis/metalid/internal/registration/domain"
)

type registerRequest struct {
	Token           string `json:"token"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type resendConfirmationRequest struct {
	Email string `json:"email"`
}

// InspectRegistration reports which member a registration link belongs to.
// Invalid, used and expired links answer with distinct codes.
func (s *Server) InspectRegistration(c *gin.Context) {
	memberID, err := s.registrationSvc.Inspect(c.Request.Context(), c.Query("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"member_id": memberID})
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.registrationSvc.Register(c.Request.Context(), registrationdomain.RegisterRequest{
		Token:           strings.TrimSpace(req.Token),
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		// used_link is 410 on inspect, 409 on submit
		if errors.Is(err, registrationdomain.ErrUsedLink) {
			c.JSON(http.StatusConflict, errorResponse{Error: errorPayload{
				Type:    "used_link",
				Message: "this registration link has already been used",
			}})
			c.Abort()
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ResendConfirmation(c *gin.Context) {
	var req resendConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.registrationSvc.ResendConfirmation(c.Request.Context(), req.Email); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}
