package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	profiledomain "github.com/smallbiznis/metalid/internal/profile/domain"
	profileservice "github.com/smallbiznis/metalid/internal/profile/service"
)

type saveProfileRequest struct {
	Profile profiledomain.ProfileInput `json:"profile"`
	Links   []profiledomain.LinkInput  `json:"links"`
}

// MyHome is the member landing page summary.
func (s *Server) MyHome(c *gin.Context) {
	principal := principalFromGin(c)
	owner, err := s.profileSvc.OwnerView(c.Request.Context(), principal.MemberID())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member_id":    principal.MemberID(),
		"display_name": profileservice.DisplayName(owner.Profile),
		"is_admin":     principal.IsAdmin(),
		"public_url":   s.publicURL(principal.MemberID()),
	})
}

// MyEdit returns the unfiltered profile of the signed-in member.
func (s *Server) MyEdit(c *gin.Context) {
	principal := principalFromGin(c)
	owner, err := s.profileSvc.OwnerView(c.Request.Context(), principal.MemberID())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": owner.Profile,
		"links":   owner.Links,
		"regions": profiledomain.Regions,
	})
}

// SaveMyProfile stores profile and links in one transaction.
func (s *Server) SaveMyProfile(c *gin.Context) {
	var req saveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	principal := principalFromGin(c)
	owner, err := s.profileSvc.Save(c.Request.Context(), principal.MemberID(), req.Profile, req.Links)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, owner)
}
