package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	memberservice "github.com/smallbiznis/metalid/internal/member/service"
)

// PublicProfile serves the privacy-gated projection of an active member.
// Redirect members are sent to their configured url.
func (s *Server) PublicProfile(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if !memberservice.ValidID(id) {
		AbortWithError(c, ErrNotFound)
		return
	}

	projection, err := s.profileSvc.PublicView(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if projection.IsRedirect() {
		c.Redirect(http.StatusFound, projection.RedirectURL)
		return
	}

	c.JSON(http.StatusOK, projection.Profile)
}

// LegacyProfile serves a row of the legacy spreadsheet. A redirect row
// forwards to its first link.
func (s *Server) LegacyProfile(c *gin.Context) {
	if s.legacySrc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	record, err := s.legacySrc.Find(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if record == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	if record.IsRedirect() && len(record.Links) > 0 {
		c.Redirect(http.StatusFound, record.Links[0].URL)
		return
	}

	c.JSON(http.StatusOK, record)
}
