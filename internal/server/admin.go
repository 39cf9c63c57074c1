package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	profileservice "github.com/smallbiznis/metalid/internal/profile/service"
	"github.com/smallbiznis/metalid/internal/providers/pdf"
	"github.com/smallbiznis/metalid/internal/providers/qrcode"
	provisioningdomain "github.com/smallbiznis/metalid/internal/provisioning/domain"
)

type createMemberRequest struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	RedirectURL string `json:"redirect_url"`
}

type reissueTokenRequest struct {
	MemberID string `json:"member_id"`
}

type memberDetailResponse struct {
	Member    memberdomain.Member `json:"member"`
	InviteURL *string             `json:"invite_url"`
	PublicURL string              `json:"public_url"`
	Profile   *profileSummary     `json:"profile"`
}

type profileSummary struct {
	DisplayName string  `json:"display_name"`
	BioShort    *string `json:"bio_short,omitempty"`
	LinkCount   int     `json:"link_count"`
}

func (s *Server) CreateMember(c *gin.Context) {
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	memberType := memberdomain.Type(strings.TrimSpace(req.Type))
	if memberType == "" {
		memberType = memberdomain.TypeProfile
	}

	resp, err := s.provisioningSvc.CreateMember(c.Request.Context(), provisioningdomain.CreateMemberRequest{
		ID:          strings.TrimSpace(req.ID),
		Type:        memberType,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ReissueToken(c *gin.Context) {
	var req reissueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.provisioningSvc.ReissueToken(c.Request.Context(), strings.TrimSpace(req.MemberID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AdminDashboard(c *gin.Context) {
	stats, err := s.memberSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) ListMembers(c *gin.Context) {
	members, err := s.memberSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) GetMember(c *gin.Context) {
	ctx := c.Request.Context()
	member, err := s.memberSvc.Get(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := memberDetailResponse{
		Member:    member,
		PublicURL: s.publicURL(member.ID),
	}

	live, err := s.inviteSvc.ActiveFor(ctx, member.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if live != nil {
		resp.InviteURL = &live.URL
	}

	owner, err := s.profileSvc.OwnerView(ctx, member.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp.Profile = &profileSummary{
		DisplayName: profileservice.DisplayName(owner.Profile),
		BioShort:    owner.Profile.BioShort,
		LinkCount:   len(owner.Links),
	}

	c.JSON(http.StatusOK, resp)
}

// MemberQRCode renders the live invite url of a member as PNG.
func (s *Server) MemberQRCode(c *gin.Context) {
	ctx := c.Request.Context()
	member, err := s.memberSvc.Get(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	live, err := s.inviteSvc.ActiveFor(ctx, member.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if live == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	size := qrcode.DefaultSize
	if raw := strings.TrimSpace(c.Query("size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 64 || parsed > 2048 {
			AbortWithError(c, newValidationError("size", "invalid_size", "size must be between 64 and 2048"))
			return
		}
		size = parsed
	}

	png, err := s.qrRenderer.PNG(live.URL, size)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// MemberCard renders the printable card insert for the live invite.
func (s *Server) MemberCard(c *gin.Context) {
	ctx := c.Request.Context()
	member, err := s.memberSvc.Get(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	live, err := s.inviteSvc.ActiveFor(ctx, member.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if live == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	doc, err := s.cardRenderer.RenderCard(ctx, pdf.CardData{
		MemberID:  member.ID,
		InviteURL: live.URL,
		PublicURL: s.publicURL(member.ID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", `attachment; filename="`+s.cardRenderer.FileName(member.ID)+`"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) publicURL(memberID string) string {
	return strings.TrimRight(s.cfg.AppURL, "/") + "/u/" + memberID
}
