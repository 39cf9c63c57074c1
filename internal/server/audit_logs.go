package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
)

type listAuditLogsQuery struct {
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	MemberID   string `form:"member_id"`
	Before     string `form:"before"`
	Limit      int    `form:"limit"`
}

// ListAuditLogs pages through the audit log newest first. next_before is
// the cursor for the following page and is empty on the last one.
func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if query.Limit < 0 || query.Limit > auditdomain.MaxListLimit {
		AbortWithError(c, newValidationError("limit", "invalid_limit",
			fmt.Sprintf("limit must be between 1 and %d", auditdomain.MaxListLimit)))
		return
	}

	req := auditdomain.ListAuditLogRequest{
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
		Before:     strings.TrimSpace(query.Before),
		Limit:      query.Limit,
	}
	if memberID := strings.TrimSpace(query.MemberID); memberID != "" && req.TargetID == "" {
		req.TargetType = auditdomain.TargetMember
		req.TargetID = memberID
	}

	entries, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = auditdomain.DefaultListLimit
	}
	next := ""
	if len(entries) == limit {
		next = entries[len(entries)-1].ID
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "next_before": next})
}
