package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/pkg/db/pagination"
)

type listAuditLogsQuery struct {
	pagination.Pagination
	Action        string `form:"action"`
	TargetType    string `form:"target_type"`
	TargetID      string `form:"target_id"`
	ActorType     string `form:"actor_type"`
	CorrelationID string `form:"correlation_id"`
	From          string `form:"from"`
	To            string `form:"to"`
}

// ListAuditLogs pages through the organization's audit trail, newest first.
// from/to take RFC3339 or YYYY-MM-DD; a bare to-date covers the whole day.
func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	window, err := parseWindow(query.From, query.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Action:        strings.TrimSpace(query.Action),
		TargetType:    strings.TrimSpace(query.TargetType),
		TargetID:      strings.TrimSpace(query.TargetID),
		ActorType:     strings.TrimSpace(query.ActorType),
		CorrelationID: strings.TrimSpace(query.CorrelationID),
		StartAt:       window.from,
		EndAt:         window.to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
