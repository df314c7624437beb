package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/estatebook/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action        string
	TargetType    string
	TargetID      string
	ActorType     string
	CorrelationID string
	StartAt       *time.Time
	EndAt         *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record joins the transaction attached with db.WithTx, if any.
	Record(ctx context.Context, event Event) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrInvalidAction       = errors.New("invalid_action")
)
