package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/clock"
	obscontext "github.com/smallbiznis/estatebook/internal/observability/context"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	"github.com/smallbiznis/estatebook/pkg/db"
	"github.com/smallbiznis/estatebook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock `optional:"true"`
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: c,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, event auditdomain.Event) error {
	action := strings.TrimSpace(event.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	orgID := event.OrgID
	if orgID == 0 {
		ctxOrg, ok := orgcontext.Require(ctx)
		if !ok {
			return auditdomain.ErrInvalidOrganization
		}
		orgID = ctxOrg
	}
	targetType := strings.TrimSpace(event.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}

	metadata := datatypes.JSONMap{}
	for key, value := range event.Metadata {
		if key != "" {
			metadata[key] = value
		}
	}

	entry := &auditdomain.AuditLog{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		ActorType:     actorType,
		ActorID:       optional(actorID),
		Action:        action,
		TargetType:    targetType,
		TargetID:      strings.TrimSpace(event.TargetID),
		Metadata:      metadata,
		RequestID:     optional(obscontext.RequestIDFromContext(ctx)),
		CorrelationID: optional(obscontext.CorrelationIDFromContext(ctx)),
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, db.FromContext(ctx, s.db), entry); err != nil {
		s.log.Warn("audit insert failed", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidOrganization
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	pageSize := pagination.NormalizePageSize(req.PageSize)
	filter := auditdomain.ListFilter{
		OrgID:         orgID,
		Action:        req.Action,
		TargetType:    req.TargetType,
		TargetID:      req.TargetID,
		ActorType:     req.ActorType,
		CorrelationID: req.CorrelationID,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		Limit:         pageSize,
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		before, beforeID, err := decodePageToken(token)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		filter.Before = &before
		filter.BeforeID = beforeID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, encodePageToken)
	if len(items) > pageSize {
		items = items[:pageSize]
	}
	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		logs = append(logs, *item)
	}
	return auditdomain.ListAuditLogResponse{PageInfo: *pageInfo, AuditLogs: logs}, nil
}

func encodePageToken(item *auditdomain.AuditLog) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        item.ID.String(),
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}

func decodePageToken(token string) (time.Time, snowflake.ID, error) {
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return time.Time{}, 0, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return time.Time{}, 0, err
	}
	id, err := snowflake.ParseString(strings.TrimSpace(cursor.ID))
	if err != nil {
		return time.Time{}, 0, err
	}
	if id == 0 {
		return time.Time{}, 0, auditdomain.ErrInvalidPageToken
	}
	return createdAt, id, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
