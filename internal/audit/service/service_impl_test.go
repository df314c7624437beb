package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/audit/repository"
	"github.com/smallbiznis/estatebook/internal/audit/service"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/migration"
	obscontext "github.com/smallbiznis/estatebook/internal/observability/context"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	"github.com/smallbiznis/estatebook/pkg/db"
	"github.com/smallbiznis/estatebook/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const orgID = snowflake.ID(3)

func newService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc := service.NewService(service.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, conn, clk
}

func TestRecord_TakesActorAndCorrelationFromContext(t *testing.T) {
	svc, conn, _ := newService(t)
	ctx := obscontext.WithActor(context.Background(), string(auditdomain.ActorTypeUser), "agent-7")
	ctx = obscontext.WithCorrelationID(ctx, "01J0CORRELATION")

	require.NoError(t, svc.Record(ctx, auditdomain.Event{
		OrgID:      orgID,
		Action:     "contract.created",
		TargetType: "contract",
		TargetID:   "99",
		Metadata:   map[string]any{"amount": 500000000, "": "dropped"},
	}))

	var stored auditdomain.AuditLog
	require.NoError(t, conn.First(&stored).Error)
	assert.Equal(t, orgID, stored.OrgID)
	assert.Equal(t, "user", stored.ActorType)
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, "agent-7", *stored.ActorID)
	require.NotNil(t, stored.CorrelationID)
	assert.Equal(t, "01J0CORRELATION", *stored.CorrelationID)
	assert.Nil(t, stored.RequestID)
	assert.NotContains(t, stored.Metadata, "")
}

func TestRecord_DefaultsToSystemActorAndContextOrg(t *testing.T) {
	svc, conn, _ := newService(t)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	require.NoError(t, svc.Record(ctx, auditdomain.Event{Action: "project.created"}))

	var stored auditdomain.AuditLog
	require.NoError(t, conn.First(&stored).Error)
	assert.Equal(t, orgID, stored.OrgID)
	assert.Equal(t, "system", stored.ActorType)
	assert.Equal(t, "unknown", stored.TargetType)
}

func TestRecord_Validation(t *testing.T) {
	svc, _, _ := newService(t)

	err := svc.Record(context.Background(), auditdomain.Event{OrgID: orgID, Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = svc.Record(context.Background(), auditdomain.Event{Action: "project.created"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}

func TestRecord_RollsBackWithCallerTransaction(t *testing.T) {
	svc, conn, _ := newService(t)
	rollback := errors.New("rollback")

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Record(db.WithTx(context.Background(), tx), auditdomain.Event{OrgID: orgID, Action: "ledger.entry_created"}); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	var count int64
	require.NoError(t, conn.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestList_PagesNewestFirst(t *testing.T) {
	svc, _, clk := newService(t)
	for _, action := range []string{"unit_type.created", "house_unit.created", "contract.created"} {
		require.NoError(t, svc.Record(context.Background(), auditdomain.Event{OrgID: orgID, Action: action}))
		clk.Advance(time.Minute)
	}
	require.NoError(t, svc.Record(context.Background(), auditdomain.Event{OrgID: orgID + 1, Action: "contract.created"}))

	ctx := orgcontext.WithOrgID(context.Background(), orgID)
	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "contract.created", first.AuditLogs[0].Action)
	assert.Equal(t, "house_unit.created", first.AuditLogs[1].Action)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "unit_type.created", second.AuditLogs[0].Action)
}

func TestList_FiltersAndErrors(t *testing.T) {
	svc, _, _ := newService(t)
	require.NoError(t, svc.Record(context.Background(), auditdomain.Event{OrgID: orgID, Action: "contract.created", TargetType: "contract", TargetID: "5"}))
	require.NoError(t, svc.Record(context.Background(), auditdomain.Event{OrgID: orgID, Action: "contract.cancelled", TargetType: "contract", TargetID: "5"}))

	ctx := orgcontext.WithOrgID(context.Background(), orgID)
	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "contract.cancelled"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}
