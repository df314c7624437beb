package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	auditrepo "github.com/smallbiznis/estatebook/internal/audit/repository"
	auditservice "github.com/smallbiznis/estatebook/internal/audit/service"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/migration"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	projectrepo "github.com/smallbiznis/estatebook/internal/project/repository"
	"github.com/smallbiznis/estatebook/internal/unittype/domain"
	"github.com/smallbiznis/estatebook/internal/unittype/repository"
	"github.com/smallbiznis/estatebook/internal/unittype/service"
	"github.com/smallbiznis/estatebook/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, *gorm.DB, context.Context) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	require.NoError(t, conn.Create(&projectdomain.Project{ID: 10, OrgID: 1, Name: "Riverside", Slug: "riverside"}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	audit := auditservice.NewService(auditservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	svc := service.New(service.Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		ProjectRepo: projectrepo.Provide(),
		AuditSvc:    audit,
	})
	return svc, conn, orgcontext.WithOrgID(context.Background(), 1)
}

func TestCreate_SortIsUniquePerProject(t *testing.T) {
	svc, _, ctx := newService(t)

	first, err := svc.Create(ctx, "10", domain.CreateRequest{Name: "84A", Sort: 1})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(10), first.ProjectID)

	_, err = svc.Create(ctx, "10", domain.CreateRequest{Name: "84B", Sort: 1})
	assert.ErrorIs(t, err, domain.ErrSortTaken)

	_, err = svc.Create(ctx, "10", domain.CreateRequest{Name: "근린생활시설", Sort: 2})
	require.NoError(t, err)

	list, err := svc.List(ctx, "10")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, ctx := newService(t)

	_, err := svc.Create(ctx, "10", domain.CreateRequest{Name: " ", Sort: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, "10", domain.CreateRequest{Name: "84A", Sort: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidSort)

	_, err = svc.Create(ctx, "11", domain.CreateRequest{Name: "84A", Sort: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidProject)

	// another organization cannot see project 10
	_, err = svc.Create(orgcontext.WithOrgID(context.Background(), 2), "10", domain.CreateRequest{Name: "84A", Sort: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidProject)
}

func TestRename_KeepsSortAndRecordsPreviousName(t *testing.T) {
	svc, conn, ctx := newService(t)
	created, err := svc.Create(ctx, "10", domain.CreateRequest{Name: "84A", Sort: 1})
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, created.ID.String(), " 84A-1 ")
	require.NoError(t, err)
	assert.Equal(t, "84A-1", renamed.Name)
	assert.Equal(t, 1, renamed.Sort)

	got, err := svc.Get(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "84A-1", got.Name)

	var log auditdomain.AuditLog
	require.NoError(t, conn.Where("action = ?", "unit_type.renamed").First(&log).Error)
	assert.Equal(t, "84A", log.Metadata["previous_name"])

	_, err = svc.Rename(ctx, "999", "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
