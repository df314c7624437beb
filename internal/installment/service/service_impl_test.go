package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/config"
	"github.com/smallbiznis/estatebook/internal/installment/domain"
	"github.com/smallbiznis/estatebook/internal/installment/repository"
	"github.com/smallbiznis/estatebook/internal/installment/service"
	"github.com/smallbiznis/estatebook/internal/migration"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	projectrepo "github.com/smallbiznis/estatebook/internal/project/repository"
	"github.com/smallbiznis/estatebook/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type scheduleInvalidation struct {
	projectID snowflake.ID
	typeSort  int
}

type fakeInvalidator struct {
	calls []scheduleInvalidation
	err   error
}

func (f *fakeInvalidator) InvalidateUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, reason string) error {
	return f.err
}

func (f *fakeInvalidator) InvalidateSchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int) error {
	f.calls = append(f.calls, scheduleInvalidation{projectID: projectID, typeSort: typeSort})
	return f.err
}

func newService(t *testing.T, cfg config.AllocationConfig) (domain.Service, *fakeInvalidator, context.Context) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	require.NoError(t, conn.Create(&projectdomain.Project{ID: 10, OrgID: 1, Name: "Riverside", Slug: "riverside"}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	invalidator := &fakeInvalidator{}
	svc := service.New(service.Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Config:      config.NewStaticAllocationConfigHolder(cfg),
		Repo:        repository.Provide(),
		ProjectRepo: projectrepo.Provide(),
		Invalidator: invalidator,
	})
	return svc, invalidator, orgcontext.WithOrgID(context.Background(), 1)
}

func step(code, ratio string) domain.StepRequest {
	return domain.StepRequest{Code: code, Name: code, Ratio: decimal.RequireFromString(ratio)}
}

func TestReplaceSchedule_SwapsStepsAndInvalidates(t *testing.T) {
	svc, invalidator, ctx := newService(t, config.DefaultAllocationConfig())

	_, err := svc.ReplaceSchedule(ctx, "10", 1, []domain.StepRequest{step("DOWN", "0.5"), step("BALANCE", "0.5")})
	require.NoError(t, err)

	got, err := svc.ReplaceSchedule(ctx, "10", 1, []domain.StepRequest{step("DOWN", "0.1"), step("MIDDLE", "0.6"), step("BALANCE", "0.3")})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[1].PayTime)

	typeSort := 1
	stored, err := svc.ListSchedule(ctx, "10", &typeSort)
	require.NoError(t, err)
	codes := make([]string, 0, len(stored))
	for _, s := range stored {
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{"DOWN", "MIDDLE", "BALANCE"}, codes)
	assert.Equal(t, []scheduleInvalidation{{10, 1}, {10, 1}}, invalidator.calls)
}

func TestReplaceSchedule_EnforcesRatioSumOnWrite(t *testing.T) {
	svc, invalidator, ctx := newService(t, config.DefaultAllocationConfig())

	_, err := svc.ReplaceSchedule(ctx, "10", 1, []domain.StepRequest{step("DOWN", "0.1"), step("BALANCE", "0.5")})
	assert.ErrorIs(t, err, domain.ErrInvalidScheduleRatios)
	assert.Empty(t, invalidator.calls)
}

func TestReplaceSchedule_AllowsOffSumWhenNotEnforced(t *testing.T) {
	cfg := config.DefaultAllocationConfig()
	cfg.EnforceOnWrite = false
	svc, _, ctx := newService(t, cfg)

	got, err := svc.ReplaceSchedule(ctx, "10", 1, []domain.StepRequest{step("DOWN", "0.1"), step("BALANCE", "0.5")})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReplaceSchedule_RejectsDuplicateCodes(t *testing.T) {
	svc, _, ctx := newService(t, config.DefaultAllocationConfig())

	_, err := svc.ReplaceSchedule(ctx, "10", 1, []domain.StepRequest{step("DOWN", "0.5"), step("DOWN", "0.5")})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestReplaceSchedule_RollsBackWhenInvalidationFails(t *testing.T) {
	svc, invalidator, ctx := newService(t, config.DefaultAllocationConfig())
	_, err := svc.ReplaceSchedule(ctx, "10", 1, []domain.StepRequest{step("DOWN", "1")})
	require.NoError(t, err)

	invalidator.err = errors.New("boom")
	_, err = svc.ReplaceSchedule(ctx, "10", 1, []domain.StepRequest{step("DOWN", "0.4"), step("BALANCE", "0.6")})
	require.Error(t, err)

	typeSort := 1
	stored, err := svc.ListSchedule(ctx, "10", &typeSort)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Ratio.Equal(decimal.NewFromInt(1)))
}

func TestCreateStep_DoesNotEnforceRatioSum(t *testing.T) {
	svc, invalidator, ctx := newService(t, config.DefaultAllocationConfig())

	req := step("DOWN", "0.1")
	req.TypeSort = 2
	created, err := svc.CreateStep(ctx, "10", req)
	require.NoError(t, err)
	assert.Equal(t, 2, created.TypeSort)
	assert.Equal(t, []scheduleInvalidation{{10, 2}}, invalidator.calls)

	_, err = svc.CreateStep(ctx, "10", req)
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestDeleteStep(t *testing.T) {
	svc, _, ctx := newService(t, config.DefaultAllocationConfig())
	created, err := svc.CreateStep(ctx, "10", step("DOWN", "1"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStep(ctx, created.ID.String()))
	assert.ErrorIs(t, svc.DeleteStep(ctx, created.ID.String()), domain.ErrNotFound)
}

func TestServiceRequiresOrganization(t *testing.T) {
	svc, _, _ := newService(t, config.DefaultAllocationConfig())

	_, err := svc.ListSchedule(context.Background(), "10", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}
