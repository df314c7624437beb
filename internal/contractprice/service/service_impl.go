package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebook/internal/allocation"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/config"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	obsmetrics "github.com/smallbiznis/estatebook/internal/observability/metrics"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Config          *config.AllocationConfigHolder
	Repo            contractpricedomain.Repository
	ProjectRepo     projectdomain.Repository
	HouseUnitRepo   houseunitdomain.Repository
	UnitTypeRepo    unittypedomain.Repository
	InstallmentRepo installmentdomain.Repository
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	cfg             *config.AllocationConfigHolder
	repo            contractpricedomain.Repository
	projectRepo     projectdomain.Repository
	houseUnitRepo   houseunitdomain.Repository
	unitTypeRepo    unittypedomain.Repository
	installmentRepo installmentdomain.Repository
	obsMetrics      *obsmetrics.Metrics
}

func New(p Params) contractpricedomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("contractprice.service"),
		clock:           p.Clock,
		cfg:             p.Config,
		repo:            p.Repo,
		projectRepo:     p.ProjectRepo,
		houseUnitRepo:   p.HouseUnitRepo,
		unitTypeRepo:    p.UnitTypeRepo,
		installmentRepo: p.InstallmentRepo,
		obsMetrics:      p.ObsMetrics,
	}
}

// AsInvalidator exposes the cache hooks to writers of upstream data.
func AsInvalidator(svc contractpricedomain.Service) contractpricedomain.Invalidator {
	return svc
}

// AsRecalculator exposes single-row recomputation to readers.
func AsRecalculator(svc contractpricedomain.Service) contractpricedomain.Recalculator {
	return svc
}

func (s *Service) GetByUnit(ctx context.Context, unitID string) (*contractpricedomain.ContractPrice, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, contractpricedomain.ErrInvalidOrganization
	}
	uid, err := snowflake.ParseString(strings.TrimSpace(unitID))
	if err != nil || uid == 0 {
		return nil, contractpricedomain.ErrInvalidID
	}

	cp, err := s.repo.FindByUnit(ctx, s.db, orgID, uid)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, contractpricedomain.ErrNotFound
	}
	return cp, nil
}

func (s *Service) RecalculateUnit(ctx context.Context, unitID string) (*contractpricedomain.ContractPrice, error) {
	cp, err := s.GetByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	return s.Recalculate(ctx, cp.OrgID, cp.ID, contractpricedomain.SourceRequest)
}

// Recalculate recomputes payment_amounts for one row while holding its row lock.
// Under the reject policy an out-of-tolerance schedule leaves the cache invalid
// and returns the *allocation.InvalidScheduleError.
func (s *Service) Recalculate(ctx context.Context, orgID, id snowflake.ID, source string) (*contractpricedomain.ContractPrice, error) {
	if orgID == 0 {
		return nil, contractpricedomain.ErrInvalidOrganization
	}
	if id == 0 {
		return nil, contractpricedomain.ErrInvalidID
	}

	cfg := s.cfg.Get()
	opts := allocation.Options{Tolerance: cfg.ToleranceDecimal(), DefaultCode: cfg.DefaultStepCode}

	var updated *contractpricedomain.ContractPrice
	outcome := "ok"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		cp, err := s.repo.LockByID(ctx, tx, orgID, id)
		if source == contractpricedomain.SourceScheduler {
			obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceContractPriceByID, time.Since(lockStart))
		}
		if err != nil {
			return err
		}
		if cp == nil {
			return contractpricedomain.ErrNotFound
		}

		steps, err := s.scheduleForUnit(ctx, tx, orgID, cp.HouseUnitID)
		if err != nil {
			return err
		}

		result, err := allocation.Allocate(cp.Price, steps, opts)
		if err != nil {
			invalid, ok := allocation.AsInvalidSchedule(err)
			if !ok {
				return err
			}
			outcome = "invalid_schedule"
			if cfg.Rejects() {
				return err
			}
			s.log.Warn("allocating with out-of-tolerance schedule",
				zap.String("contract_price_id", cp.ID.String()),
				zap.String("ratio_sum", invalid.RatioSum.String()),
			)
		} else if result.IsFallback(opts) {
			outcome = "fallback"
		}

		if err := allocation.Reconcile(result, cp.Price, steps, opts); err != nil {
			return fmt.Errorf("contract price %s: %w", cp.ID, err)
		}

		if cp.IsCacheValid && cp.Allocation().Equal(result) {
			updated = cp
			return nil
		}

		now := s.clock.Now()
		if err := s.repo.SaveAllocation(ctx, tx, orgID, cp.ID, result, now); err != nil {
			return err
		}
		cp.PaymentAmounts = []allocation.Line(result)
		cp.IsCacheValid = true
		cp.CalculatedAt = &now
		cp.UpdatedAt = now
		updated = cp
		return nil
	})

	s.obsMetrics.RecordAllocation(ctx, outcome)
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordCacheRecompute(ctx, source)
	return updated, nil
}

func (s *Service) RecalculateProject(ctx context.Context, projectID string) (*contractpricedomain.RecalcResult, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, contractpricedomain.ErrInvalidOrganization
	}
	pid, err := snowflake.ParseString(strings.TrimSpace(projectID))
	if err != nil || pid == 0 {
		return nil, contractpricedomain.ErrInvalidProject
	}
	project, err := s.projectRepo.FindByID(ctx, s.db, orgID, pid)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, contractpricedomain.ErrInvalidProject
	}

	// Rows whose recomputation fails below stay invalid instead of keeping a
	// cache computed from an older schedule.
	invalidated, err := s.repo.InvalidateByProject(ctx, s.db, orgID, pid, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordCacheInvalidation(ctx, contractpricedomain.InvalidationProject, invalidated)

	rows, err := s.repo.ListByProject(ctx, s.db, orgID, pid)
	if err != nil {
		return nil, err
	}

	result := &contractpricedomain.RecalcResult{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.recalculateInto(ctx, result, row.OrgID, row.ID, contractpricedomain.SourceProject)
	}

	s.log.Info("project payment caches recalculated",
		zap.String("project_id", pid.String()),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// RecalculateStale refreshes up to filter.Limit invalid rows, oldest first.
func (s *Service) RecalculateStale(ctx context.Context, filter contractpricedomain.StaleFilter) (*contractpricedomain.RecalcResult, error) {
	refs, err := s.repo.ListStale(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	result := &contractpricedomain.RecalcResult{}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.recalculateInto(ctx, result, ref.OrgID, ref.ID, contractpricedomain.SourceScheduler)
	}
	return result, nil
}

func (s *Service) recalculateInto(ctx context.Context, result *contractpricedomain.RecalcResult, orgID, id snowflake.ID, source string) {
	if _, err := s.Recalculate(ctx, orgID, id, source); err != nil {
		result.Failed++
		result.FailedIDs = append(result.FailedIDs, id.String())
		result.Errors = append(result.Errors, err)
		if !errors.Is(err, allocation.ErrInvalidSchedule) {
			s.log.Warn("payment cache recalculation failed",
				zap.String("contract_price_id", id.String()),
				zap.Error(err),
			)
		}
		return
	}
	result.Processed++
}

func (s *Service) InvalidateUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, reason string) error {
	count, err := s.repo.InvalidateByUnit(ctx, db, orgID, unitID, s.clock.Now())
	if err != nil {
		return err
	}
	s.obsMetrics.RecordCacheInvalidation(ctx, reason, count)
	return nil
}

func (s *Service) InvalidateSchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int) error {
	count, err := s.repo.InvalidateBySchedule(ctx, db, orgID, projectID, typeSort, s.clock.Now())
	if err != nil {
		return err
	}
	s.obsMetrics.RecordCacheInvalidation(ctx, contractpricedomain.InvalidationSchedule, count)
	s.log.Debug("payment caches invalidated",
		zap.String("project_id", projectID.String()),
		zap.Int("type_sort", typeSort),
		zap.Int64("rows", count),
	)
	return nil
}

func (s *Service) scheduleForUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID) ([]allocation.Step, error) {
	unit, err := s.houseUnitRepo.FindByID(ctx, db, orgID, unitID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, contractpricedomain.ErrUnitNotFound
	}
	unitType, err := s.unitTypeRepo.FindByID(ctx, db, orgID, unit.UnitTypeID)
	if err != nil {
		return nil, err
	}
	if unitType == nil {
		return nil, nil
	}
	items, err := s.installmentRepo.ListSchedule(ctx, db, orgID, unit.ProjectID, unitType.Sort)
	if err != nil {
		return nil, err
	}
	return installmentdomain.Steps(items), nil
}
