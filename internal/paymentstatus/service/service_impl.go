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
	obsmetrics "github.com/smallbiznis/estatebook/internal/observability/metrics"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	"github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Config     *config.AllocationConfigHolder
	Source     domain.Source
	Refresher  domain.Refresher
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	cfg        *config.AllocationConfigHolder
	source     domain.Source
	refresher  domain.Refresher
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("paymentstatus.service"),
		clock:      p.Clock,
		cfg:        p.Config,
		source:     p.Source,
		refresher:  p.Refresher,
		obsMetrics: p.ObsMetrics,
	}
}

// AsRefresher lets the report persist recomputed caches through the contract price service.
func AsRefresher(r contractpricedomain.Recalculator) domain.Refresher {
	return r
}

func (s *Service) Aggregate(ctx context.Context, projectID string, asOf *time.Time) (*domain.Report, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	pid, err := snowflake.ParseString(strings.TrimSpace(projectID))
	if err != nil || pid == 0 {
		return nil, domain.ErrInvalidProject
	}

	now := s.clock.Now()
	at := now
	if asOf != nil && !asOf.IsZero() {
		at = *asOf
	}

	snap, err := s.source.Load(ctx, orgID, pid)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrProjectNotFound
	}

	cfg := s.cfg.Get()
	var refreshWarnings []domain.Warning
	if cfg.RefreshStaleOnRead {
		refreshWarnings = s.refreshStale(ctx, orgID, snap)
	}

	report := aggregate(snap, at, now, cfg)
	report.Warnings = append(report.Warnings, refreshWarnings...)

	for _, w := range report.Warnings {
		s.obsMetrics.RecordReportWarning(ctx, string(w.Kind))
	}
	if violations := report.WarningsOf(domain.WarningInvariantViolation); len(violations) > 0 {
		s.log.Warn("payment status rows out of balance",
			zap.String("project_id", pid.String()),
			zap.Int("rows", len(violations)),
		)
	}
	s.log.Debug("payment status aggregated",
		zap.String("project_id", pid.String()),
		zap.Time("as_of", at),
		zap.Int("rows", len(report.Rows)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// refreshStale persists recomputed caches for invalid rows and swaps the fresh
// rows into snap. Rows that fail stay stale and are recomputed in memory.
func (s *Service) refreshStale(ctx context.Context, orgID snowflake.ID, snap *domain.Snapshot) []domain.Warning {
	if s.refresher == nil {
		return nil
	}
	var warnings []domain.Warning
	for i := range snap.Prices {
		cp := snap.Prices[i]
		if cp.IsCacheValid {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}
		updated, err := s.refresher.Recalculate(ctx, orgID, cp.ID, contractpricedomain.SourceReport)
		if err != nil {
			if errors.Is(err, allocation.ErrInvalidSchedule) {
				continue
			}
			s.log.Warn("refresh of stale payment cache failed",
				zap.String("contract_price_id", cp.ID.String()),
				zap.Error(err),
			)
			warnings = append(warnings, domain.Warning{
				Kind:            domain.WarningRefreshFailed,
				Message:         fmt.Sprintf("contract price %s: %v", cp.ID.String(), err),
				ContractPriceID: cp.ID.String(),
				Err:             err,
			})
			continue
		}
		if updated != nil {
			snap.Prices[i] = *updated
		}
	}
	return warnings
}
