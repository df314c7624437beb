package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/estatebook/internal/allocation"
	"github.com/smallbiznis/estatebook/internal/clock"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	"github.com/smallbiznis/estatebook/internal/lock"
	obsmetrics "github.com/smallbiznis/estatebook/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// StaleRecalculator is the slice of the payment cache service the scheduler drives.
type StaleRecalculator interface {
	RecalculateStale(ctx context.Context, filter contractpricedomain.StaleFilter) (*contractpricedomain.RecalcResult, error)
}

type Params struct {
	fx.In

	Log              *zap.Logger
	ContractPriceSvc contractpricedomain.Service
	Locker           *lock.Locker `optional:"true"`
	Clock            clock.Clock
	Config           Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	recalculator StaleRecalculator
	locker       *lock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.ContractPriceSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	if cfg.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Cron); err != nil {
			return nil, fmt.Errorf("%w: cron %q: %v", ErrInvalidConfig, cfg.Cron, err)
		}
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          cfg,
		clock:        p.Clock,
		recalculator: p.ContractPriceSvc,
		locker:       p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, p, owner := s.beginPass(ctx, name, batchSize)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))

	if errors.Is(err, obsmetrics.ErrLockHeld) {
		schedMetrics.IncBatchDeferred(name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Debug("job deferred, lease held by another replica", zap.String("job", name))
		return nil
	}
	if owner {
		s.finishPass(ctx, p, err)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next pass resumes the remaining work
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		schedMetrics.IncJobError(name, err)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	schedMetrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobRecalculateStale, s.isJobEnabled(JobRecalculateStale), func(ctx context.Context) error {
			return s.runJob(ctx, JobRecalculateStale, s.cfg.BatchSize, s.cfg.JobTimeout, s.RecalculateStaleJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

// RunForever drives RunOnce from the cron spec when one is configured and
// from a fixed ticker otherwise. It returns when ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	if s.cfg.Cron != "" {
		s.runCron(ctx)
		return
	}

	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context) {
	logger := cronLogger{log: s.log.Sugar()}
	runner := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := runner.AddFunc(s.cfg.Cron, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
	}); err != nil {
		s.log.Error("invalid scheduler cron spec", zap.String("cron", s.cfg.Cron), zap.Error(err))
		return
	}

	s.log.Info("scheduler cron started", zap.String("cron", s.cfg.Cron))
	runner.Start()
	<-ctx.Done()
	<-runner.Stop().Done()
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list enables every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RecalculateStaleJob claims stale payment caches in batches and recomputes
// them until a short batch or MaxBatches. Rows that fail are skipped for the
// rest of the pass so they cannot starve the rows queued behind them.
func (s *Scheduler) RecalculateStaleJob(ctx context.Context) (err error) {
	ctx, p, owner := s.beginPass(ctx, JobRecalculateStale, s.cfg.BatchSize)
	if owner {
		defer func() {
			if !errors.Is(err, obsmetrics.ErrLockHeld) {
				s.finishPass(ctx, p, err)
			}
		}()
	}

	release, err := s.acquirePassLock(ctx, JobRecalculateStale)
	if err != nil {
		return err
	}
	defer release()

	// Rows that failed keep their updated_at and would head every later batch.
	var tried []snowflake.ID
	schedMetrics := obsmetrics.Scheduler()
	for batch := 0; batch < s.cfg.MaxBatches; batch++ {
		if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}

		result, batchErr := s.recalculator.RecalculateStale(ctx, contractpricedomain.StaleFilter{
			Limit:      s.cfg.BatchSize,
			ExcludeIDs: tried,
		})
		if result != nil {
			schedMetrics.AddBatchProcessed(JobRecalculateStale, obsmetrics.LockResourceStaleContractPrices, result.Processed)
			err = errors.Join(err, s.reportFailures(ctx, p, result))
			tried = appendFailedIDs(tried, result.FailedIDs)
		}
		if batchErr != nil {
			return errors.Join(err, batchErr)
		}
		if result == nil || result.Processed+result.Failed < s.cfg.BatchSize {
			break
		}
	}
	return err
}

func appendFailedIDs(ids []snowflake.ID, failed []string) []snowflake.ID {
	for _, raw := range failed {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// reportFailures logs per-row failures. Rows blocked by an out-of-tolerance
// schedule stay stale until the schedule is fixed and do not fail the job.
func (s *Scheduler) reportFailures(ctx context.Context, p *pass, result *contractpricedomain.RecalcResult) error {
	var err error
	blocked := 0
	for i, rowErr := range result.Errors {
		if errors.Is(rowErr, allocation.ErrInvalidSchedule) {
			blocked++
			continue
		}
		id := ""
		if i < len(result.FailedIDs) {
			id = result.FailedIDs[i]
		}
		s.logRowFailure(ctx, JobRecalculateStale, id, rowErr)
		err = errors.Join(err, rowErr)
	}
	p.recordBatch(result.Processed, blocked, len(result.Errors)-blocked)
	if blocked > 0 {
		s.logger(ctx).Warn("scheduler.recalculate.blocked",
			zap.String("job", JobRecalculateStale),
			zap.Int("rows", blocked),
			zap.String("reason", "invalid_schedule"),
		)
	}
	return err
}

// acquirePassLock takes the per-job lease. Without redis every replica runs
// the pass; row locks inside Recalculate keep that safe.
func (s *Scheduler) acquirePassLock(ctx context.Context, job string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	token, ok, err := s.locker.TryLock(ctx, job, s.cfg.LockTTL)
	if err != nil {
		s.logger(ctx).Warn("scheduler lease unavailable, running unguarded",
			zap.String("job", job),
			zap.Error(err),
		)
		return noop, nil
	}
	if !ok {
		return nil, obsmetrics.ErrLockHeld
	}

	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), job, token); err != nil {
			s.logger(ctx).Warn("scheduler lease release failed",
				zap.String("job", job),
				zap.Error(err),
			)
		}
	}, nil
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
