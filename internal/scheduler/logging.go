package scheduler

import (
	"context"
	"time"

	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	obscontext "github.com/smallbiznis/estatebook/internal/observability/context"
	obslogger "github.com/smallbiznis/estatebook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/estatebook/internal/observability/metrics"
	"go.uber.org/zap"
)

// pass tracks one execution of a job. Its id doubles as the correlation id
// so every query and audit line written during the pass can be joined.
type pass struct {
	job       string
	id        string
	batchSize int
	startedAt time.Time

	recalculated int
	blocked      int
	failed       int
}

type passKey struct{}

func (p *pass) recordBatch(recalculated, blocked, failed int) {
	if p == nil {
		return
	}
	p.recalculated += recalculated
	p.blocked += blocked
	p.failed += failed
}

func passFromContext(ctx context.Context) *pass {
	p, _ := ctx.Value(passKey{}).(*pass)
	return p
}

// beginPass attaches a pass to ctx unless an outer caller already did; the
// boolean reports whether this caller owns the pass and must finish it.
func (s *Scheduler) beginPass(ctx context.Context, job string, batchSize int) (context.Context, *pass, bool) {
	if existing := passFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeScheduler), job)
	ctx, id := obscontext.EnsureCorrelationID(ctx)
	p := &pass{
		job:       job,
		id:        id,
		batchSize: batchSize,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, passKey{}, p)

	s.logger(ctx).Info("scheduler.pass.start",
		zap.String("job", job),
		zap.Int("batch_size", batchSize),
	)
	return ctx, p, true
}

func (s *Scheduler) finishPass(ctx context.Context, p *pass, err error) {
	fields := []zap.Field{
		zap.String("job", p.job),
		zap.Int64("duration_ms", s.clock.Now().Sub(p.startedAt).Milliseconds()),
		zap.Int("recalculated", p.recalculated),
		zap.Int("blocked", p.blocked),
		zap.Int("failed", p.failed),
	}
	log := s.logger(ctx)
	switch {
	case err != nil:
		log.Warn("scheduler.pass.finish", append(fields, zap.Error(err))...)
	case p.failed > 0:
		log.Warn("scheduler.pass.finish", fields...)
	default:
		log.Info("scheduler.pass.finish", fields...)
	}
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logRowFailure(ctx context.Context, job, contractPriceID string, err error) {
	s.logger(ctx).Error("scheduler.recalculate.failed",
		zap.String("job", job),
		zap.String("contract_price_id", contractPriceID),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}
