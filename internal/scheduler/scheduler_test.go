package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/estatebook/internal/allocation"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/config"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	obsmetrics "github.com/smallbiznis/estatebook/internal/observability/metrics"
	"go.uber.org/zap"
)

type fakeRecalculator struct {
	results []*contractpricedomain.RecalcResult
	err     error
	filters []contractpricedomain.StaleFilter
}

func (f *fakeRecalculator) RecalculateStale(_ context.Context, filter contractpricedomain.StaleFilter) (*contractpricedomain.RecalcResult, error) {
	call := len(f.filters)
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return &contractpricedomain.RecalcResult{}, f.err
	}
	if call >= len(f.results) {
		return &contractpricedomain.RecalcResult{}, nil
	}
	return f.results[call], nil
}

func newTestScheduler(t *testing.T, rec StaleRecalculator, cfg Config) *Scheduler {
	t.Helper()
	return &Scheduler{
		log:          zap.NewNop(),
		cfg:          cfg.withDefaults(),
		clock:        clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		recalculator: rec,
	}
}

func useTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	obsmetrics.UseSchedulerRegistryForTest(registry)
	t.Cleanup(obsmetrics.ResetSchedulerMetricsForTest)
	return registry
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := useTestRegistry(t)
	s := newTestScheduler(t, &fakeRecalculator{}, Config{})

	err := s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "estatebook",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "estatebook_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "estatebook",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "estatebook_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobLockHeldIsDeferred(t *testing.T) {
	registry := useTestRegistry(t)
	s := newTestScheduler(t, &fakeRecalculator{}, Config{})

	err := s.runJob(context.Background(), JobRecalculateStale, 10, time.Second, func(context.Context) error {
		return obsmetrics.ErrLockHeld
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "estatebook",
		"env":     "test",
		"job":     JobRecalculateStale,
		"reason":  obsmetrics.SchedulerBatchDeferredReasonLockHeld,
	}
	if got := getCounterValue(t, registry, "estatebook_scheduler_batch_deferred_total", labels); got != 1 {
		t.Fatalf("expected deferred count 1, got %v", got)
	}
}

func TestRunJobWrapsErrors(t *testing.T) {
	useTestRegistry(t)
	s := newTestScheduler(t, &fakeRecalculator{}, Config{})
	boom := errors.New("boom")

	err := s.runJob(context.Background(), "failing_job", 1, time.Second, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if err.Error() != "failing_job: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRecalculateStaleJobDrainsFullBatches(t *testing.T) {
	registry := useTestRegistry(t)
	rec := &fakeRecalculator{results: []*contractpricedomain.RecalcResult{
		{Processed: 2},
		{Processed: 2},
		{Processed: 1},
	}}
	s := newTestScheduler(t, rec, Config{BatchSize: 2})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(rec.filters) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(rec.filters))
	}
	for _, filter := range rec.filters {
		if filter.Limit != 2 {
			t.Fatalf("expected batch limit 2, got %d", filter.Limit)
		}
		if filter.OrgID != 0 || filter.ProjectID != 0 {
			t.Fatalf("scheduler must scan every organization, got %+v", filter)
		}
	}

	labels := map[string]string{
		"service":  "estatebook",
		"env":      "test",
		"job":      JobRecalculateStale,
		"resource": obsmetrics.LockResourceStaleContractPrices,
	}
	if got := getCounterValue(t, registry, "estatebook_scheduler_batch_processed_total", labels); got != 5 {
		t.Fatalf("expected 5 processed, got %v", got)
	}
}

func TestRecalculateStaleJobStopsAtMaxBatches(t *testing.T) {
	useTestRegistry(t)
	results := make([]*contractpricedomain.RecalcResult, 10)
	for i := range results {
		results[i] = &contractpricedomain.RecalcResult{Processed: 1}
	}
	rec := &fakeRecalculator{results: results}
	s := newTestScheduler(t, rec, Config{BatchSize: 1, MaxBatches: 3})

	if err := s.RecalculateStaleJob(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}
	if len(rec.filters) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(rec.filters))
	}
}

func TestRecalculateStaleJobToleratesBlockedSchedules(t *testing.T) {
	useTestRegistry(t)
	blocked := fmt.Errorf("recalculate: %w", &allocation.InvalidScheduleError{})
	rec := &fakeRecalculator{results: []*contractpricedomain.RecalcResult{
		{Processed: 1, Failed: 1, FailedIDs: []string{"7"}, Errors: []error{blocked}},
		{Processed: 0, Failed: 1, FailedIDs: []string{"7"}, Errors: []error{blocked}},
	}}
	s := newTestScheduler(t, rec, Config{BatchSize: 2})

	if err := s.RecalculateStaleJob(context.Background()); err != nil {
		t.Fatalf("expected blocked rows to be tolerated, got %v", err)
	}
	if len(rec.filters) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(rec.filters))
	}
	if len(rec.filters[0].ExcludeIDs) != 0 {
		t.Fatalf("first batch must not exclude rows, got %v", rec.filters[0].ExcludeIDs)
	}
	if got := rec.filters[1].ExcludeIDs; len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected blocked row 7 excluded from the next batch, got %v", got)
	}
}

func TestRecalculateStaleJobContinuesPastFullyBlockedBatch(t *testing.T) {
	useTestRegistry(t)
	blocked := &allocation.InvalidScheduleError{}
	rec := &fakeRecalculator{results: []*contractpricedomain.RecalcResult{
		{Failed: 2, FailedIDs: []string{"7", "8"}, Errors: []error{blocked, blocked}},
		{Processed: 1},
	}}
	s := newTestScheduler(t, rec, Config{BatchSize: 2})

	if err := s.RecalculateStaleJob(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}
	if len(rec.filters) != 2 {
		t.Fatalf("expected a second batch after a blocked one, got %d", len(rec.filters))
	}
	if got := rec.filters[1].ExcludeIDs; len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Fatalf("unexpected exclusions %v", got)
	}
}

func TestRecalculateStaleJobReportsRowFailures(t *testing.T) {
	useTestRegistry(t)
	rowErr := errors.New("db gone")
	rec := &fakeRecalculator{results: []*contractpricedomain.RecalcResult{
		{Processed: 3, Failed: 1, FailedIDs: []string{"42"}, Errors: []error{rowErr}},
	}}
	s := newTestScheduler(t, rec, Config{BatchSize: 10})

	err := s.RunOnce(context.Background())
	if !errors.Is(err, rowErr) {
		t.Fatalf("expected row failure, got %v", err)
	}
}

func TestRecalculateStaleJobTalliesPass(t *testing.T) {
	useTestRegistry(t)
	blocked := &allocation.InvalidScheduleError{}
	rec := &fakeRecalculator{results: []*contractpricedomain.RecalcResult{
		{Processed: 2, Failed: 2, FailedIDs: []string{"8", "9"}, Errors: []error{blocked, errors.New("timeout")}},
	}}
	s := newTestScheduler(t, rec, Config{BatchSize: 10})

	ctx, p, owner := s.beginPass(context.Background(), JobRecalculateStale, 10)
	if !owner {
		t.Fatal("expected fresh context to own the pass")
	}
	_ = s.RecalculateStaleJob(ctx)

	if p.recalculated != 2 || p.blocked != 1 || p.failed != 1 {
		t.Fatalf("unexpected tally: recalculated=%d blocked=%d failed=%d", p.recalculated, p.blocked, p.failed)
	}
	if p.id == "" {
		t.Fatal("expected pass to carry a correlation id")
	}
}

func TestRecalculateStaleJobPropagatesListErrors(t *testing.T) {
	useTestRegistry(t)
	listErr := errors.New("list failed")
	rec := &fakeRecalculator{err: listErr}
	s := newTestScheduler(t, rec, Config{})

	if err := s.RecalculateStaleJob(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestRunOnceSkipsDisabledJobs(t *testing.T) {
	useTestRegistry(t)
	rec := &fakeRecalculator{}
	s := newTestScheduler(t, rec, Config{EnabledJobs: []string{"something_else"}})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(rec.filters) != 0 {
		t.Fatalf("disabled job ran %d batches", len(rec.filters))
	}

	s.cfg.EnabledJobs = []string{"RECALCULATE_STALE"}
	if !s.isJobEnabled(JobRecalculateStale) {
		t.Fatalf("job names are case-insensitive")
	}
}

func TestProvideConfigAppliesDefaults(t *testing.T) {
	cfg := ProvideConfig(config.Config{Scheduler: config.SchedulerConfig{
		Cron:        "*/10 * * * *",
		EnabledJobs: []string{JobRecalculateStale},
	}})

	defaults := DefaultConfig()
	if cfg.RunInterval != defaults.RunInterval || cfg.BatchSize != defaults.BatchSize {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Cron != "*/10 * * * *" {
		t.Fatalf("cron not carried: %q", cfg.Cron)
	}
	if cfg.LockTTL < cfg.JobTimeout {
		t.Fatalf("lease ttl %v shorter than job timeout %v", cfg.LockTTL, cfg.JobTimeout)
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
