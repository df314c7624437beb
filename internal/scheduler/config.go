package scheduler

import (
	"time"

	"github.com/smallbiznis/estatebook/internal/config"
)

const (
	JobRecalculateStale = "recalculate_stale"
)

// Config controls the run loop, batch sizes and per-pass leases.
type Config struct {
	RunInterval time.Duration
	// Cron replaces RunInterval when set. Standard five-field syntax.
	Cron        string
	BatchSize   int
	MaxBatches  int
	JobTimeout  time.Duration
	LockTTL     time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 5 * time.Minute,
		BatchSize:   100,
		MaxBatches:  50,
		JobTimeout:  2 * time.Minute,
		LockTTL:     3 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = defaults.MaxBatches
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	// the lease must outlive the pass it guards
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout + 30*time.Second
	}
	return c
}

// ProvideConfig maps the SCHEDULER_* environment onto the scheduler config.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.Interval,
		Cron:        cfg.Scheduler.Cron,
		BatchSize:   cfg.Scheduler.BatchSize,
		EnabledJobs: cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}
