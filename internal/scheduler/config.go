package scheduler

import (
	"time"

	"github.com/smallbiznis/rentbill/internal/config"
)

const (
	JobMarkOverdue   = "mark_overdue"
	JobApplyLateFees = "apply_late_fees"
)

// Config controls the sweep cadence and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	// MaxBatches bounds how many batches a single job drains per tick.
	MaxBatches int
	LockKey    string
	LockTTL    time.Duration
	// EnabledJobs restricts the run to the named jobs. Empty runs all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   100,
		JobTimeout:  30 * time.Second,
		MaxBatches:  50,
		LockKey:     "rentbill:scheduler:tick",
		LockTTL:     2 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.RunInterval,
		BatchSize:   cfg.Scheduler.BatchSize,
		JobTimeout:  cfg.Scheduler.JobTimeout,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = defaults.MaxBatches
	}
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	// The lock must outlive a full tick or a second replica can start mid-run.
	if minTTL := 2 * c.JobTimeout; c.LockTTL < minTTL {
		c.LockTTL = minTTL
	}
	return c
}
