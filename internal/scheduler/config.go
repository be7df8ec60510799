package scheduler

import (
	"time"

	appconfig "github.com/smallbiznis/cobranca/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval       time.Duration
	BatchSize         int
	DispatchBatchSize int
	JobTimeout        time.Duration
	LockTTL           time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Minute,
		BatchSize:         50,
		DispatchBatchSize: 50,
		JobTimeout:        30 * time.Second,
		LockTTL:           5 * time.Minute,
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
	if c.DispatchBatchSize <= 0 {
		c.DispatchBatchSize = defaults.DispatchBatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig(app appconfig.Config) Config {
	return Config{
		RunInterval:       app.SchedulerRunInterval,
		BatchSize:         app.SchedulerBatchSize,
		DispatchBatchSize: app.DispatchBatchSize,
	}.withDefaults()
}
