package jobs

import (
	"context"

	"github.com/wonny/breakscan/internal/cache"
	"github.com/wonny/breakscan/pkg/logger"
)

// DefaultSweepSchedule runs every 10 minutes
const DefaultSweepSchedule = "0 */10 * * * *"

// CacheSweepJob evicts expired analyses from the quote cache
type CacheSweepJob struct {
	cache    *cache.QuoteCache
	schedule string
	logger   *logger.Logger
}

// NewCacheSweepJob creates a new cache sweep job
func NewCacheSweepJob(quoteCache *cache.QuoteCache, schedule string, log *logger.Logger) *CacheSweepJob {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &CacheSweepJob{
		cache:    quoteCache,
		schedule: schedule,
		logger:   log.WithComponent("cache_sweep"),
	}
}

// Name returns the job name
func (j *CacheSweepJob) Name() string {
	return "cache_sweep"
}

// Schedule returns the cron schedule
func (j *CacheSweepJob) Schedule() string {
	return j.schedule
}

// Run evicts expired entries
func (j *CacheSweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	removed := j.cache.Sweep()
	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed":   removed,
			"remaining": j.cache.Len(),
		}).Info("Cache sweep completed")
	}
	return nil
}
