package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/logger"
	"github.com/wonny/breakscan/pkg/redis"
)

// ErrOutage is returned when a scheduled scan analyzed nothing
var ErrOutage = errors.New("no symbol could be analyzed")

// Publisher shares finished scans with other processes (pkg/redis.SnapshotStore)
type Publisher interface {
	Put(ctx context.Context, name string, value interface{}, ttl time.Duration) error
}

// Snapshot name and lifetime of the published result
const (
	SnapshotName = redis.LatestScanKey
	SnapshotTTL  = redis.TTLScan

	// publishTimeout bounds the snapshot write after the scan deadline has passed
	publishTimeout = 5 * time.Second
)

// BreakoutScanJob runs a full-universe scan on a schedule
// ⭐ SSOT: 정기 스캔 스케줄은 이 Job에서만
type BreakoutScanJob struct {
	scanner  contracts.Scanner
	filters  contracts.ScanFilters
	schedule string
	timeout  time.Duration
	publish  Publisher
	logger   *logger.Logger

	mu   sync.RWMutex
	last *contracts.ScanResult
}

// NewBreakoutScanJob creates a scheduled scan; timeout <= 0 means no deadline
func NewBreakoutScanJob(scanner contracts.Scanner, filters contracts.ScanFilters, schedule string, timeout time.Duration, log *logger.Logger) *BreakoutScanJob {
	return &BreakoutScanJob{
		scanner:  scanner,
		filters:  filters,
		schedule: schedule,
		timeout:  timeout,
		logger:   log.WithComponent("breakout_scan"),
	}
}

// WithPublisher publishes every completed scan; nil disables publishing
func (j *BreakoutScanJob) WithPublisher(p Publisher) *BreakoutScanJob {
	j.publish = p
	return j
}

// Name returns the job name
func (j *BreakoutScanJob) Name() string {
	return "breakout_scan"
}

// Schedule returns the cron schedule
func (j *BreakoutScanJob) Schedule() string {
	return j.schedule
}

// Run executes one scan. A provider outage is an error so the scheduler retries it.
func (j *BreakoutScanJob) Run(ctx context.Context) error {
	parent := ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	result, err := j.scanner.Scan(ctx, j.filters)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	j.mu.Lock()
	j.last = result
	j.mu.Unlock()

	if j.publish != nil {
		j.publishResult(parent, result)
	}

	if result.Outage() {
		return fmt.Errorf("%w: %d candidates, %d unavailable, %d failed",
			ErrOutage, result.Stats.TotalCandidates, result.Stats.Unavailable, result.Stats.Failed)
	}

	top := make([]string, 0, 5)
	for i, r := range result.Breakouts {
		if i == 5 {
			break
		}
		top = append(top, fmt.Sprintf("%s(%s %.2f)", r.Symbol, r.Breakout.Type, r.Breakout.Confidence))
	}

	j.logger.WithFields(map[string]interface{}{
		"breakouts": result.Stats.Returned,
		"scanned":   result.Stats.TotalScanned,
		"top":       top,
	}).Info("Scheduled scan finished")

	return nil
}

// publishResult writes the snapshot even when the scan ran into its deadline:
// a partial result is still the newest one.
func (j *BreakoutScanJob) publishResult(parent context.Context, result *contracts.ScanResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), publishTimeout)
	defer cancel()

	// 공유 실패는 스캔 실패가 아님
	if err := j.publish.Put(ctx, SnapshotName, result, SnapshotTTL); err != nil {
		j.logger.WithError(err).Warn("Failed to publish scan result")
	}
}

// Last returns the most recent scan result, nil before the first run
func (j *BreakoutScanJob) Last() *contracts.ScanResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}
