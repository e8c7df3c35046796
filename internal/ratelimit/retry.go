package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/logger"
)

// RetryConfig holds backoff parameters
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      float64 // up to this fraction of the wait is added at random
}

// DefaultRetryConfig returns 5 attempts, 0.5s doubling up to 30s, +10% jitter
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     30 * time.Second,
		Jitter:      0.1,
	}
}

// Executor retries a fetch unit with exponential backoff.
// Pacing is not its job: the fetcher takes a Throttle slot per provider call,
// so every retried request is counted against the ceiling.
// ⭐ SSOT: 외부 호출 재시도 정책은 여기서만
type Executor struct {
	cfg    RetryConfig
	sleep  SleepFunc
	jitter func() float64 // [0, 1)
	logger *logger.Logger
}

// NewExecutor creates a retry executor
func NewExecutor(cfg RetryConfig, log *logger.Logger) *Executor {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = def.InitialWait
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Executor{
		cfg:    cfg,
		sleep:  Sleep,
		jitter: rand.Float64,
		logger: log,
	}
}

// WithSleep replaces the sleeper and jitter source (tests)
func (e *Executor) WithSleep(sleep SleepFunc, jitter func() float64) *Executor {
	e.sleep = sleep
	if jitter != nil {
		e.jitter = jitter
	}
	return e
}

// Backoff returns the wait after the given zero-based attempt, jitter excluded
func (e *Executor) Backoff(attempt int) time.Duration {
	wait := e.cfg.InitialWait
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= e.cfg.MaxWait {
			return e.cfg.MaxWait
		}
	}
	if wait > e.cfg.MaxWait {
		return e.cfg.MaxWait
	}
	return wait
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts run out.
// ErrNoData and context errors are returned as is. Exhaustion wraps the last error
// in ErrRetriesExhausted.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(ctx, lastErr) {
			return lastErr
		}

		if attempt == e.cfg.MaxAttempts-1 {
			break
		}

		wait := e.Backoff(attempt)
		wait += time.Duration(float64(wait) * e.cfg.Jitter * e.jitter())

		e.logger.WithFields(map[string]interface{}{
			"op":      op,
			"attempt": attempt + 1,
			"wait":    wait.String(),
		}).WithError(lastErr).Warn("Retrying provider call")

		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %w", op, contracts.ErrRetriesExhausted, e.cfg.MaxAttempts, lastErr)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, contracts.ErrNoData) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
