package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/breakscan/pkg/logger"
)

// Defaults for the public quote provider
const (
	DefaultRequestsPerMinute = 30
	DefaultMinInterval       = 200 * time.Millisecond
)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Throttle is the single gate every worker passes before dispatching to the provider.
// Dispatches are serialized: pacing first, then window admission, so the admission
// time recorded by the window is the dispatch time.
// ⭐ SSOT: 외부 API 호출 전 반드시 통과하는 공유 게이트
type Throttle struct {
	turn     chan struct{}
	pacer    *rate.Limiter
	gate     Gate
	fallback *Window // used when the shared gate errors
	now      func() time.Time
	sleep    SleepFunc
	logger   *logger.Logger
}

// NewThrottle creates a throttle with the given ceiling and spacing.
// gate may be nil, in which case an in-process Window is used.
func NewThrottle(perMinute int, minInterval time.Duration, gate Gate, log *logger.Logger) *Throttle {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}

	local := NewWindow(perMinute, time.Minute)
	if gate == nil {
		gate = local
	}

	return &Throttle{
		turn:     make(chan struct{}, 1),
		pacer:    rate.NewLimiter(rate.Every(minInterval), 1),
		gate:     gate,
		fallback: local,
		now:      time.Now,
		sleep:    Sleep,
		logger:   log,
	}
}

// WithClock replaces the time source and sleeper (tests).
// The in-process window shares the same clock.
func (t *Throttle) WithClock(now func() time.Time, sleep SleepFunc) *Throttle {
	t.now = now
	t.sleep = sleep
	t.fallback.WithClock(now)
	return t
}

// Acquire blocks until one dispatch is permitted or ctx is done
func (t *Throttle) Acquire(ctx context.Context) error {
	select {
	case t.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.turn }()

	for {
		if err := t.pace(ctx); err != nil {
			return err
		}

		allowed, retryAfter, err := t.gate.Allow(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.WithError(err).Warn("Shared rate gate failed, using in-process window")
			allowed, retryAfter, _ = t.fallback.Allow(ctx)
		}
		if allowed {
			return nil
		}

		t.logger.WithField("retry_after", retryAfter).Debug("Rate ceiling reached, waiting for window to roll")
		if err := t.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

// pace enforces the minimum spacing between consecutive dispatches
func (t *Throttle) pace(ctx context.Context) error {
	now := t.now()
	r := t.pacer.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if err := t.sleep(ctx, delay); err != nil {
		r.CancelAt(t.now())
		return err
	}
	return nil
}
