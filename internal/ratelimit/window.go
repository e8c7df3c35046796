package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Gate admits or defers one dispatch against a request ceiling.
// Implemented in-process by Window and across processes by pkg/redis.RateLimiter.
type Gate interface {
	Allow(ctx context.Context) (allowed bool, retryAfter time.Duration, err error)
}

// Window is an in-process sliding-window ceiling:
// at most limit admissions within any trailing window.
// ⭐ SSOT: 프로세스 내 분당 요청 상한은 여기서만
type Window struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time // admission times, oldest first
	now    func() time.Time
}

// NewWindow creates a sliding window allowing limit admissions per window
func NewWindow(limit int, window time.Duration) *Window {
	if limit <= 0 {
		limit = 1
	}
	return &Window{
		limit:  limit,
		window: window,
		stamps: make([]time.Time, 0, limit),
		now:    time.Now,
	}
}

// WithClock replaces the time source (tests)
func (w *Window) WithClock(now func() time.Time) *Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
	return w
}

// Allow admits one dispatch if fewer than limit happened in the trailing window.
// Otherwise it reports how long until the oldest admission rolls out.
func (w *Window) Allow(_ context.Context) (bool, time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)

	if len(w.stamps) < w.limit {
		w.stamps = append(w.stamps, now)
		return true, 0, nil
	}

	retryAfter := w.stamps[0].Add(w.window).Sub(now)
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return false, retryAfter, nil
}

// InFlight returns the number of admissions inside the current window
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps)
}

// prune drops admissions that are at least one window old
func (w *Window) prune(now time.Time) {
	cutoff := 0
	for cutoff < len(w.stamps) && now.Sub(w.stamps[cutoff]) >= w.window {
		cutoff++
	}
	if cutoff > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[cutoff:]...)
	}
}
