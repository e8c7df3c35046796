package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/breakscan/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	run      func(ctx context.Context, call int) error
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := int(j.calls.Add(1))
	if j.run == nil {
		return nil
	}
	return j.run(ctx, n)
}

func newTestScheduler(maxRetries int) *Scheduler {
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return New(Options{MaxRetries: maxRetries, RetryDelay: time.Second}, logger.Nop()).WithSleep(noSleep)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(0)

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "0 */10 * * * *"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))

	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}), "duplicate")
	assert.Error(t, s.AddJob(&fakeJob{name: "c", schedule: "every tuesday"}), "bad schedule")

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))

	_, err := s.GetJobHistory("a")
	assert.Error(t, err)
}

func TestRunNow_Success(t *testing.T) {
	s := newTestScheduler(2)
	job := &fakeJob{name: "scan", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(context.Background(), "scan")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Attempts)

	h, err := s.GetJobHistory("scan")
	require.NoError(t, err)
	assert.Len(t, h.Results, 1)

	_, err = s.RunNow(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRunNow_RetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler(2)
	job := &fakeJob{name: "flaky", schedule: "@hourly", run: func(_ context.Context, call int) error {
		if call < 3 {
			return errors.New("provider down")
		}
		return nil
	}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), job.calls.Load())
}

func TestRunNow_FailsAfterRetries(t *testing.T) {
	s := newTestScheduler(1)
	job := &fakeJob{name: "broken", schedule: "@hourly", run: func(context.Context, int) error {
		return errors.New("boom")
	}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "boom", res.Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Zero(t, stats.SuccessRate)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunNow_Panic(t *testing.T) {
	s := newTestScheduler(0)
	job := &fakeJob{name: "panics", schedule: "@hourly", run: func(context.Context, int) error {
		panic("nil map")
	}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(context.Background(), "panics")
	require.Error(t, err)
	assert.Contains(t, res.Error, "job panicked")
}

func TestRunNow_CancelledStopsRetrying(t *testing.T) {
	s := newTestScheduler(5)
	ctx, cancel := context.WithCancel(context.Background())
	job := &fakeJob{name: "slow", schedule: "@hourly", run: func(context.Context, int) error {
		cancel()
		return context.Canceled
	}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(ctx, "slow")
	require.Error(t, err)
	assert.Equal(t, 1, res.Attempts)
}

func TestRunNow_NoOverlap(t *testing.T) {
	s := newTestScheduler(0)

	started := make(chan struct{})
	release := make(chan struct{})
	job := &fakeJob{name: "long", schedule: "@hourly", run: func(context.Context, int) error {
		close(started)
		<-release
		return nil
	}}
	require.NoError(t, s.AddJob(job))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.RunNow(context.Background(), "long")
	}()

	<-started
	_, err := s.RunNow(context.Background(), "long")
	assert.ErrorContains(t, err, "already running")

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))

	s.Start()
	stats := s.GetJobStats()["a"]
	require.NotNil(t, stats.NextRun)
	assert.True(t, stats.NextRun.After(time.Now()))
	s.Stop()
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Empty(t, h.GetLatestResults(5))
	assert.Zero(t, h.GetSuccessRate())

	for i := 0; i < MaxHistory+10; i++ {
		h.AddResult(JobResult{Attempts: i, Success: i%2 == 0})
	}

	assert.Len(t, h.Results, MaxHistory)
	assert.Equal(t, 10, h.Results[0].Attempts, "oldest dropped")
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetFailedResults(), MaxHistory/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepCtx(ctx, 0), context.Canceled)
}
