package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fusion/backend/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	run      func(ctx context.Context, call int) error
}

func (j *fakeJob) Name() string { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	call := int(j.calls.Add(1))
	if j.run == nil {
		return nil
	}
	return j.run(ctx, call)
}

func newJob(name string, run func(ctx context.Context, call int) error) *fakeJob {
	return &fakeJob{name: name, schedule: "0 30 21 * * 1-5", run: run}
}

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithRetry(3, 0)}, opts...)
	return New(context.Background(), logger.Nop(), opts...)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddJob(newJob("a", nil)))
	assert.Error(t, s.AddJob(newJob("a", nil)), "duplicate name")

	bad := newJob("b", nil)
	bad.schedule = "not a cron"
	assert.Error(t, s.AddJob(bad))

	require.NoError(t, s.AddJob(newJob("c", nil)))
	assert.Equal(t, []string{"a", "c"}, s.Jobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"c"}, s.Jobs())
}

func TestRunJob_Retries(t *testing.T) {
	s := newTestScheduler(t)
	job := newJob("flaky", func(ctx context.Context, call int) error {
		if call < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	s.Wait()

	history, err := s.History("flaky", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 3, history[0].Attempts)
	assert.Empty(t, history[0].Error)
}

func TestRunJob_FailsAfterRetries(t *testing.T) {
	s := newTestScheduler(t, WithRetry(1, 0))
	job := newJob("broken", func(ctx context.Context, call int) error {
		return errors.New("upstream down")
	})
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("broken"))
	s.Wait()

	assert.Equal(t, int32(2), job.calls.Load())

	stats := s.Stats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 0, stats.SuccessCount)
	assert.InDelta(t, 0.0, stats.SuccessRate, 1e-9)
	assert.False(t, stats.LastSuccess)
	require.NotNil(t, stats.LastRun)

	history, _ := s.History("broken", 1)
	assert.Contains(t, history[0].Error, "upstream down")
}

func TestRunJob_PanicIsFailure(t *testing.T) {
	s := newTestScheduler(t, WithRetry(0, 0))
	require.NoError(t, s.AddJob(newJob("panics", func(ctx context.Context, call int) error {
		panic("boom")
	})))

	require.NoError(t, s.RunJob("panics"))
	s.Wait()

	history, err := s.History("panics", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].Error, "panicked")
}

func TestRunJob_RejectsOverlap(t *testing.T) {
	s := newTestScheduler(t)
	release := make(chan struct{})
	require.NoError(t, s.AddJob(newJob("slow", func(ctx context.Context, call int) error {
		<-release
		return nil
	})))

	require.NoError(t, s.RunJob("slow"))
	err := s.RunJob("slow")
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.True(t, s.Stats()["slow"].Running)

	close(release)
	s.Wait()

	assert.False(t, s.Stats()["slow"].Running)
	assert.Error(t, s.RunJob("missing"))
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := newTestScheduler(t, WithRetry(3, time.Hour))
	started := make(chan struct{})
	require.NoError(t, s.AddJob(newJob("blocking", func(ctx context.Context, call int) error {
		if call == 1 {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	})))

	s.Start()
	require.NoError(t, s.RunJob("blocking"))
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	history, err := s.History("blocking", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Equal(t, 1, history[0].Attempts)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Empty(t, h.Latest(5))
	assert.InDelta(t, 0.0, h.SuccessRate(), 1e-9)

	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{JobName: "x", Attempts: i, Success: i%4 != 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Equal(t, 20, h.Results[0].Attempts)

	latest := h.Latest(2)
	require.Len(t, latest, 2)
	assert.Equal(t, maxHistory+19, latest[1].Attempts)

	assert.Equal(t, 25, h.FailureCount())
	assert.InDelta(t, 0.75, h.SuccessRate(), 1e-9)
}
