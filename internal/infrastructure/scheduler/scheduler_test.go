package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job " + j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

type panicJob struct{}

func (panicJob) Name() string                  { return "panics" }
func (panicJob) Description() string           { return "" }
func (panicJob) Run(ctx context.Context) error { panic("boom") }

func newTestScheduler() *Scheduler {
	return New(Config{Logger: logger.Discard(), TickInterval: 5 * time.Millisecond})
}

func TestRegister(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, "@every 1m0s", infos[0].Schedule)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, Every(10*time.Millisecond)))

	completed := make(chan JobResult, 16)
	s.OnJobComplete(func(r JobResult) {
		select {
		case completed <- r:
		default:
		}
	})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	r := <-completed
	assert.Equal(t, "tick", r.JobName)
	assert.True(t, r.Success)
	assert.False(t, r.Manual)
}

func TestScheduler_NoOverlap(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	assert.Eventually(t, func() bool { return job.runs.Load() > 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "blocked", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	info := s.ListJobs()[0]
	require.NotNil(t, info.LastResult)
	assert.ErrorIs(t, info.LastResult.Error, context.Canceled)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler()
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	require.NoError(t, s.Register(failing, Every(time.Hour)))
	require.NoError(t, s.Register(panicJob{}, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "nope")
	assert.False(t, result.Success)
	assert.True(t, result.Manual)

	_, err = s.RunNow(context.Background(), "panics")
	assert.ErrorContains(t, err, "panicked")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	infos := s.ListJobs()
	require.Len(t, infos, 2)
	assert.Equal(t, "failing", infos[0].Name)
	assert.Equal(t, int64(1), infos[0].RunCount)
	assert.Equal(t, int64(1), infos[0].FailCount)
}

func TestDailySchedule(t *testing.T) {
	sched := DailyAt(0, 5, timeutil.AlmatyTZ)

	before := time.Date(2024, 3, 10, 0, 1, 0, 0, timeutil.AlmatyTZ)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 5, 0, 0, timeutil.AlmatyTZ), sched.Next(before))

	at := time.Date(2024, 3, 10, 0, 5, 0, 0, timeutil.AlmatyTZ)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 5, 0, 0, timeutil.AlmatyTZ), sched.Next(at))

	// 20:00 UTC on the 10th is already the 11th in Almaty.
	utc := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 5, 0, 0, timeutil.AlmatyTZ), sched.Next(utc))

	monthEnd := time.Date(2024, 2, 29, 23, 0, 0, 0, timeutil.AlmatyTZ)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 5, 0, 0, timeutil.AlmatyTZ), sched.Next(monthEnd))
}
