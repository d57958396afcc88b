package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "test job" }

func (j *stubJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newTestScheduler() *Scheduler {
	return New(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRegister(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.Register(&stubJob{name: "refresh"}, Every(time.Minute)))

	err := s.Register(&stubJob{name: "refresh"}, Every(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&stubJob{name: "other"}, nil), ErrNilSchedule)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "refresh"}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "refresh")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "refresh", result.JobName)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNowRecordsFailure(t *testing.T) {
	s := newTestScheduler()
	errBoom := errors.New("boom")
	require.NoError(t, s.Register(&stubJob{name: "flaky", err: errBoom}, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "flaky")
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, errBoom)

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.Equal(t, float64(0), snap.SuccessRate)
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&stubJob{name: "refresh"}, Every(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestEnableDisable(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&stubJob{name: "refresh"}, Every(time.Hour)))

	require.NoError(t, s.DisableJob("refresh"))
	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Enabled)

	require.NoError(t, s.EnableJob("refresh"))
	assert.True(t, s.ListJobs()[0].Enabled)

	assert.ErrorIs(t, s.EnableJob("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestListJobs(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&stubJob{name: "refresh"}, Every(30*time.Minute)))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "refresh", jobs[0].Name)
	assert.Equal(t, "test job", jobs[0].Description)
	assert.Equal(t, "@every 30m0s", jobs[0].Schedule)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestIntervalSchedule(t *testing.T) {
	sched := Every(5 * time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(5*time.Minute), sched.Next(now))
	assert.Equal(t, "@every 5m0s", sched.String())
}

func TestMetricsSnapshot(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&stubJob{name: "a"}, Every(time.Hour)))
	require.NoError(t, s.Register(&stubJob{name: "b", err: errors.New("boom")}, Every(time.Hour)))

	_, _ = s.RunNow(context.Background(), "a")
	_, _ = s.RunNow(context.Background(), "a")
	_, _ = s.RunNow(context.Background(), "b")

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalExecutions)
	assert.Equal(t, int64(2), snap.TotalSuccesses)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.InDelta(t, 0.667, snap.SuccessRate, 0.001)
}
