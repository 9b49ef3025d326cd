package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodigy-ranking/backend/pkg/logger"
)

// fakeJob fails the first failures calls
type fakeJob struct {
	name     string
	schedule string
	failures int32
	err      error
	calls    atomic.Int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(context.Context) error {
	if j.calls.Add(1) <= j.failures {
		return j.err
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(logger.Nop()).WithRetry(2, 0)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "0 30 5 * * *"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))

	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}), "duplicate name")
	assert.Error(t, s.AddJob(&fakeJob{name: "c", schedule: "not a schedule"}))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
}

func TestRunJobSync(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int32
		err       error
		wantOK    bool
		wantCalls int32
	}{
		{"success", 0, nil, true, 1},
		{"recovers on retry", 2, boom, true, 3},
		{"fails after retries", 10, boom, false, 3},
		{"permanent is not retried", 10, Permanent(boom), false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			job := &fakeJob{name: "job", schedule: "@daily", failures: tt.failures, err: tt.err}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunJobSync(context.Background(), "job")
			assert.Equal(t, tt.wantOK, result.Success)
			assert.Equal(t, tt.wantOK, err == nil)
			assert.Equal(t, tt.wantCalls, job.calls.Load())

			history, err := s.GetJobHistory("job")
			require.NoError(t, err)
			require.Len(t, history.Results, 1)

			stats := s.GetJobStats()["job"]
			assert.Equal(t, 1, stats.TotalRuns)
			assert.Equal(t, "@daily", stats.Schedule)
			require.NotNil(t, stats.LastRun)
		})
	}

	t.Run("unknown job", func(t *testing.T) {
		_, err := newTestScheduler().RunJobSync(context.Background(), "nope")
		assert.Error(t, err)
	})
}

func TestRunJobSync_CancelledStopsRetries(t *testing.T) {
	s := New(logger.Nop()).WithRetry(5, 0)
	job := &fakeJob{name: "job", schedule: "@daily", failures: 10, err: errors.New("boom")}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RunJobSync(ctx, "job")
	assert.Error(t, err)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Zero(t, h.GetSuccessRate())
	assert.Empty(t, h.GetLatestResults(5))

	for i := range 120 {
		h.AddResult(JobResult{Success: i%4 != 0})
	}
	assert.Len(t, h.Results, 100, "history is capped")
	assert.Len(t, h.GetLatestResults(10), 10)
	assert.Len(t, h.GetFailedResults(), 25)
	assert.InDelta(t, 0.75, h.GetSuccessRate(), 1e-9)
}

func TestIsRetryable(t *testing.T) {
	boom := errors.New("boom")
	assert.True(t, IsRetryable(boom))
	assert.False(t, IsRetryable(Permanent(boom)))
	assert.ErrorIs(t, Permanent(boom), boom)
	assert.NoError(t, Permanent(nil))
}
