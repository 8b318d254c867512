package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/insiderbot/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	err      error
	runs     atomic.Int32
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }
func (j *stubJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.AddJob(&stubJob{name: "cycle", schedule: "@hourly"}))
	assert.Error(t, s.AddJob(&stubJob{name: "cycle", schedule: "@hourly"}))
	assert.Equal(t, []string{"cycle"}, s.Jobs())
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())
	assert.Error(t, s.AddJob(&stubJob{name: "cycle", schedule: "not a schedule"}))
}

func TestRunNowRecordsHistory(t *testing.T) {
	s := New(logger.NewNop())
	job := &stubJob{name: "cycle", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunNow("cycle"))

	require.Eventually(t, func() bool {
		history, err := s.History("cycle")
		if err != nil {
			return false
		}
		latest, ok := history.Latest()
		return ok && latest.Success
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New(logger.NewNop())
	assert.Error(t, s.RunNow("missing"))
}

func TestSkippedRunsAreNotRetriedOrFailed(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond

	job := &stubJob{name: "cycle", schedule: "@hourly", err: ErrSkipped}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunNow("cycle"))

	require.Eventually(t, func() bool {
		history, _ := s.History("cycle")
		latest, ok := history.Latest()
		return ok && latest.Skipped
	}, time.Second, 5*time.Millisecond)

	// no retries on a skip
	assert.Equal(t, int32(1), job.runs.Load())

	history, _ := s.History("cycle")
	assert.Zero(t, history.SuccessRate())
}

func TestFailedRunsRetry(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond

	job := &stubJob{name: "cycle", schedule: "@hourly", err: errors.New("boom")}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunNow("cycle"))

	require.Eventually(t, func() bool {
		history, _ := s.History("cycle")
		latest, ok := history.Latest()
		return ok && !latest.Success && latest.Error == "boom"
	}, time.Second, 5*time.Millisecond)

	// initial attempt plus maxRetries
	assert.Equal(t, int32(3), job.runs.Load())
}

func TestJobHistoryBounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.Add(JobResult{Success: true})
	}
	assert.Len(t, h.Results, 100)
	assert.InDelta(t, 1.0, h.SuccessRate(), 1e-9)
}
