package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/insiderbot/internal/pipeline"
)

// CycleJob runs the trading pipeline on a fixed interval. A trigger
// landing while the previous cycle is still running is skipped, never
// queued: the pipeline's single-flight guard is the authority.
type CycleJob struct {
	pipeline *pipeline.Pipeline
	interval time.Duration
}

// NewCycleJob creates the periodic trading cycle job
func NewCycleJob(p *pipeline.Pipeline, interval time.Duration) *CycleJob {
	return &CycleJob{pipeline: p, interval: interval}
}

// Name implements Job
func (j *CycleJob) Name() string {
	return "trading_cycle"
}

// Schedule implements Job using the cron @every syntax
func (j *CycleJob) Schedule() string {
	return fmt.Sprintf("@every %s", j.interval)
}

// Run implements Job
func (j *CycleJob) Run(ctx context.Context) error {
	_, err := j.pipeline.RunCycle(ctx)
	if errors.Is(err, pipeline.ErrCycleInFlight) {
		return ErrSkipped
	}
	return err
}
