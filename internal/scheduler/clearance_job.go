// internal/scheduler/clearance_job.go
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// ClearanceRunner performs one clearance sweep.
type ClearanceRunner interface {
	ClearPendingTransactions(ctx context.Context) (int, error)
}

type ClearanceJob struct {
	runner   ClearanceRunner
	interval time.Duration
	timeout  time.Duration
}

func NewClearanceJob(runner ClearanceRunner, interval time.Duration) *ClearanceJob {
	timeout := interval
	if timeout <= 0 || timeout > 10*time.Minute {
		timeout = 10 * time.Minute
	}
	return &ClearanceJob{
		runner:   runner,
		interval: interval,
		timeout:  timeout,
	}
}

func (j *ClearanceJob) GetName() string {
	return "wallet_clearance_sweeper"
}

func (j *ClearanceJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *ClearanceJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	promoted, err := j.runner.ClearPendingTransactions(ctx)
	entry := logrus.WithFields(logrus.Fields{
		"job":      j.GetName(),
		"promoted": promoted,
	})
	if err != nil {
		entry.WithError(err).Error("Clearance sweep finished with failures")
		return
	}
	if promoted > 0 {
		entry.Info("Clearance sweep completed")
	}
}
