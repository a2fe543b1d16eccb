// internal/scheduler/manager.go
package scheduler

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Job is a recurring task driven by the Manager.
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

// NewManager creates a scheduler. When locker is non-nil only one replica
// runs a given job at a time.
func NewManager(locker gocron.Locker, jobs ...Job) (*Manager, error) {
	var opts []gocron.SchedulerOption
	if locker != nil {
		opts = append(opts, gocron.WithDistributedLocker(locker))
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Manager{scheduler: s, jobs: jobs}, nil
}

func (m *Manager) RegisterJobs() error {
	for _, job := range m.jobs {
		_, err := m.scheduler.NewJob(
			job.GetSchedule(),
			gocron.NewTask(job.Execute),
			gocron.WithName(job.GetName()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.GetName(), err)
		}
		logrus.WithField("job", job.GetName()).Info("Registered scheduled job")
	}
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	logrus.Info("Scheduler started")
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logrus.WithError(err).Error("Failed to shutdown scheduler")
		return
	}
	logrus.Info("Scheduler stopped")
}
