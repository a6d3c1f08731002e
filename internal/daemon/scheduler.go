package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Scheduler wraps a gocron scheduler. Jobs run in singleton mode: a run that
// would overlap the previous one is skipped and rescheduled.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleCron runs task on a five-field cron expression and returns the job id.
// With immediately set the first run starts right away.
func (s *Scheduler) ScheduleCron(name, expr string, immediately bool, task func()) (string, error) {
	job, err := s.scheduler.NewJob(gocron.CronJob(expr, false), gocron.NewTask(task), s.jobOptions(name, immediately)...)
	if err != nil {
		return "", fmt.Errorf("failed to create cron job %q: %w", expr, err)
	}
	return job.ID().String(), nil
}

// Reschedule moves an existing job to a new cron expression, keeping its id.
func (s *Scheduler) Reschedule(id, expr string, task func()) error {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", id, err)
	}
	name := ""
	for _, j := range s.scheduler.Jobs() {
		if j.ID() == jobID {
			name = j.Name()
		}
	}
	if _, err := s.scheduler.Update(jobID, gocron.CronJob(expr, false), gocron.NewTask(task), s.jobOptions(name, false)...); err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// NextRun reports when the job runs next.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, false
	}
	for _, j := range s.scheduler.Jobs() {
		if j.ID() != jobID {
			continue
		}
		next, err := j.NextRun()
		return next, err == nil
	}
	return time.Time{}, false
}

func (s *Scheduler) jobOptions(name string, immediately bool) []gocron.JobOption {
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if immediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	return opts
}
