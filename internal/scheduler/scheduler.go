// Package scheduler runs the vault's background jobs on cron schedules.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/modules/settings"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	markers *settings.Repository
	log     zerolog.Logger
}

// New creates a new scheduler. markers may be nil; when set, each
// successful job run is recorded under last_run_<name>.
func New(markers *settings.Repository, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		markers: markers,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) markRun(name string) {
	if s.markers == nil {
		return
	}
	if err := s.markers.MarkRun(name); err != nil {
		s.log.Warn().Err(err).Str("job", name).Msg("Failed to record job run")
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule (six-field, with seconds)
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.markRun(job.Name())
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately, outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	if err := job.Run(); err != nil {
		return err
	}
	s.markRun(job.Name())
	return nil
}
