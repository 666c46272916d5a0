package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// DefaultInterval is used when a job is scheduled with a non-positive interval.
const DefaultInterval = 5 * time.Minute

// Scheduler runs tagged periodic jobs, one tag per mounted farm.
type Scheduler struct {
	scheduler *gocron.Scheduler
	log       *zap.Logger
}

// New creates a new Scheduler. Jobs only fire after Start.
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{
		scheduler: s,
		log:       log,
	}
}

// Start starts the underlying scheduler.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Every schedules job under tag every interval. The first run happens one interval
// from now; overlapping runs of the same job are skipped.
func (s *Scheduler) Every(tag string, interval time.Duration, job func()) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	_, err := s.scheduler.Every(interval).
		Tag(tag).
		SingletonMode().
		WaitForSchedule().
		Do(func() {
			s.log.Debug("scheduler: running job", zap.String("tag", tag))
			job()
		})
	if err != nil {
		return err
	}
	s.log.Info("scheduler: job scheduled", zap.String("tag", tag), zap.Duration("interval", interval))
	return nil
}

// Cancel removes the job with tag so it never fires again.
func (s *Scheduler) Cancel(tag string) error {
	if err := s.scheduler.RemoveByTag(tag); err != nil {
		return err
	}
	s.log.Info("scheduler: job cancelled", zap.String("tag", tag))
	return nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return s.scheduler.Len()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
