package job

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron"
)

// Scheduler owns the poll loop lifecycle. It is created at startup, started
// once, and stopped during shutdown; tests bypass it and drive
// PublishPollJob.RunCycle directly.
type Scheduler struct {
	interval time.Duration
	job      *PublishPollJob
	c        *cron.Cron
}

func NewScheduler(interval time.Duration, pollJob *PublishPollJob) *Scheduler {
	return &Scheduler{interval: interval, job: pollJob}
}

func (s *Scheduler) Start() error {
	if s.c != nil {
		return fmt.Errorf("scheduler already started")
	}

	s.c = cron.New()
	if err := s.c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.job.Run); err != nil {
		s.c = nil
		return err
	}
	s.c.Start()

	// First pass immediately so records already due are not held until the
	// first tick.
	go s.job.Run()

	slog.Info("trigger scheduler started", "poll_interval", s.interval.String())
	return nil
}

func (s *Scheduler) Stop() {
	if s.c == nil {
		return
	}
	s.c.Stop()
	s.c = nil
	slog.Info("trigger scheduler stopped")
}
