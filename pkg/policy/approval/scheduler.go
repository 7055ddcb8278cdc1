package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepFunc runs one escalation sweep and returns the notifications sent.
type SweepFunc func(ctx context.Context, now time.Time) ([]Notification, error)

// Scheduler runs the escalation sweep on a cron schedule.
type Scheduler struct {
	schedule string
	sweep    SweepFunc
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler for the standard five-field cron
// expression schedule. A nil logger uses slog.Default().
func NewScheduler(schedule string, sweep SweepFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		sweep:    sweep,
		cron:     cron.New(),
		logger:   logger.With("component", "approval.scheduler"),
	}
}

// Start schedules the sweep. An empty schedule disables the scheduler.
// The scheduler stops when ctx is done.
//
// Common schedules:
//   - "0 * * * *"   hourly
//   - "0 8 * * 1-5" weekday mornings
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("escalation schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule escalation sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("escalation scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	notes, err := s.sweep(ctx, time.Now())
	if err != nil {
		s.logger.Error("escalation sweep failed", "error", err)
		return
	}
	s.logger.Debug("escalation sweep completed", "notifications", len(notes))
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("escalation scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep, or nil if none is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
