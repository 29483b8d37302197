// Package scheduler runs the cron-driven library rescan.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard five-field cron expressions (minute granularity).
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler triggers a rescan on a cron schedule. Overlapping runs are
// left to the rescan function itself, which refuses concurrent scans.
type Scheduler struct {
	mu sync.Mutex

	schedule string
	rescan   func(context.Context) error
	logger   *slog.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates the cron expression and creates a Scheduler.
func New(schedule string, rescan func(context.Context) error, logger *slog.Logger) (*Scheduler, error) {
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("parsing rescan schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		schedule: schedule,
		rescan:   rescan,
		logger:   logger.With("component", "scheduler"),
	}, nil
}

// Start begins firing the schedule until Stop is called or the context
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithParser(parser))
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		s.cron = nil
		s.cancel()
		return fmt.Errorf("registering rescan schedule: %w", err)
	}
	s.cron.Start()

	s.logger.Info("rescan scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("rescan scheduler stopped")
	}
}

// Next returns when the schedule fires next. Zero when not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) run() {
	if err := s.rescan(s.ctx); err != nil && s.ctx.Err() == nil {
		s.logger.Error("scheduled rescan failed", "error", err)
	}
}
