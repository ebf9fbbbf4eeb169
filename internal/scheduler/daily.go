// Package scheduler runs time-aligned maintenance jobs for the pipeline,
// currently the daily-counter rollover prune at the venue's midnight.
package scheduler

import (
	"context"
	"time"

	"tradepipe/internal/logger"
)

// DailyScheduler fires a task at every midnight of the configured location.
type DailyScheduler struct {
	Name     string
	Location *time.Location

	nowFn func() time.Time
}

func NewDailyScheduler(name string, loc *time.Location) *DailyScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{Name: name, Location: loc, nowFn: time.Now}
}

// nextMidnight returns the next day boundary after now in the scheduler's
// location.
func (s *DailyScheduler) nextMidnight(now time.Time) time.Time {
	local := now.In(s.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location).AddDate(0, 0, 1)
	return next
}

// Start blocks running task at each boundary until ctx is done.
func (s *DailyScheduler) Start(ctx context.Context, task func()) {
	if task == nil {
		logger.Warnf("DailyScheduler %s: task is nil, exit", s.Name)
		return
	}
	logger.Infof("DailyScheduler %s: started, boundary timezone=%s", s.Name, s.Location)
	for {
		now := s.nowFn()
		wakeAt := s.nextMidnight(now)
		wait := wakeAt.Sub(now)
		logger.Debugf("DailyScheduler %s: next run at %s (in %s)", s.Name, wakeAt.Format(time.RFC3339), wait.Truncate(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("DailyScheduler %s: stopped", s.Name)
			return
		case <-timer.C:
			task()
		}
	}
}
