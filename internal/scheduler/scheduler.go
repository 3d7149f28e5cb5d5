// Package scheduler provides the two timing shapes the background jobs
// need: a fixed-interval loop and a once-per-day run at a UTC hour.
package scheduler

import (
	"context"
	"time"

	"riskpilot/internal/logger"
)

// Interval runs a task on a fixed period until the context is
// cancelled. The first run happens one full period after start, not
// immediately.
type Interval struct {
	Name  string
	Every time.Duration
}

func (s *Interval) Run(ctx context.Context, task func(context.Context)) error {
	if s.Every <= 0 {
		logger.Warnf("Scheduler %s: invalid interval %s, loop not started", s.Name, s.Every)
		return nil
	}
	logger.Infof("Scheduler %s: every %s", s.Name, s.Every)
	ticker := time.NewTicker(s.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			task(ctx)
		}
	}
}

// Daily runs a task once per day at HourUTC. A start after today's
// slot waits for tomorrow's.
type Daily struct {
	Name    string
	HourUTC int

	// NowFn is swappable for tests.
	NowFn func() time.Time
}

func (s *Daily) Run(ctx context.Context, task func(context.Context)) error {
	for {
		next := s.next()
		logger.Infof("Scheduler %s: next run at %s", s.Name, next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			task(ctx)
		}
	}
}

func (s *Daily) next() time.Time {
	nowFn := s.NowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.HourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
