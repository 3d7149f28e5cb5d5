package jobs

import (
	"context"
	"time"

	"riskpilot/internal/scheduler"

	"golang.org/x/sync/errgroup"
)

// Run starts all job loops and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	loops := []struct {
		name string
		sec  int
		def  int
		tick func(context.Context)
	}{
		{"trailing", r.cfg.TrailingIntervalSeconds, 60, r.TrailingTick},
		{"cleanup", r.cfg.CleanupIntervalSeconds, 3600, r.CleanupStaleOrders},
		{"heartbeat", r.cfg.HeartbeatIntervalSeconds, 1800, r.Heartbeat},
		{"time_check", r.cfg.TimeCheckIntervalSeconds, 6 * 3600, r.TimeManagement},
	}
	for _, l := range loops {
		s := &scheduler.Interval{Name: l.name, Every: seconds(l.sec, l.def)}
		tick := l.tick
		g.Go(func() error { return s.Run(ctx, tick) })
	}

	report := &scheduler.Daily{Name: "daily_report", HourUTC: r.cfg.ReportHourUTC, NowFn: r.now}
	g.Go(func() error { return report.Run(ctx, r.DailyReport) })

	return g.Wait()
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
