// Package app assembles the bot: gateway, store, executor, background
// jobs, Telegram intake and the status HTTP server.
package app

import (
	"context"
	"fmt"

	"riskpilot/internal/config"
	"riskpilot/internal/executor"
	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/jobs"
	"riskpilot/internal/logger"
	"riskpilot/internal/notify"
	"riskpilot/internal/riskgate"
	"riskpilot/internal/store"
	"riskpilot/internal/trailing"
	statushttp "riskpilot/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg    *config.Config
	store  *store.Store
	jobs   *jobs.Runner
	intake *notify.Intake
	http   *statushttp.Server
	tg     *notify.Telegram
}

// noopNotifier stands in when Telegram is disabled so the jobs and the
// trailing engine never have to nil-check their notifier.
type noopNotifier struct{}

func (noopNotifier) Send(string) {}

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	api, err := bybit.NewClient(cfg.Bybit)
	if err != nil {
		return nil, fmt.Errorf("bybit client: %w", err)
	}

	st, err := store.Open(cfg.Store.DataDir, cfg.Trading.RiskUSD)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var tg *notify.Telegram
	var sender interface{ Send(string) } = noopNotifier{}
	if cfg.Telegram.Enabled {
		tg = notify.NewTelegram(cfg.Telegram)
		sender = tg
	}

	gate := riskgate.New(api, cfg.Trading.DailyLossLimitUSD)
	exec := executor.New(api, st, gate, cfg.Trading)
	trailer := trailing.New(api, st, sender)
	runner := jobs.New(api, st, trailer, sender, cfg.Trading, cfg.Jobs)

	a := &App{
		cfg:   cfg,
		store: st,
		jobs:  runner,
		http:  statushttp.NewServer(cfg.App.HTTPAddr, st, api),
		tg:    tg,
	}
	if tg != nil {
		a.intake = notify.NewIntake(tg, exec, st, api, cfg.Telegram)
	}

	logger.Infof("App assembled (env=%s, testnet=%v, data=%s)",
		cfg.App.Env, cfg.Bybit.Testnet, cfg.Store.DataDir)
	return a, nil
}

// Run starts every long-lived component and blocks until the first one
// fails or the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	if a.cfg.Store.Watch {
		group.Go(func() error {
			return a.store.Watch(ctx)
		})
	}

	group.Go(func() error {
		return a.jobs.Run(ctx)
	})

	if a.intake != nil {
		group.Go(func() error {
			return a.intake.Run(ctx)
		})
	}

	group.Go(func() error {
		return a.http.Run(ctx)
	})

	if a.tg != nil {
		a.tg.Send("Bot started.")
	}
	return group.Wait()
}
