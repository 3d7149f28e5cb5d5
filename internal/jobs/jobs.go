// Package jobs runs the periodic maintenance passes: trailing stops,
// stale-order cleanup, the heartbeat, the morning balance report and
// the time-based position review. Every job reads live exchange state
// on each tick and assumes nothing survives from the previous one.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riskpilot/internal/config"
	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"
)

// Exchange is the slice of the gateway the jobs touch.
type Exchange interface {
	GetPositions(ctx context.Context, symbol string) ([]bybit.Position, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]bybit.OpenOrder, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetWalletAccount(ctx context.Context) (bybit.WalletAccount, error)
	GetExecutions(ctx context.Context, symbol string, limit int) ([]bybit.Execution, error)
}

// Store is the persistent state the jobs consult.
type Store interface {
	TradingEnabled() bool
	RiskForSymbol(symbol string) (float64, bool)
}

// Trailer advances stops; the trailing engine implements it.
type Trailer interface {
	EvaluateAll(ctx context.Context) error
}

// Notifier pushes operator messages. May be nil.
type Notifier interface {
	Send(text string)
}

// Runner owns the job loops.
type Runner struct {
	api     Exchange
	store   Store
	trailer Trailer
	notify  Notifier
	trading config.TradingConfig
	cfg     config.JobsConfig

	startedAt time.Time
	now       func() time.Time
}

func New(api Exchange, st Store, trailer Trailer, notify Notifier, trading config.TradingConfig, cfg config.JobsConfig) *Runner {
	return &Runner{
		api:       api,
		store:     st,
		trailer:   trailer,
		notify:    notify,
		trading:   trading,
		cfg:       cfg,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// TrailingTick runs one trailing pass. Skipped entirely while the
// trading switch is off, matching manual-control expectations: a
// disabled bot touches nothing.
func (r *Runner) TrailingTick(ctx context.Context) {
	if !r.store.TradingEnabled() {
		return
	}
	if err := r.trailer.EvaluateAll(ctx); err != nil {
		logger.Debugf("Trailing tick error: %v", err)
	}
}

// CleanupStaleOrders cancels entry limit orders that have been resting
// longer than the configured timeout. TP/SL legs (reduce-only) and
// conditional orders without a price are never touched.
func (r *Runner) CleanupStaleOrders(ctx context.Context) {
	if !r.store.TradingEnabled() {
		return
	}
	orders, err := r.api.GetOpenOrders(ctx, "")
	if err != nil {
		logger.Errorf("Cleanup job error: %v", err)
		return
	}
	timeout := time.Duration(r.trading.OrderTimeoutDays) * 24 * time.Hour
	nowMS := r.now().UnixMilli()

	for _, o := range orders {
		if o.Price == 0 || o.ReduceOnly {
			continue
		}
		age := time.Duration(nowMS-o.CreatedTime) * time.Millisecond
		if age <= timeout {
			continue
		}
		if err := r.api.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
			logger.Errorf("Cleanup cancel %s failed: %v", o.Symbol, err)
			continue
		}
		logger.Infof("Cleanup: stale order %s cancelled after %.0fh", o.Symbol, age.Hours())
		r.send(fmt.Sprintf("CLEANUP: stale %s order cancelled (resting %dd+)", o.Symbol, r.trading.OrderTimeoutDays))
	}
}

// Heartbeat logs liveness plus the floating PnL of open positions.
func (r *Runner) Heartbeat(ctx context.Context) {
	uptime := r.now().Sub(r.startedAt).Round(time.Second)
	positions, err := r.api.GetPositions(ctx, "")
	if err != nil {
		logger.Infof("System active. Uptime: %s", uptime)
		return
	}
	var total float64
	var count int
	for _, p := range positions {
		if p.Size > 0 {
			total += p.UnrealisedPnl
			count++
		}
	}
	logger.Infof("System active. Uptime: %s | Open PnL: %+.2f$ (%d deals)", uptime, total, count)
}

// DailyReport sends the morning balance summary.
func (r *Runner) DailyReport(ctx context.Context) {
	acct, err := r.api.GetWalletAccount(ctx)
	if err != nil {
		logger.Errorf("Daily report error: %v", err)
		return
	}
	r.send(fmt.Sprintf("Morning report\nBalance: %.2f$\nUnrealized PnL: %.2f$", acct.TotalEquity, acct.TotalPerpUPL))
	logger.Infof("Morning report sent")
}

// TimeManagement reviews how long positions have been open, dated by
// the last actual fill rather than the position's created time. Trades
// open 7+ days get a hard close call; 5+ day trades that are neither at
// breakeven nor up a full R get a stagnation warning.
func (r *Runner) TimeManagement(ctx context.Context) {
	positions, err := r.api.GetPositions(ctx, "")
	if err != nil {
		logger.Errorf("Time management job error: %v", err)
		return
	}

	var alerts []string
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		opened, ok := r.tradeOpenTime(ctx, p)
		if !ok {
			continue
		}
		daysOpen := int(r.now().Sub(opened).Hours() / 24)
		if daysOpen == 0 {
			continue
		}

		if daysOpen >= 7 {
			alerts = append(alerts, fmt.Sprintf(
				"7-DAY LIMIT: %s\nOpen for %d days, PnL %.2f$.\nClose it now.",
				p.Symbol, daysOpen, p.UnrealisedPnl))
			continue
		}
		if daysOpen >= 5 {
			atBreakeven := false
			if p.StopLoss > 0 {
				if p.Side == bybit.OrderSideBuy && p.StopLoss >= p.AvgPrice {
					atBreakeven = true
				}
				if p.Side == bybit.OrderSideSell && p.StopLoss <= p.AvgPrice {
					atBreakeven = true
				}
			}
			// The 1R comparison needs a risk record; without one the
			// profit test simply cannot pass.
			riskUSD, hasRisk := r.store.RiskForSymbol(p.Symbol)
			profitOneR := hasRisk && p.UnrealisedPnl >= riskUSD

			if !atBreakeven && !profitOneR {
				alerts = append(alerts, fmt.Sprintf(
					"5-DAY STAGNATION: %s\nOpen for %d days, PnL %.2f$ (< 1R), stop not at breakeven.\nConsider closing.",
					p.Symbol, daysOpen, p.UnrealisedPnl))
			}
		}
	}

	if len(alerts) > 0 {
		r.send(strings.Join(alerts, "\n\n"))
	}
}

// tradeOpenTime dates a position by its most recent execution, falling
// back to the position's created time when no fill history remains.
func (r *Runner) tradeOpenTime(ctx context.Context, p bybit.Position) (time.Time, bool) {
	execs, err := r.api.GetExecutions(ctx, p.Symbol, 1)
	if err != nil {
		logger.Warnf("Cannot date trade %s: %v", p.Symbol, err)
		return time.Time{}, false
	}
	if len(execs) > 0 {
		return time.UnixMilli(execs[0].ExecTime), true
	}
	if p.CreatedTime > 0 {
		return time.UnixMilli(p.CreatedTime), true
	}
	return time.Time{}, false
}

func (r *Runner) send(text string) {
	if r.notify != nil {
		r.notify.Send(text)
	}
}
