// Package riskgate enforces the daily loss limit. The gate only blocks
// new entries; open positions and their stops are never touched.
package riskgate

import (
	"context"
	"time"

	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"
)

// closedPnLFetchLimit bounds the realized-PnL page. Enough for a
// discretionary bot; thousands of fills a day would need pagination.
const closedPnLFetchLimit = 100

// Exchange is the slice of the gateway the gate reads.
type Exchange interface {
	GetClosedPnL(ctx context.Context, startTime time.Time, limit int) ([]bybit.ClosedPnL, error)
	GetWalletAccount(ctx context.Context) (bybit.WalletAccount, error)
}

// Gate computes today's live drawdown as realized PnL since local
// midnight plus the floating PnL of all open perpetual positions.
type Gate struct {
	api      Exchange
	limitUSD float64 // negative threshold, e.g. -50

	now func() time.Time
}

func New(api Exchange, limitUSD float64) *Gate {
	return &Gate{api: api, limitUSD: limitUSD, now: time.Now}
}

// CheckDailyLimit reports whether new entries are still allowed and
// today's combined PnL. When the exchange data cannot be fetched the
// gate fails open with a zero figure: blocking all trading on every
// API hiccup was judged worse than occasionally letting a signal
// through blind. The error is always logged.
func (g *Gate) CheckDailyLimit(ctx context.Context) (bool, float64) {
	now := g.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	records, err := g.api.GetClosedPnL(ctx, startOfDay, closedPnLFetchLimit)
	if err != nil {
		logger.Errorf("Daily limit check failed (closed PnL): %v", err)
		return true, 0
	}
	realized := 0.0
	for _, r := range records {
		realized += r.ClosedPnl
	}

	acct, err := g.api.GetWalletAccount(ctx)
	if err != nil {
		logger.Errorf("Daily limit check failed (wallet): %v", err)
		return true, 0
	}

	total := realized + acct.TotalPerpUPL
	if total <= g.limitUSD {
		logger.Warnf("Daily loss limit reached: realized=%.2f floating=%.2f total=%.2f limit=%.2f",
			realized, acct.TotalPerpUPL, total, g.limitUSD)
		return false, total
	}
	return true, total
}
