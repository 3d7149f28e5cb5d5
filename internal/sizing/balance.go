package sizing

import (
	"math"

	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"
)

// Balance source tags, in fallback order.
const (
	BalanceSourcePrimary        = "totalAvailableBalance"
	BalanceSourceCoinFallback   = "coin_fallback"
	BalanceSourceEquityFallback = "equity_fallback"
	BalanceSourceFailClosed     = "fail_closed"
)

// AccountSnapshot is the usable-margin figure extracted from a wallet
// payload. A fail_closed source means "treat as zero usable margin",
// never an error.
type AccountSnapshot struct {
	AvailableUSD float64
	Source       string
}

// AvailableUSD walks the wallet payload's fallback chain:
//
//  1. account-level totalAvailableBalance (best for cross margin);
//  2. coin-level USDT: walletBalance - position IM - order IM - locked - bonus;
//  3. account-level totalEquity - totalInitialMargin;
//  4. fail closed with zero.
//
// The result is never negative.
func AvailableUSD(acct bybit.WalletAccount) AccountSnapshot {
	if acct.HasAvailableBalance {
		return AccountSnapshot{
			AvailableUSD: math.Max(0, acct.TotalAvailableBalance),
			Source:       BalanceSourcePrimary,
		}
	}

	for _, c := range acct.Coins {
		if c.Coin != "USDT" {
			continue
		}
		if c.WalletBalance > 0 {
			available := math.Max(0, c.WalletBalance-c.TotalPositionIM-c.TotalOrderIM-c.Locked-c.Bonus)
			logger.Warnf("totalAvailableBalance empty, coin fallback: wb=%.1f - posIM=%.1f - ordIM=%.1f - locked=%.1f - bonus=%.1f = %.1f",
				c.WalletBalance, c.TotalPositionIM, c.TotalOrderIM, c.Locked, c.Bonus, available)
			return AccountSnapshot{AvailableUSD: available, Source: BalanceSourceCoinFallback}
		}
		break
	}

	if acct.TotalEquity > 0 {
		available := math.Max(0, acct.TotalEquity-acct.TotalInitialMargin)
		logger.Warnf("no coin data, account fallback: equity=%.1f - IM=%.1f = %.1f",
			acct.TotalEquity, acct.TotalInitialMargin, available)
		return AccountSnapshot{AvailableUSD: available, Source: BalanceSourceEquityFallback}
	}

	logger.Errorf("cannot determine available balance, all sources empty, using 0")
	return AccountSnapshot{Source: BalanceSourceFailClosed}
}
