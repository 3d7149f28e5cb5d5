package executor

import (
	"context"
	"errors"
	"fmt"

	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"
	symutil "riskpilot/internal/pkg/symbol"
	"riskpilot/internal/signal"
	"riskpilot/internal/sizing"
)

// TradeStatus classifies what HandleSignal did with a message.
type TradeStatus string

const (
	// StatusIgnored covers non-signals, the disabled switch and
	// duplicate trades. Nothing was attempted.
	StatusIgnored TradeStatus = "IGNORED"
	// StatusRejected means a recognized signal was refused for a
	// concrete reason before any order was placed.
	StatusRejected TradeStatus = "REJECTED"
	StatusPlaced   TradeStatus = "PLACED"
	StatusFailed   TradeStatus = "FAILED"
)

// TradeReport is the operator-facing outcome of one inbound message.
// Message is ready to send to the chat as-is.
type TradeReport struct {
	Status   TradeStatus
	Message  string
	Symbol   string
	Side     signal.Side
	Qty      float64
	Entry    float64
	Stop     float64
	Leverage int
	Verdict  sizing.Verdict
	IsMarket bool
	Source   string
}

func ignored(msg string) *TradeReport {
	return &TradeReport{Status: StatusIgnored, Message: msg}
}

// HandleSignal runs the full intake pipeline for one chat message:
// parse, daily-loss gate, duplicate guard, preflight sizing, leverage
// and order placement. A nil report means the text was not a signal at
// all. The returned error is reserved for unexpected exchange failures;
// every expected business refusal comes back as a report.
func (s *Service) HandleSignal(ctx context.Context, text string) (*TradeReport, error) {
	sig := signal.Parse(text)
	if sig == nil {
		return nil, nil
	}
	logger.Infof("Signal parsed: %s stop=%v entry=%v market=%v source=%s",
		sig.Coin, sig.Stop, sig.Entry, sig.IsMarket, sig.Source)

	if !s.store.TradingEnabled() {
		return ignored("trading is disabled"), nil
	}

	if allowed, pnl := s.gate.CheckDailyLimit(ctx); !allowed {
		return &TradeReport{
			Status:  StatusRejected,
			Message: fmt.Sprintf("Daily loss limit hit: today %.2f$. New entries blocked.", pnl),
		}, nil
	}

	symbol := symutil.Normalize(sig.Coin)

	if busy, reason := s.HasOpenTrade(ctx, symbol); busy {
		return ignored(fmt.Sprintf("%s skipped: %s", symbol, reason)), nil
	}

	ticker, err := s.api.GetTicker(ctx, symbol)
	if errors.Is(err, bybit.ErrSymbolNotFound) {
		return &TradeReport{
			Status:  StatusRejected,
			Message: fmt.Sprintf("Unknown pair: %s is not listed", symbol),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ticker %s: %w", symbol, err)
	}

	entry := sig.Entry
	switch {
	case sig.IsMarket:
		entry = ticker.LastPrice
	case !sig.HasEntry:
		return &TradeReport{
			Status:  StatusRejected,
			Message: "No entry price in signal. Add a price, 0 or MARKET.",
		}, nil
	}

	side := sig.Side
	if side != "" {
		if signal.SideConflicts(side, entry, sig.Stop) {
			return &TradeReport{
				Status:  StatusRejected,
				Message: fmt.Sprintf("Stop %v contradicts %s at entry %v", sig.Stop, side, entry),
			}, nil
		}
	} else {
		side = signal.InferSide(entry, sig.Stop)
	}

	riskUSD := s.store.GlobalRisk()
	distPct := sizing.StopDistancePct(entry, sig.Stop)
	if distPct > s.cfg.MaxStopDistPct {
		return &TradeReport{
			Status:  StatusRejected,
			Message: fmt.Sprintf("Stop distance %.1f%% exceeds the %.0f%% cap", distPct, s.cfg.MaxStopDistPct),
		}, nil
	}
	lev := sizing.LeverageFor(distPct)
	desiredUSD := sizing.DesiredNotionalUSD(riskUSD, entry, sig.Stop)

	rules, err := s.api.GetInstrumentRules(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("instrument rules %s: %w", symbol, err)
	}

	effLev := s.SetLeverageSafe(ctx, symbol, lev)

	qty, verdict, clippedNote := s.preflight(ctx, symbol, desiredUSD, entry, effLev, rules)
	if verdict == sizing.VerdictReject {
		return &TradeReport{
			Status:  StatusRejected,
			Symbol:  symbol,
			Message: fmt.Sprintf("Not enough margin for even the minimum lot (%v) on %s. %s", rules.MinOrderQty, symbol, clippedNote),
		}, nil
	}

	if err := s.store.SetRiskForSymbol(symbol, riskUSD); err != nil {
		logger.Errorf("Persist risk for %s failed: %v", symbol, err)
	}
	if err := s.store.LogSource(symbol, sig.Source, s.now()); err != nil {
		logger.Errorf("Persist source for %s failed: %v", symbol, err)
	}

	report := &TradeReport{
		Symbol:   symbol,
		Side:     side,
		Qty:      qty,
		Entry:    entry,
		Stop:     sig.Stop,
		Leverage: effLev,
		Verdict:  verdict,
		IsMarket: sig.IsMarket,
		Source:   sig.Source,
	}

	if sig.IsMarket {
		res := s.PlaceMarketWithRetry(ctx, symbol, side, qty, sig.Stop, rules)
		if res.Outcome == MarketFailed {
			report.Status = StatusFailed
			report.Message = fmt.Sprintf("Market %s failed: %s", symbol, res.Reason)
			return report, nil
		}
		report.Status = StatusPlaced
		report.Qty = res.Qty
		report.Message = fmt.Sprintf("Market %s %s filled: qty=%v x%d SL=%v (risk %.0f$, %s)%s",
			side, symbol, res.Qty, effLev, sig.Stop, riskUSD, sig.Source, clippedNote)
		return report, nil
	}

	if err := s.PlaceLimit(ctx, symbol, side, qty, entry, sig.Stop); err != nil {
		report.Status = StatusFailed
		report.Message = fmt.Sprintf("Limit %s failed: %v", symbol, err)
		return report, nil
	}
	report.Status = StatusPlaced
	report.Message = fmt.Sprintf("Limit %s %s placed: entry=%v qty=%v x%d SL=%v (risk %.0f$, %s)%s",
		side, symbol, entry, qty, effLev, sig.Stop, riskUSD, sig.Source, clippedNote)
	return report, nil
}

// preflight sizes the order against live balance. When the wallet fetch
// fails the fallback is the pure lot-filter validation: degraded but
// explicit, never a silent substitute.
func (s *Service) preflight(ctx context.Context, symbol string, desiredUSD, entry float64, lev int, rules bybit.InstrumentRules) (float64, sizing.Verdict, string) {
	acct, err := s.api.GetWalletAccount(ctx)
	if err != nil {
		logger.Errorf("Preflight wallet fetch failed (%s): %v, falling back to lot validation", symbol, err)
		raw := 0.0
		if entry > 0 {
			raw = desiredUSD / entry
		}
		qty, ok, reason := sizing.ValidateQty(raw, rules)
		if !ok {
			return 0, sizing.VerdictReject, reason
		}
		return qty, sizing.VerdictOK, " (margin check skipped: balance unavailable)"
	}

	snap := sizing.AvailableUSD(acct)
	d := sizing.ClipQty(desiredUSD, entry, snap.AvailableUSD, lev, rules, sizing.Buffers{
		USD: s.cfg.MarginBufferUSD,
		Pct: s.cfg.MarginBufferPct,
	})
	logger.Infof("Preflight %s: desired=%.1f$ avail=%.1f$ (%s) lev=x%d qty=%v verdict=%s",
		symbol, desiredUSD, snap.AvailableUSD, snap.Source, lev, d.Qty, d.Verdict)

	switch d.Verdict {
	case sizing.VerdictReject:
		return 0, d.Verdict, fmt.Sprintf("Available: %.1f$", snap.AvailableUSD)
	case sizing.VerdictClipped:
		return d.Qty, d.Verdict, fmt.Sprintf(" (clipped %v -> %v, available %.1f$)", d.DesiredQty, d.Qty, snap.AvailableUSD)
	default:
		return d.Qty, d.Verdict, ""
	}
}
