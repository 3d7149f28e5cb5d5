// Package trailing moves protective stops forward as positions earn
// profit in units of their original risk. There is no persisted stage:
// every tick re-derives the state from live mark price, entry, the
// stored risk dollars and the stop the exchange currently holds, so a
// restart resumes correctly by construction.
package trailing

import (
	"context"
	"fmt"

	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"
	"riskpilot/internal/sizing"
)

// Exchange is the slice of the gateway the engine needs per tick.
type Exchange interface {
	GetPositions(ctx context.Context, symbol string) ([]bybit.Position, error)
	GetInstrumentRules(ctx context.Context, symbol string) (bybit.InstrumentRules, error)
	SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error
}

// RiskLookup resolves the dollar risk recorded when a trade opened.
// ok=false means no record; the engine must then leave the symbol
// alone, since an assumed risk would corrupt every distance downstream.
type RiskLookup interface {
	RiskForSymbol(symbol string) (riskUSD float64, ok bool)
}

// Notifier pushes operator messages. May be nil.
type Notifier interface {
	Send(text string)
}

// Stage thresholds: at 2R the stop locks a sliver of profit past
// entry, at 1R it cuts the open risk to 0.3R. Highest stage wins, one
// stage per tick.
const (
	breakevenR      = 2.0
	riskCutR        = 1.0
	breakevenOffset = 0.05
	riskCutDist     = 0.3
)

// Engine evaluates all open positions once per scheduler tick.
type Engine struct {
	api    Exchange
	risk   RiskLookup
	notify Notifier
}

func New(api Exchange, risk RiskLookup, notify Notifier) *Engine {
	return &Engine{api: api, risk: risk, notify: notify}
}

// EvaluateAll runs one trailing pass over every open position. A
// failure on one position never blocks the others; the first error is
// returned after the full pass for the scheduler's log line.
func (e *Engine) EvaluateAll(ctx context.Context) error {
	positions, err := e.api.GetPositions(ctx, "")
	if err != nil {
		return fmt.Errorf("trailing: list positions: %w", err)
	}

	var firstErr error
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		if err := e.evaluate(ctx, p); err != nil {
			logger.Errorf("Trailing %s: %v", p.Symbol, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) evaluate(ctx context.Context, p bybit.Position) error {
	// No stop means nothing to trail.
	if p.StopLoss == 0 {
		return nil
	}
	riskUSD, ok := e.risk.RiskForSymbol(p.Symbol)
	if !ok {
		return nil
	}

	dist1R := riskUSD / p.Size
	target, tag, move := targetStop(p, dist1R)
	if !move {
		return nil
	}

	rules, err := e.api.GetInstrumentRules(ctx, p.Symbol)
	if err != nil {
		return fmt.Errorf("instrument rules: %w", err)
	}
	newSL := sizing.RoundToTick(target, rules.TickSize)

	if err := e.api.SetTradingStop(ctx, p.Symbol, newSL); err != nil {
		return fmt.Errorf("set stop: %w", err)
	}

	currentR := rMultiple(p, dist1R)
	logger.Infof("%s: %s SL moved to %v (%.1fR)", tag, p.Symbol, newSL, currentR)
	if e.notify != nil {
		e.notify.Send(fmt.Sprintf("%s: %s (PnL %.1fR)\nStop moved to %v", tag, p.Symbol, currentR, newSL))
	}
	return nil
}

// targetStop picks the stage target for a position. The stop may only
// ratchet in the favorable direction; a target at or behind the current
// stop yields no move.
func targetStop(p bybit.Position, dist1R float64) (target float64, tag string, move bool) {
	if dist1R <= 0 {
		return 0, "", false
	}
	isLong := p.Side == bybit.OrderSideBuy
	currentR := rMultiple(p, dist1R)

	switch {
	case currentR >= breakevenR:
		offset := dist1R * breakevenOffset
		if isLong {
			target = p.AvgPrice + offset
		} else {
			target = p.AvgPrice - offset
		}
		tag = "AUTO-BE (2R)"
	case currentR >= riskCutR:
		safeDist := riskCutDist * dist1R
		if isLong {
			target = p.AvgPrice - safeDist
		} else {
			target = p.AvgPrice + safeDist
		}
		tag = "Risk Cut (-0.3R)"
	default:
		return 0, "", false
	}

	if isLong {
		move = target > p.StopLoss
	} else {
		move = target < p.StopLoss
	}
	return target, tag, move
}

// rMultiple is the signed profit in R units; favorable movement is
// positive for both sides.
func rMultiple(p bybit.Position, dist1R float64) float64 {
	move := p.MarkPrice - p.AvgPrice
	if p.Side == bybit.OrderSideSell {
		move = -move
	}
	return move / dist1R
}
