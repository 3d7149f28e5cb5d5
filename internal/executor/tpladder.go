package executor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"
	"riskpilot/internal/sizing"
)

// PlaceTPLadder places three reduce-only take-profit limit orders at
// 1R, 2R and 3R from the live entry price, where 1R is the distance to
// the position's current exchange-side stop. Volumes split 30/30/rest
// so the pieces sum back to the full size without step-rounding tails.
//
// The R distance comes from the live stop, not a theoretical one: if
// the trailing engine already moved the stop, targets move with it.
// A position without a stop has no measurable 1R and is refused.
func (s *Service) PlaceTPLadder(ctx context.Context, symbol string) (string, error) {
	positions, err := s.api.GetPositions(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("read position %s: %w", symbol, err)
	}
	var pos *bybit.Position
	for i := range positions {
		if positions[i].Size > 0 {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		return "No open position. Enter a trade first.", nil
	}
	if pos.StopLoss == 0 {
		return "Position has no stop loss. Cannot measure 1R.", nil
	}

	rules, err := s.api.GetInstrumentRules(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("instrument rules %s: %w", symbol, err)
	}

	oneR := math.Abs(pos.AvgPrice - pos.StopLoss)
	riskUSD := pos.Size * oneR
	dir := 1.0
	if pos.Side == bybit.OrderSideSell {
		dir = -1.0
	}

	targets := [3]float64{
		sizing.RoundToTick(pos.AvgPrice+dir*1*oneR, rules.TickSize),
		sizing.RoundToTick(pos.AvgPrice+dir*2*oneR, rules.TickSize),
		sizing.RoundToTick(pos.AvgPrice+dir*3*oneR, rules.TickSize),
	}
	qty30 := sizing.RoundToStep(pos.Size*0.30, rules.QtyStep)
	qtys := [3]float64{qty30, qty30, pos.Size - 2*qty30}

	closeSide := bybit.OrderSideSell
	if pos.Side == bybit.OrderSideSell {
		closeSide = bybit.OrderSideBuy
	}

	lines := []string{fmt.Sprintf("Stop at %v. Position risk: %.2f$ (1R)", pos.StopLoss, riskUSD)}
	for i := range targets {
		if qtys[i] <= 0 {
			continue
		}
		name := fmt.Sprintf("TP%d (%dR)", i+1, i+1)
		_, err := s.api.PlaceOrder(ctx, bybit.OrderRequest{
			Symbol:      symbol,
			Side:        closeSide,
			OrderType:   bybit.OrderTypeLimit,
			Qty:         qtys[i],
			Price:       targets[i],
			ReduceOnly:  true,
			TimeInForce: "GTC",
		})
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s failed: %v", name, err))
			continue
		}
		estProfit := qtys[i] * math.Abs(pos.AvgPrice-targets[i])
		lines = append(lines, fmt.Sprintf("%s: %v (vol %v) ~ +%.2f$", name, targets[i], qtys[i], estProfit))
	}

	logger.Infof("TP ladder placed for %s, risk %.2f$", symbol, riskUSD)
	return strings.Join(lines, "\n"), nil
}
