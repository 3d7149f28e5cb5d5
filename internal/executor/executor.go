// Package executor sequences the exchange calls that turn a parsed
// signal into a live order: leverage setup, duplicate guard, preflight
// sizing and the actual placement with its narrow retry. Every step can
// fail independently; failures are converted to operator-facing reasons
// instead of aborting sibling steps that do not depend on them.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riskpilot/internal/config"
	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"
	"riskpilot/internal/signal"
	"riskpilot/internal/sizing"

	"github.com/google/uuid"
)

// SettingsStore is the slice of the persistent store the executor
// needs: the trading switch, the risk budget and trade bookkeeping.
type SettingsStore interface {
	TradingEnabled() bool
	GlobalRisk() float64
	SetRiskForSymbol(symbol string, riskUSD float64) error
	LogSource(symbol, sourceTag string, now time.Time) error
}

// DailyGate decides whether new entries are still allowed today.
type DailyGate interface {
	CheckDailyLimit(ctx context.Context) (allowed bool, pnlToday float64)
}

// Service is the order-execution orchestrator.
type Service struct {
	api   bybit.API
	store SettingsStore
	gate  DailyGate
	cfg   config.TradingConfig

	now func() time.Time
}

func New(api bybit.API, st SettingsStore, gate DailyGate, cfg config.TradingConfig) *Service {
	return &Service{
		api:   api,
		store: st,
		gate:  gate,
		cfg:   cfg,
		now:   time.Now,
	}
}

// MarketOutcome is the tri-state result of a market placement.
type MarketOutcome string

const (
	// MarketFilled means the order went through at the requested qty.
	MarketFilled MarketOutcome = "FILLED"
	// MarketFilledReduced means the one-step-down retry went through.
	MarketFilledReduced MarketOutcome = "FILLED_REDUCED"
	MarketFailed        MarketOutcome = "FAILED"
)

// MarketResult reports what actually happened to a market order. Qty is
// the executed quantity, zero on failure.
type MarketResult struct {
	Outcome MarketOutcome
	Qty     float64
	Reason  string
}

// SetLeverageSafe sets symbol leverage and returns the leverage that is
// actually in effect. "Leverage not modified" from the exchange means
// the value is already set and counts as success. Any other failure
// falls back to x1 so downstream margin math stays conservative.
func (s *Service) SetLeverageSafe(ctx context.Context, symbol string, lev int) int {
	err := s.api.SetLeverage(ctx, symbol, lev, lev)
	if err == nil || bybit.IsRetCode(err, bybit.CodeLeverageNotModified) {
		return lev
	}
	logger.Warnf("set_leverage(%s, x%d) failed: %v, using x1 for preflight", symbol, lev, err)
	return 1
}

// PlaceLimit places one limit entry order with an attached stop. No
// retry: a rejected limit order is the caller's problem to report.
func (s *Service) PlaceLimit(ctx context.Context, symbol string, side signal.Side, qty, price, stopLoss float64) error {
	_, err := s.api.PlaceOrder(ctx, bybit.OrderRequest{
		Symbol:    symbol,
		Side:      orderSideFor(side),
		OrderType: bybit.OrderTypeLimit,
		Qty:       qty,
		Price:     price,
		StopLoss:  stopLoss,

		OrderLinkID: newOrderLinkID(),
	})
	if err != nil {
		return err
	}
	logger.Infof("Limit order placed: %s | %s | entry=%v | SL=%v | qty=%v", symbol, side, price, stopLoss, qty)
	return nil
}

// PlaceMarketWithRetry places a market order at qty. On the exchange's
// insufficient-balance rejection it retries exactly once, one quantity
// step lower, provided that quantity is still a legal lot. Any other
// rejection, or a failed retry, is terminal.
func (s *Service) PlaceMarketWithRetry(ctx context.Context, symbol string, side signal.Side, qty, stopLoss float64, rules bybit.InstrumentRules) MarketResult {
	orderSide := orderSideFor(side)
	_, err := s.api.PlaceOrder(ctx, bybit.OrderRequest{
		Symbol:    symbol,
		Side:      orderSide,
		OrderType: bybit.OrderTypeMarket,
		Qty:       qty,
		StopLoss:  stopLoss,

		OrderLinkID: newOrderLinkID(),
	})
	if err == nil {
		logger.Infof("Market order: %s | %s | qty=%v", symbol, orderSide, qty)
		return MarketResult{Outcome: MarketFilled, Qty: qty}
	}

	if !bybit.IsRetCode(err, bybit.CodeInsufficientBalance) || rules.QtyStep <= 0 {
		logger.Errorf("Market order error (%s): %v", symbol, err)
		return MarketResult{Outcome: MarketFailed, Reason: err.Error()}
	}

	retryQty := sizing.FloorQty(qty-rules.QtyStep, rules.QtyStep)
	if retryQty < rules.MinOrderQty || retryQty <= 0 {
		return MarketResult{Outcome: MarketFailed, Reason: "insufficient balance even after one-step reduction"}
	}

	logger.Warnf("Insufficient balance, retry %s: %v -> %v", symbol, qty, retryQty)
	_, err = s.api.PlaceOrder(ctx, bybit.OrderRequest{
		Symbol:    symbol,
		Side:      orderSide,
		OrderType: bybit.OrderTypeMarket,
		Qty:       retryQty,
		StopLoss:  stopLoss,

		OrderLinkID: newOrderLinkID(),
	})
	if err != nil {
		logger.Errorf("Market retry failed (%s): %v", symbol, err)
		return MarketResult{Outcome: MarketFailed, Reason: err.Error()}
	}
	logger.Infof("Market order (retry): %s | %s | qty=%v", symbol, orderSide, retryQty)
	return MarketResult{Outcome: MarketFilledReduced, Qty: retryQty}
}

// ClosePositionMarket flattens the symbol's position with an
// opposite-side reduce-only market order. A zero-size read means the
// position is already gone; that is a benign no-op reported as
// closedQty 0 with a nil error.
func (s *Service) ClosePositionMarket(ctx context.Context, symbol string) (float64, error) {
	positions, err := s.api.GetPositions(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("read position %s: %w", symbol, err)
	}
	var pos *bybit.Position
	for i := range positions {
		if positions[i].Size > 0 {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		return 0, nil
	}

	closeSide := bybit.OrderSideSell
	if pos.Side == bybit.OrderSideSell {
		closeSide = bybit.OrderSideBuy
	}
	_, err = s.api.PlaceOrder(ctx, bybit.OrderRequest{
		Symbol:     symbol,
		Side:       closeSide,
		OrderType:  bybit.OrderTypeMarket,
		Qty:        pos.Size,
		ReduceOnly: true,
	})
	if err != nil {
		return 0, fmt.Errorf("close %s: %w", symbol, err)
	}
	logger.Infof("Position %s closed at market, qty=%v", symbol, pos.Size)
	return pos.Size, nil
}

// HasOpenTrade reports whether the symbol already has a live position
// or a resting entry order. When the exchange check itself fails the
// signal is allowed through; skipping it on every API hiccup would
// starve the bot. The race window against the exchange is accepted.
func (s *Service) HasOpenTrade(ctx context.Context, symbol string) (bool, string) {
	positions, err := s.api.GetPositions(ctx, symbol)
	if err != nil {
		logger.Errorf("Duplicate check error (%s): %v", symbol, err)
		return false, ""
	}
	for _, p := range positions {
		if p.Size > 0 {
			return true, fmt.Sprintf("position %s already open", p.Side)
		}
	}

	orders, err := s.api.GetOpenOrders(ctx, symbol)
	if err != nil {
		logger.Errorf("Duplicate check error (%s): %v", symbol, err)
		return false, ""
	}
	for _, o := range orders {
		if !o.ReduceOnly {
			return true, fmt.Sprintf("entry order already resting at %v", o.Price)
		}
	}
	return false, ""
}

// newOrderLinkID builds a client order ID. Bybit caps orderLinkId at
// 36 characters; "rp-" plus a dashless UUID is 35.
func newOrderLinkID() string {
	return "rp-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func orderSideFor(side signal.Side) string {
	if side == signal.SideShort {
		return bybit.OrderSideSell
	}
	return bybit.OrderSideBuy
}
