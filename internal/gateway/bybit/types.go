// Package bybit is a hand-rolled client for the Bybit v5 REST API,
// limited to the calls the bot actually needs. All numeric payload
// fields cross a single decode boundary (decode.go) and come out as
// typed values with explicit defaults.
package bybit

import (
	"context"
	"time"
)

// Category is fixed: the bot trades USDT-settled linear perpetuals only.
const Category = "linear"

// Order sides and types as the exchange spells them.
const (
	OrderSideBuy  = "Buy"
	OrderSideSell = "Sell"

	OrderTypeMarket = "Market"
	OrderTypeLimit  = "Limit"
)

// API is the exchange capability consumed by the executor, the trailing
// engine and the periodic jobs. *Client implements it; tests supply
// mocks.
type API interface {
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
	GetInstrumentRules(ctx context.Context, symbol string) (InstrumentRules, error)
	GetWalletAccount(ctx context.Context) (WalletAccount, error)
	// GetPositions lists positions for one symbol, or all USDT-settled
	// positions when symbol is empty.
	GetPositions(ctx context.Context, symbol string) ([]Position, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error)
	SetLeverage(ctx context.Context, symbol string, buyLev, sellLev int) error
	PlaceOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error
	GetClosedPnL(ctx context.Context, startTime time.Time, limit int) ([]ClosedPnL, error)
	GetExecutions(ctx context.Context, symbol string, limit int) ([]Execution, error)
}

// Ticker carries the last traded price for a symbol.
type Ticker struct {
	Symbol    string
	LastPrice float64
}

// InstrumentRules is the exchange lot filter plus price tick. Fetched
// fresh per decision; the exchange may change these at any time.
type InstrumentRules struct {
	QtyStep     float64
	MinOrderQty float64
	MaxOrderQty float64 // 0 means unbounded
	TickSize    float64
}

// WalletCoin is the per-coin slice of a unified account payload.
type WalletCoin struct {
	Coin            string
	WalletBalance   float64
	TotalPositionIM float64
	TotalOrderIM    float64
	Locked          float64
	Bonus           float64
}

// WalletAccount preserves the raw shape the margin fallback chain
// needs: HasAvailableBalance distinguishes an empty
// totalAvailableBalance field from a real zero.
type WalletAccount struct {
	TotalAvailableBalance float64
	HasAvailableBalance   bool
	TotalEquity           float64
	TotalInitialMargin    float64
	TotalPerpUPL          float64
	Coins                 []WalletCoin
}

// Position is exchange-owned state, read-only to the bot. Side is
// "Buy" or "Sell"; StopLoss is 0 when no stop is attached.
type Position struct {
	Symbol        string
	Side          string
	Size          float64
	AvgPrice      float64
	MarkPrice     float64
	StopLoss      float64
	UnrealisedPnl float64
	CreatedTime   int64 // ms
}

// OpenOrder is a resting order. ReduceOnly marks TP/SL legs; entry
// orders have it unset.
type OpenOrder struct {
	Symbol      string
	Side        string
	OrderID     string
	OrderType   string
	Price       float64
	Qty         float64
	ReduceOnly  bool
	CreatedTime int64 // ms
}

// ClosedPnL is one realized-PnL record.
type ClosedPnL struct {
	Symbol    string
	ClosedPnl float64
}

// Execution is one fill; ExecTime dates the actual entry into a trade.
type Execution struct {
	Symbol   string
	ExecTime int64 // ms
}

// OrderRequest covers both entry and reduce-only close orders.
type OrderRequest struct {
	Symbol      string
	Side        string
	OrderType   string
	Qty         float64
	Price       float64 // limit orders only
	StopLoss    float64 // 0 = no stop attached
	ReduceOnly  bool
	TimeInForce string
	OrderLinkID string
}
