package executor

import (
	"context"
	"errors"
	"testing"

	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/signal"
	"riskpilot/internal/sizing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var btcRules = bybit.InstrumentRules{QtyStep: 0.001, MinOrderQty: 0.001, TickSize: 0.1}

// expectNoDuplicate wires the duplicate guard to report a free symbol.
func expectNoDuplicate(api *MockAPI, symbol string) {
	api.On("GetPositions", mock.Anything, symbol).Return([]bybit.Position{}, nil)
	api.On("GetOpenOrders", mock.Anything, symbol).Return([]bybit.OpenOrder{}, nil)
}

func TestHandleSignalNonSignalIsNil(t *testing.T) {
	svc, _ := newTestService(new(MockAPI))
	report, err := svc.HandleSignal(context.Background(), "gm everyone, how are we feeling today?")
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestHandleSignalTradingDisabled(t *testing.T) {
	svc, st := newTestService(new(MockAPI))
	st.enabled = false

	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nENTRY: 50000\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusIgnored, report.Status)
}

func TestHandleSignalDailyLimitBlocks(t *testing.T) {
	st := newMemStore()
	svc := New(new(MockAPI), st, blockedGate{pnl: -62.5}, testTradingCfg)

	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nENTRY: 50000\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusRejected, report.Status)
	assert.Contains(t, report.Message, "-62.50")
}

func TestHandleSignalDuplicateIgnored(t *testing.T) {
	api := new(MockAPI)
	api.On("GetPositions", mock.Anything, "BTCUSDT").Return([]bybit.Position{
		{Symbol: "BTCUSDT", Side: bybit.OrderSideBuy, Size: 0.05},
	}, nil)
	svc, _ := newTestService(api)

	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nENTRY: 50000\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusIgnored, report.Status)
	api.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestHandleSignalUnknownSymbol(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "NOPEUSDT")
	api.On("GetTicker", mock.Anything, "NOPEUSDT").Return(bybit.Ticker{}, bybit.ErrSymbolNotFound)
	svc, _ := newTestService(api)

	report, err := svc.HandleSignal(context.Background(), "COIN: NOPE\nENTRY: 50000\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusRejected, report.Status)
	assert.Contains(t, report.Message, "NOPEUSDT")
}

func TestHandleSignalMissingEntry(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "BTCUSDT")
	api.On("GetTicker", mock.Anything, "BTCUSDT").Return(bybit.Ticker{Symbol: "BTCUSDT", LastPrice: 50000}, nil)
	svc, _ := newTestService(api)

	// Stop and coin but no entry and no market keyword.
	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusRejected, report.Status)
	assert.Contains(t, report.Message, "entry")
}

func TestHandleSignalSideConflict(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "BTCUSDT")
	api.On("GetTicker", mock.Anything, "BTCUSDT").Return(bybit.Ticker{Symbol: "BTCUSDT", LastPrice: 50000}, nil)
	svc, _ := newTestService(api)

	// LONG with a stop above entry contradicts itself.
	report, err := svc.HandleSignal(context.Background(), "LONG\nCOIN: BTC\nENTRY: 50000\nSTOP: 51000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusRejected, report.Status)
	api.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestHandleSignalStopTooWide(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "BTCUSDT")
	api.On("GetTicker", mock.Anything, "BTCUSDT").Return(bybit.Ticker{Symbol: "BTCUSDT", LastPrice: 50000}, nil)
	svc, _ := newTestService(api)

	// 20% stop distance blows through the 15% hard cap.
	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nENTRY: 50000\nSTOP: 40000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusRejected, report.Status)
	assert.Contains(t, report.Message, "cap")
	api.AssertNotCalled(t, "SetLeverage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSignalLimitHappyPath(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "BTCUSDT")
	api.On("GetTicker", mock.Anything, "BTCUSDT").Return(bybit.Ticker{Symbol: "BTCUSDT", LastPrice: 50100}, nil)
	api.On("GetInstrumentRules", mock.Anything, "BTCUSDT").Return(btcRules, nil)
	api.On("SetLeverage", mock.Anything, "BTCUSDT", 5, 5).Return(nil)
	api.On("GetWalletAccount", mock.Anything).Return(bybit.WalletAccount{
		HasAvailableBalance:   true,
		TotalAvailableBalance: 10000,
	}, nil)
	api.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r bybit.OrderRequest) bool {
		return r.Symbol == "BTCUSDT" && r.Side == bybit.OrderSideBuy &&
			r.OrderType == bybit.OrderTypeLimit &&
			r.Qty == 0.05 && r.Price == 50000 && r.StopLoss == 49000
	})).Return("id-1", nil).Once()
	svc, st := newTestService(api)

	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nENTRY: 50000\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)

	// $50 risk at 2% distance => $2500 notional => 0.05 BTC at x5.
	assert.Equal(t, StatusPlaced, report.Status)
	assert.Equal(t, signal.SideLong, report.Side)
	assert.Equal(t, 0.05, report.Qty)
	assert.Equal(t, 5, report.Leverage)
	assert.Equal(t, sizing.VerdictOK, report.Verdict)

	// Risk and source are recorded before placement.
	assert.Equal(t, 50.0, st.symbolRisk["BTCUSDT"])
	assert.Equal(t, "#Manual", st.sources["BTCUSDT"])
	api.AssertExpectations(t)
}

func TestHandleSignalMarketUsesTickerPrice(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "BTCUSDT")
	api.On("GetTicker", mock.Anything, "BTCUSDT").Return(bybit.Ticker{Symbol: "BTCUSDT", LastPrice: 50000}, nil)
	api.On("GetInstrumentRules", mock.Anything, "BTCUSDT").Return(btcRules, nil)
	api.On("SetLeverage", mock.Anything, "BTCUSDT", 5, 5).Return(nil)
	api.On("GetWalletAccount", mock.Anything).Return(bybit.WalletAccount{
		HasAvailableBalance:   true,
		TotalAvailableBalance: 10000,
	}, nil)
	api.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r bybit.OrderRequest) bool {
		return r.OrderType == bybit.OrderTypeMarket && r.Qty == 0.05 && r.StopLoss == 49000
	})).Return("id-1", nil).Once()
	svc, _ := newTestService(api)

	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nSTOP: 49000\nMARKET")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusPlaced, report.Status)
	assert.True(t, report.IsMarket)
	assert.Equal(t, 50000.0, report.Entry)
	api.AssertExpectations(t)
}

func TestHandleSignalPreflightReject(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "BTCUSDT")
	api.On("GetTicker", mock.Anything, "BTCUSDT").Return(bybit.Ticker{Symbol: "BTCUSDT", LastPrice: 50100}, nil)
	api.On("GetInstrumentRules", mock.Anything, "BTCUSDT").Return(btcRules, nil)
	api.On("SetLeverage", mock.Anything, "BTCUSDT", 5, 5).Return(nil)
	api.On("GetWalletAccount", mock.Anything).Return(bybit.WalletAccount{
		HasAvailableBalance:   true,
		TotalAvailableBalance: 0.5,
	}, nil)
	svc, st := newTestService(api)

	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nENTRY: 50000\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusRejected, report.Status)
	assert.Contains(t, report.Message, "margin")
	assert.Empty(t, st.symbolRisk, "rejected signals leave no risk record")
	api.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestHandleSignalWalletFailureFallsBackToLotValidation(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "BTCUSDT")
	api.On("GetTicker", mock.Anything, "BTCUSDT").Return(bybit.Ticker{Symbol: "BTCUSDT", LastPrice: 50100}, nil)
	api.On("GetInstrumentRules", mock.Anything, "BTCUSDT").Return(btcRules, nil)
	api.On("SetLeverage", mock.Anything, "BTCUSDT", 5, 5).Return(nil)
	api.On("GetWalletAccount", mock.Anything).Return(bybit.WalletAccount{}, errors.New("timeout"))
	api.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r bybit.OrderRequest) bool {
		return r.Qty == 0.05
	})).Return("id-1", nil).Once()
	svc, _ := newTestService(api)

	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nENTRY: 50000\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusPlaced, report.Status)
	assert.Contains(t, report.Message, "margin check skipped")
	api.AssertExpectations(t)
}

func TestHandleSignalLimitPlacementFailureReported(t *testing.T) {
	api := new(MockAPI)
	expectNoDuplicate(api, "BTCUSDT")
	api.On("GetTicker", mock.Anything, "BTCUSDT").Return(bybit.Ticker{Symbol: "BTCUSDT", LastPrice: 50100}, nil)
	api.On("GetInstrumentRules", mock.Anything, "BTCUSDT").Return(btcRules, nil)
	api.On("SetLeverage", mock.Anything, "BTCUSDT", 5, 5).Return(nil)
	api.On("GetWalletAccount", mock.Anything).Return(bybit.WalletAccount{
		HasAvailableBalance:   true,
		TotalAvailableBalance: 10000,
	}, nil)
	api.On("PlaceOrder", mock.Anything, mock.Anything).
		Return("", &bybit.APIError{Code: 10001, Msg: "params error"}).Once()
	svc, _ := newTestService(api)

	report, err := svc.HandleSignal(context.Background(), "COIN: BTC\nENTRY: 50000\nSTOP: 49000")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StatusFailed, report.Status)
	assert.Contains(t, report.Message, "10001")
}

func TestPlaceTPLadder(t *testing.T) {
	api := new(MockAPI)
	api.On("GetPositions", mock.Anything, "BTCUSDT").Return([]bybit.Position{
		{Symbol: "BTCUSDT", Side: bybit.OrderSideBuy, Size: 0.1, AvgPrice: 50000, StopLoss: 49000},
	}, nil)
	api.On("GetInstrumentRules", mock.Anything, "BTCUSDT").Return(btcRules, nil)

	var placed []bybit.OrderRequest
	api.On("PlaceOrder", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		placed = append(placed, args.Get(1).(bybit.OrderRequest))
	}).Return("id", nil).Times(3)
	svc, _ := newTestService(api)

	msg, err := svc.PlaceTPLadder(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Contains(t, msg, "1R")
	require.Len(t, placed, 3)

	// 1R = 1000: targets at 51000/52000/53000, 30/30/40 split.
	assert.Equal(t, 51000.0, placed[0].Price)
	assert.Equal(t, 52000.0, placed[1].Price)
	assert.Equal(t, 53000.0, placed[2].Price)
	assert.Equal(t, 0.03, placed[0].Qty)
	assert.Equal(t, 0.03, placed[1].Qty)
	assert.InDelta(t, 0.04, placed[2].Qty, 1e-9)
	for _, r := range placed {
		assert.True(t, r.ReduceOnly)
		assert.Equal(t, bybit.OrderSideSell, r.Side)
	}
}

func TestPlaceTPLadderNoStop(t *testing.T) {
	api := new(MockAPI)
	api.On("GetPositions", mock.Anything, "BTCUSDT").Return([]bybit.Position{
		{Symbol: "BTCUSDT", Side: bybit.OrderSideBuy, Size: 0.1, AvgPrice: 50000, StopLoss: 0},
	}, nil)
	svc, _ := newTestService(api)

	msg, err := svc.PlaceTPLadder(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Contains(t, msg, "no stop")
	api.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}
