package executor

import (
	"context"
	"time"

	"riskpilot/internal/gateway/bybit"

	"github.com/stretchr/testify/mock"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetTicker(ctx context.Context, symbol string) (bybit.Ticker, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(bybit.Ticker), args.Error(1)
}

func (m *MockAPI) GetInstrumentRules(ctx context.Context, symbol string) (bybit.InstrumentRules, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(bybit.InstrumentRules), args.Error(1)
}

func (m *MockAPI) GetWalletAccount(ctx context.Context) (bybit.WalletAccount, error) {
	args := m.Called(ctx)
	return args.Get(0).(bybit.WalletAccount), args.Error(1)
}

func (m *MockAPI) GetPositions(ctx context.Context, symbol string) ([]bybit.Position, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bybit.Position), args.Error(1)
}

func (m *MockAPI) GetOpenOrders(ctx context.Context, symbol string) ([]bybit.OpenOrder, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bybit.OpenOrder), args.Error(1)
}

func (m *MockAPI) SetLeverage(ctx context.Context, symbol string, buyLev, sellLev int) error {
	args := m.Called(ctx, symbol, buyLev, sellLev)
	return args.Error(0)
}

func (m *MockAPI) PlaceOrder(ctx context.Context, req bybit.OrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockAPI) CancelOrder(ctx context.Context, symbol, orderID string) error {
	args := m.Called(ctx, symbol, orderID)
	return args.Error(0)
}

func (m *MockAPI) SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error {
	args := m.Called(ctx, symbol, stopLoss)
	return args.Error(0)
}

func (m *MockAPI) GetClosedPnL(ctx context.Context, startTime time.Time, limit int) ([]bybit.ClosedPnL, error) {
	args := m.Called(ctx, startTime, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bybit.ClosedPnL), args.Error(1)
}

func (m *MockAPI) GetExecutions(ctx context.Context, symbol string, limit int) ([]bybit.Execution, error) {
	args := m.Called(ctx, symbol, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bybit.Execution), args.Error(1)
}

// memStore is an in-memory SettingsStore for tests.
type memStore struct {
	enabled bool
	risk    float64

	symbolRisk map[string]float64
	sources    map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		enabled:    true,
		risk:       50,
		symbolRisk: make(map[string]float64),
		sources:    make(map[string]string),
	}
}

func (s *memStore) TradingEnabled() bool { return s.enabled }
func (s *memStore) GlobalRisk() float64  { return s.risk }

func (s *memStore) SetRiskForSymbol(symbol string, riskUSD float64) error {
	s.symbolRisk[symbol] = riskUSD
	return nil
}

func (s *memStore) LogSource(symbol, sourceTag string, _ time.Time) error {
	s.sources[symbol] = sourceTag
	return nil
}

// openGate always allows; blockedGate always refuses.
type openGate struct{}

func (openGate) CheckDailyLimit(context.Context) (bool, float64) { return true, 0 }

type blockedGate struct{ pnl float64 }

func (g blockedGate) CheckDailyLimit(context.Context) (bool, float64) { return false, g.pnl }
