package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"riskpilot/internal/config"
	"riskpilot/internal/executor"
	"riskpilot/internal/gateway/bybit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTrader struct {
	signals []string
	report  *executor.TradeReport

	closed    []string
	closeSize float64
}

func (s *stubTrader) HandleSignal(_ context.Context, text string) (*executor.TradeReport, error) {
	s.signals = append(s.signals, text)
	return s.report, nil
}

func (s *stubTrader) ClosePositionMarket(_ context.Context, symbol string) (float64, error) {
	s.closed = append(s.closed, symbol)
	return s.closeSize, nil
}

func (s *stubTrader) PlaceTPLadder(_ context.Context, symbol string) (string, error) {
	return "TP ladder for " + symbol, nil
}

type stubCmdStore struct {
	enabled *bool
	risk    float64
	notes   map[string]string
}

func (s *stubCmdStore) GlobalRisk() float64 { return s.risk }
func (s *stubCmdStore) SetGlobalRisk(amount float64) error {
	s.risk = amount
	return nil
}
func (s *stubCmdStore) SetTradingEnabled(enabled bool) error {
	s.enabled = &enabled
	return nil
}
func (s *stubCmdStore) AddComment(symbol, text string, _ time.Time) error {
	if s.notes == nil {
		s.notes = map[string]string{}
	}
	s.notes[symbol] = text
	return nil
}

type stubExchange struct {
	positions []bybit.Position
	orders    []bybit.OpenOrder
	acct      bybit.WalletAccount
}

func (s *stubExchange) GetPositions(context.Context, string) ([]bybit.Position, error) {
	return s.positions, nil
}
func (s *stubExchange) GetOpenOrders(context.Context, string) ([]bybit.OpenOrder, error) {
	return s.orders, nil
}
func (s *stubExchange) GetWalletAccount(context.Context) (bybit.WalletAccount, error) {
	return s.acct, nil
}

// capturing Telegram test server
func newCaptureTelegram(t *testing.T) (*Telegram, *[]string) {
	t.Helper()
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		sent = append(sent, payload.Text)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	tg := NewTelegram(config.TelegramConfig{BotToken: "tok", ChatID: "42"})
	tg.SetBaseURL(srv.URL)
	return tg, &sent
}

func newTestIntake(t *testing.T, trader *stubTrader, st *stubCmdStore, api *stubExchange) (*Intake, *[]string) {
	t.Helper()
	tg, sent := newCaptureTelegram(t)
	in := NewIntake(tg, trader, st, api, config.TelegramConfig{
		BotToken:      "tok",
		ChatID:        "42",
		AllowedUserID: "1001",
	})
	return in, sent
}

func msgFrom(userID int64, text string) update {
	return update{
		UpdateID: 1,
		Message:  &tgMessage{From: &tgUser{ID: userID}, Text: text},
	}
}

func TestSendPostsMessage(t *testing.T) {
	tg, sent := newCaptureTelegram(t)
	tg.Send("hello operator")
	require.Len(t, *sent, 1)
	assert.Equal(t, "hello operator", (*sent)[0])
}

func TestIntakeIgnoresStrangers(t *testing.T) {
	trader := &stubTrader{}
	in, sent := newTestIntake(t, trader, &stubCmdStore{}, &stubExchange{})

	in.handleUpdate(context.Background(), msgFrom(9999, "COIN: BTC\nENTRY: 50000\nSTOP: 49000"))
	assert.Empty(t, trader.signals)
	assert.Empty(t, *sent)
}

func TestIntakeNormalizesDecimalCommas(t *testing.T) {
	trader := &stubTrader{report: &executor.TradeReport{Status: executor.StatusPlaced, Message: "done"}}
	in, sent := newTestIntake(t, trader, &stubCmdStore{}, &stubExchange{})

	in.handleUpdate(context.Background(), msgFrom(1001, "BTC 50000,5 49000,5"))
	require.Len(t, trader.signals, 1)
	assert.Equal(t, "BTC 50000.5 49000.5", trader.signals[0])
	require.Len(t, *sent, 1)
	assert.Equal(t, "done", (*sent)[0])
}

func TestIntakeSilentOnNonSignals(t *testing.T) {
	trader := &stubTrader{report: nil}
	in, sent := newTestIntake(t, trader, &stubCmdStore{}, &stubExchange{})

	in.handleUpdate(context.Background(), msgFrom(1001, "good morning"))
	assert.Len(t, trader.signals, 1)
	assert.Empty(t, *sent, "parse misses get no reply")
}

func TestCommandStartStop(t *testing.T) {
	st := &stubCmdStore{}
	in, sent := newTestIntake(t, &stubTrader{}, st, &stubExchange{})

	in.handleUpdate(context.Background(), msgFrom(1001, "/stop"))
	require.NotNil(t, st.enabled)
	assert.False(t, *st.enabled)

	in.handleUpdate(context.Background(), msgFrom(1001, "/start"))
	assert.True(t, *st.enabled)
	assert.Len(t, *sent, 2)
}

func TestCommandRisk(t *testing.T) {
	st := &stubCmdStore{risk: 50}
	in, sent := newTestIntake(t, &stubTrader{}, st, &stubExchange{})

	in.handleUpdate(context.Background(), msgFrom(1001, "/risk 75"))
	assert.Equal(t, 75.0, st.risk)

	in.handleUpdate(context.Background(), msgFrom(1001, "/risk"))
	require.Len(t, *sent, 2)
	assert.Contains(t, (*sent)[1], "75.00")

	in.handleUpdate(context.Background(), msgFrom(1001, "/risk abc"))
	assert.Contains(t, (*sent)[2], "Usage")
	assert.Equal(t, 75.0, st.risk)
}

func TestCommandNote(t *testing.T) {
	st := &stubCmdStore{}
	in, _ := newTestIntake(t, &stubTrader{}, st, &stubExchange{})

	in.handleUpdate(context.Background(), msgFrom(1001, "/note btc scaled out early"))
	assert.Equal(t, "scaled out early", st.notes["BTCUSDT"])
}

func TestCommandClose(t *testing.T) {
	trader := &stubTrader{closeSize: 0.05}
	in, sent := newTestIntake(t, trader, &stubCmdStore{}, &stubExchange{})

	in.handleUpdate(context.Background(), msgFrom(1001, "/close BTC"))
	require.Len(t, trader.closed, 1)
	assert.Equal(t, "BTCUSDT", trader.closed[0])
	assert.Contains(t, (*sent)[0], "closed")
}

func TestCommandPos(t *testing.T) {
	api := &stubExchange{positions: []bybit.Position{
		{Symbol: "BTCUSDT", Side: "Buy", Size: 0.05, AvgPrice: 50000, StopLoss: 49000, UnrealisedPnl: 12.5},
		{Symbol: "ETHUSDT", Size: 0},
	}}
	in, sent := newTestIntake(t, &stubTrader{}, &stubCmdStore{}, api)

	in.handleUpdate(context.Background(), msgFrom(1001, "/pos"))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0], "BTCUSDT")
	assert.NotContains(t, (*sent)[0], "ETHUSDT")
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	in, sent := newTestIntake(t, &stubTrader{}, &stubCmdStore{}, &stubExchange{})
	in.handleUpdate(context.Background(), msgFrom(1001, "/wat"))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0], "/risk")
}

