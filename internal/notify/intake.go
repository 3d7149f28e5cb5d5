package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"riskpilot/internal/config"
	"riskpilot/internal/executor"
	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"
)

// Trader is what the intake drives: the signal pipeline plus the
// manual position commands.
type Trader interface {
	HandleSignal(ctx context.Context, text string) (*executor.TradeReport, error)
	ClosePositionMarket(ctx context.Context, symbol string) (float64, error)
	PlaceTPLadder(ctx context.Context, symbol string) (string, error)
}

// CommandStore is the persistent state the chat commands mutate.
type CommandStore interface {
	GlobalRisk() float64
	SetGlobalRisk(amount float64) error
	SetTradingEnabled(enabled bool) error
	AddComment(symbol, text string, now time.Time) error
}

// Exchange covers the read-only view commands.
type Exchange interface {
	GetPositions(ctx context.Context, symbol string) ([]bybit.Position, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]bybit.OpenOrder, error)
	GetWalletAccount(ctx context.Context) (bybit.WalletAccount, error)
}

// Intake long-polls Telegram for messages from the allowed operator and
// feeds them through the signal pipeline or the command handlers.
// Messages from anyone else are dropped without a reply.
type Intake struct {
	tg      *Telegram
	trader  Trader
	store   CommandStore
	api     Exchange
	allowed string
	timeout int

	offset int64
	now    func() time.Time
}

func NewIntake(tg *Telegram, trader Trader, st CommandStore, api Exchange, cfg config.TelegramConfig) *Intake {
	timeout := cfg.PollTimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &Intake{
		tg:      tg,
		trader:  trader,
		store:   st,
		api:     api,
		allowed: cfg.AllowedUserID,
		timeout: timeout,
		now:     time.Now,
	}
}

type tgUser struct {
	ID int64 `json:"id"`
}

type tgMessage struct {
	From    *tgUser `json:"from"`
	Text    string  `json:"text"`
	Caption string  `json:"caption"`
}

type update struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

// Run polls until ctx is cancelled. Poll errors back off and retry; the
// loop itself never gives up.
func (in *Intake) Run(ctx context.Context) error {
	logger.Infof("Telegram intake started (poll timeout %ds)", in.timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		updates, err := in.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warnf("Telegram poll error: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			in.offset = u.UpdateID + 1
			in.handleUpdate(ctx, u)
		}
	}
}

func (in *Intake) poll(ctx context.Context) ([]update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&offset=%d",
		in.tg.baseURL, in.tg.token, in.timeout, in.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: time.Duration(in.timeout+10) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("telegram getUpdates not ok")
	}
	return envelope.Result, nil
}

func (in *Intake) handleUpdate(ctx context.Context, u update) {
	if u.Message == nil || u.Message.From == nil {
		return
	}
	if strconv.FormatInt(u.Message.From.ID, 10) != in.allowed {
		return
	}
	text := u.Message.Text
	if text == "" {
		text = u.Message.Caption
	}
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		in.handleCommand(ctx, text)
		return
	}

	// Decimal commas are common in forwarded signals.
	normalized := strings.ReplaceAll(text, ",", ".")
	report, err := in.trader.HandleSignal(ctx, normalized)
	if err != nil {
		logger.Errorf("Signal handling error: %v", err)
		in.tg.Send(fmt.Sprintf("Error: %v", err))
		return
	}
	if report != nil && report.Message != "" {
		in.tg.Send(report.Message)
	}
}
