// Package notify is the Telegram side of the bot: pushing operator
// messages out and pulling signal messages in via long polling.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"riskpilot/internal/config"
	"riskpilot/internal/logger"
	"riskpilot/internal/pkg/text"
)

const (
	apiBase = "https://api.telegram.org"

	// Bot API rejects messages longer than 4096 characters.
	maxMessageLen = 4096
)

// Telegram talks to the Bot API with plain HTTP. No SDK: the bot needs
// two endpoints and nothing else.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegram(cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		baseURL: apiBase,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL points the client at a test server.
func (t *Telegram) SetBaseURL(u string) { t.baseURL = u }

// Send pushes one text message to the operator chat, retrying up to
// three times with a linear backoff. Errors are logged, not returned:
// a notification that cannot be delivered must never fail the trade
// flow that produced it.
func (t *Telegram) Send(msg string) {
	if err := t.sendText(msg); err != nil {
		logger.Errorf("Telegram send failed: %v", err)
	}
}

func (t *Telegram) sendText(msg string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram is not configured")
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text.Truncate(msg, maxMessageLen),
	}
	body, _ := json.Marshal(payload)

	var lastErr error
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return lastErr
}
