package config

import "fmt"

func validate(c *Config) error {
	if c.Bybit.APIKey == "" || c.Bybit.APISecret == "" {
		return fmt.Errorf("bybit api_key/api_secret are required (set BYBIT_API_KEY / BYBIT_API_SECRET)")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.AllowedUserID == "" {
			return fmt.Errorf("telegram.allowed_user_id is required when telegram is enabled")
		}
	}
	if c.Trading.DailyLossLimitUSD > 0 {
		return fmt.Errorf("trading.daily_loss_limit_usd must be negative, got %.2f", c.Trading.DailyLossLimitUSD)
	}
	if c.Trading.MarginBufferPct < 0 || c.Trading.MarginBufferPct >= 1 {
		return fmt.Errorf("trading.margin_buffer_pct must be in [0,1), got %.3f", c.Trading.MarginBufferPct)
	}
	if c.Trading.MaxStopDistPct <= 0 || c.Trading.MaxStopDistPct > 100 {
		return fmt.Errorf("trading.max_stop_dist_pct must be in (0,100], got %.1f", c.Trading.MaxStopDistPct)
	}
	return nil
}
