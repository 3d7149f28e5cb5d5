package config

const (
	mainnetBaseURL = "https://api.bybit.com"
	testnetBaseURL = "https://api-testnet.bybit.com"
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Bybit.BaseURL == "" {
		if c.Bybit.Testnet {
			c.Bybit.BaseURL = testnetBaseURL
		} else {
			c.Bybit.BaseURL = mainnetBaseURL
		}
	}
	if c.Bybit.TimeoutSeconds <= 0 {
		c.Bybit.TimeoutSeconds = 15
	}
	if c.Bybit.RecvWindowMS <= 0 {
		c.Bybit.RecvWindowMS = 5000
	}
	if c.Bybit.SlowCallMS <= 0 {
		c.Bybit.SlowCallMS = 500
	}

	if c.Telegram.PollTimeoutSeconds <= 0 {
		c.Telegram.PollTimeoutSeconds = 25
	}

	if c.Trading.RiskUSD <= 0 {
		c.Trading.RiskUSD = 50
	}
	if c.Trading.DailyLossLimitUSD == 0 {
		c.Trading.DailyLossLimitUSD = -50
	}
	if c.Trading.MaxStopDistPct <= 0 {
		c.Trading.MaxStopDistPct = 15
	}
	if c.Trading.MarginBufferUSD <= 0 {
		c.Trading.MarginBufferUSD = 2
	}
	if c.Trading.MarginBufferPct <= 0 {
		c.Trading.MarginBufferPct = 0.03
	}
	if c.Trading.OrderTimeoutDays <= 0 {
		c.Trading.OrderTimeoutDays = 3
	}

	if c.Jobs.TrailingIntervalSeconds <= 0 {
		c.Jobs.TrailingIntervalSeconds = 60
	}
	if c.Jobs.CleanupIntervalSeconds <= 0 {
		c.Jobs.CleanupIntervalSeconds = 3600
	}
	if c.Jobs.HeartbeatIntervalSeconds <= 0 {
		c.Jobs.HeartbeatIntervalSeconds = 1800
	}
	if c.Jobs.TimeCheckIntervalSeconds <= 0 {
		c.Jobs.TimeCheckIntervalSeconds = 6 * 3600
	}
	if c.Jobs.ReportHourUTC <= 0 {
		c.Jobs.ReportHourUTC = 9
	}

	if c.Store.DataDir == "" {
		c.Store.DataDir = "data"
	}
}
