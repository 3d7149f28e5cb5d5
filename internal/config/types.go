package config

// Config is the top-level configuration for the bot.
type Config struct {
	App      AppConfig      `toml:"app"`
	Bybit    BybitConfig    `toml:"bybit"`
	Telegram TelegramConfig `toml:"telegram"`
	Trading  TradingConfig  `toml:"trading"`
	Jobs     JobsConfig     `toml:"jobs"`
	Store    StoreConfig    `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// BybitConfig describes access to the exchange API. Key and secret are
// normally supplied via environment (BYBIT_API_KEY / BYBIT_API_SECRET).
type BybitConfig struct {
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	BaseURL        string `toml:"base_url"`
	Testnet        bool   `toml:"testnet"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RecvWindowMS   int    `toml:"recv_window_ms"`
	SlowCallMS     int    `toml:"slow_call_ms"`
}

type TelegramConfig struct {
	Enabled            bool   `toml:"enabled"`
	BotToken           string `toml:"bot_token"`
	ChatID             string `toml:"chat_id"`
	AllowedUserID      string `toml:"allowed_user_id"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
}

// TradingConfig carries the risk knobs. DailyLossLimitUSD is negative:
// trading halts once realized+floating PnL for the day sinks to it.
type TradingConfig struct {
	RiskUSD           float64 `toml:"risk_usd"`
	DailyLossLimitUSD float64 `toml:"daily_loss_limit_usd"`
	MaxStopDistPct    float64 `toml:"max_stop_dist_pct"`
	MarginBufferUSD   float64 `toml:"margin_buffer_usd"`
	MarginBufferPct   float64 `toml:"margin_buffer_pct"`
	OrderTimeoutDays  int     `toml:"order_timeout_days"`
}

type JobsConfig struct {
	TrailingIntervalSeconds  int `toml:"trailing_interval_seconds"`
	CleanupIntervalSeconds   int `toml:"cleanup_interval_seconds"`
	HeartbeatIntervalSeconds int `toml:"heartbeat_interval_seconds"`
	TimeCheckIntervalSeconds int `toml:"time_check_interval_seconds"`
	ReportHourUTC            int `toml:"report_hour_utc"`
}

type StoreConfig struct {
	DataDir string `toml:"data_dir"`
	Watch   bool   `toml:"watch"`
}
