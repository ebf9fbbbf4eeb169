package config

import "time"

// Config is the main configuration carrier for the order-processing core.
type Config struct {
	App       AppConfig       `toml:"app"`
	Risk      RiskConfig      `toml:"risk"`
	Routing   RoutingConfig   `toml:"routing"`
	Execution ExecutionConfig `toml:"execution"`
	Breaker   BreakerConfig   `toml:"breaker"`
	Gateway   GatewayConfig   `toml:"gateway"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	OpsAddr  string `toml:"ops_addr"`
	LogPath  string `toml:"log_path"`
	DBPath   string `toml:"db_path"`
}

// RiskConfig holds the limit set enforced by the risk engine. These are the
// hot-reloadable knobs; the engine swaps them atomically on config change.
type RiskConfig struct {
	MaxOrderValue         float64 `toml:"max_order_value"`
	MaxDailyTrades        int64   `toml:"max_daily_trades"`
	MaxConcentrationPct   float64 `toml:"max_concentration_pct"`
	MinBuyingPowerBuffer  float64 `toml:"min_buying_power_buffer"`
	MaxMarginUsagePct     float64 `toml:"max_margin_usage_pct"`
	// CounterTimezone names the IANA zone whose midnight resets the daily
	// trade counters. The venue's trading day, not the server's.
	CounterTimezone string `toml:"counter_timezone"`
}

type RoutingConfig struct {
	PrimaryBroker          string              `toml:"primary_broker"`
	FallbackBroker         string              `toml:"fallback_broker"`
	LargeOrderThreshold    int64               `toml:"large_order_threshold"`
	MediumOrderThreshold   int64               `toml:"medium_order_threshold"`
	MaxSingleOrderQuantity int64               `toml:"max_single_order_quantity"`
	// ExchangeBrokers maps an exchange code to the brokers eligible on it.
	ExchangeBrokers map[string][]string `toml:"exchange_brokers"`
}

type ExecutionConfig struct {
	TimeoutSeconds       int     `toml:"timeout_seconds"`
	PollIntervalMillis   int     `toml:"poll_interval_ms"`
	MaxPolls             int     `toml:"max_polls"`
	PartialFillAcceptPct float64 `toml:"partial_fill_accept_pct"`
}

func (e ExecutionConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

func (e ExecutionConfig) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalMillis) * time.Millisecond
}

type BreakerConfig struct {
	FailureThreshold int `toml:"failure_threshold"`
	WindowSeconds    int `toml:"window_seconds"`
	CooldownSeconds  int `toml:"cooldown_seconds"`
}

func (b BreakerConfig) Window() time.Duration {
	return time.Duration(b.WindowSeconds) * time.Second
}

func (b BreakerConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownSeconds) * time.Second
}

// GatewayConfig describes how to reach the external collaborators. Mode
// "sim" wires the in-memory simulator instead of HTTP clients.
type GatewayConfig struct {
	Mode           string `toml:"mode"` // "http" | "sim"
	PortfolioURL   string `toml:"portfolio_url"`
	BrokerAuthURL  string `toml:"broker_auth_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}
