package config

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppOpsAddr  = ":9985"
	defaultAppDBPath   = "data/tradepipe.db"

	defaultRiskMaxOrderValue    = 10_000_000 // INR
	defaultRiskMaxDailyTrades   = 200
	defaultRiskConcentrationPct = 25.0
	defaultRiskBuyingBuffer     = 0.05
	defaultRiskMaxMarginPct     = 80.0
	defaultRiskCounterTimezone  = "Asia/Kolkata" // venue trading day (NSE/BSE/MCX)

	defaultRoutingPrimary      = "zerodha"
	defaultRoutingFallback     = "upstox"
	defaultRoutingLargeOrder   = 10_000
	defaultRoutingMediumOrder  = 1_000
	defaultRoutingMaxSingleQty = 100_000

	defaultExecTimeoutSeconds = 10
	defaultExecPollMillis     = 500
	defaultExecMaxPolls       = 20
	defaultExecPartialPct     = 50.0

	defaultBreakerThreshold = 5
	defaultBreakerWindowSec = 60
	defaultBreakerCooldown  = 30

	defaultGatewayMode    = "sim"
	defaultGatewayTimeout = 5
)

// applyDefaults fills in every knob left at its zero value. All limits here
// are strictly positive in any legal configuration, so zero reliably means
// "not set".
func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Risk.applyDefaults()
	c.Routing.applyDefaults()
	c.Execution.applyDefaults()
	c.Breaker.applyDefaults()
	c.Gateway.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.OpsAddr == "" {
		a.OpsAddr = defaultAppOpsAddr
	}
	if a.DBPath == "" {
		a.DBPath = defaultAppDBPath
	}
}

func (r *RiskConfig) applyDefaults() {
	if r.MaxOrderValue <= 0 {
		r.MaxOrderValue = defaultRiskMaxOrderValue
	}
	if r.MaxDailyTrades <= 0 {
		r.MaxDailyTrades = defaultRiskMaxDailyTrades
	}
	if r.MaxConcentrationPct <= 0 {
		r.MaxConcentrationPct = defaultRiskConcentrationPct
	}
	if r.MinBuyingPowerBuffer <= 0 {
		r.MinBuyingPowerBuffer = defaultRiskBuyingBuffer
	}
	if r.MaxMarginUsagePct <= 0 {
		r.MaxMarginUsagePct = defaultRiskMaxMarginPct
	}
	if r.CounterTimezone == "" {
		r.CounterTimezone = defaultRiskCounterTimezone
	}
}

func (r *RoutingConfig) applyDefaults() {
	if r.PrimaryBroker == "" {
		r.PrimaryBroker = defaultRoutingPrimary
	}
	if r.FallbackBroker == "" {
		r.FallbackBroker = defaultRoutingFallback
	}
	if r.LargeOrderThreshold <= 0 {
		r.LargeOrderThreshold = defaultRoutingLargeOrder
	}
	if r.MediumOrderThreshold <= 0 {
		r.MediumOrderThreshold = defaultRoutingMediumOrder
	}
	if r.MaxSingleOrderQuantity <= 0 {
		r.MaxSingleOrderQuantity = defaultRoutingMaxSingleQty
	}
	if len(r.ExchangeBrokers) == 0 {
		r.ExchangeBrokers = map[string][]string{
			"NSE": {r.PrimaryBroker, r.FallbackBroker},
			"BSE": {r.PrimaryBroker, r.FallbackBroker},
			"MCX": {r.PrimaryBroker},
		}
	}
}

func (e *ExecutionConfig) applyDefaults() {
	if e.TimeoutSeconds <= 0 {
		e.TimeoutSeconds = defaultExecTimeoutSeconds
	}
	if e.PollIntervalMillis <= 0 {
		e.PollIntervalMillis = defaultExecPollMillis
	}
	if e.MaxPolls <= 0 {
		e.MaxPolls = defaultExecMaxPolls
	}
	if e.PartialFillAcceptPct <= 0 {
		e.PartialFillAcceptPct = defaultExecPartialPct
	}
}

func (b *BreakerConfig) applyDefaults() {
	if b.FailureThreshold <= 0 {
		b.FailureThreshold = defaultBreakerThreshold
	}
	if b.WindowSeconds <= 0 {
		b.WindowSeconds = defaultBreakerWindowSec
	}
	if b.CooldownSeconds <= 0 {
		b.CooldownSeconds = defaultBreakerCooldown
	}
}

func (g *GatewayConfig) applyDefaults() {
	if g.Mode == "" {
		g.Mode = defaultGatewayMode
	}
	if g.TimeoutSeconds <= 0 {
		g.TimeoutSeconds = defaultGatewayTimeout
	}
}
