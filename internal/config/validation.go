package config

import (
	"fmt"
	"strings"
	"time"
)

// validate performs basic sanity checks after defaults are applied.
func validate(c *Config) error {
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Routing.validate(); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.Gateway.validate(); err != nil {
		return err
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxConcentrationPct > 100 {
		return fmt.Errorf("risk.max_concentration_pct must be <= 100")
	}
	if r.MaxMarginUsagePct > 100 {
		return fmt.Errorf("risk.max_margin_usage_pct must be <= 100")
	}
	if _, err := time.LoadLocation(r.CounterTimezone); err != nil {
		return fmt.Errorf("risk.counter_timezone %q is not a valid IANA zone: %w", r.CounterTimezone, err)
	}
	return nil
}

func (r *RoutingConfig) validate() error {
	if strings.TrimSpace(r.PrimaryBroker) == "" {
		return fmt.Errorf("routing.primary_broker is required")
	}
	if strings.TrimSpace(r.FallbackBroker) == "" {
		return fmt.Errorf("routing.fallback_broker is required")
	}
	if r.PrimaryBroker == r.FallbackBroker {
		return fmt.Errorf("routing.fallback_broker must differ from primary_broker")
	}
	if r.MediumOrderThreshold >= r.LargeOrderThreshold {
		return fmt.Errorf("routing.medium_order_threshold must be below large_order_threshold")
	}
	for exch, brokers := range r.ExchangeBrokers {
		if len(brokers) == 0 {
			return fmt.Errorf("routing.exchange_brokers.%s lists no brokers", exch)
		}
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	if e.PartialFillAcceptPct > 100 {
		return fmt.Errorf("execution.partial_fill_accept_pct must be <= 100")
	}
	return nil
}

func (g *GatewayConfig) validate() error {
	switch g.Mode {
	case "sim":
		return nil
	case "http":
		if strings.TrimSpace(g.PortfolioURL) == "" {
			return fmt.Errorf("gateway.portfolio_url is required in http mode")
		}
		if strings.TrimSpace(g.BrokerAuthURL) == "" {
			return fmt.Errorf("gateway.broker_auth_url is required in http mode")
		}
		return nil
	default:
		return fmt.Errorf("gateway.mode must be \"http\" or \"sim\", got %q", g.Mode)
	}
}
