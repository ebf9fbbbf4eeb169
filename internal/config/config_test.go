package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  env: test
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, float64(10_000_000), cfg.Risk.MaxOrderValue)
	assert.Equal(t, int64(200), cfg.Risk.MaxDailyTrades)
	assert.Equal(t, "Asia/Kolkata", cfg.Risk.CounterTimezone)
	assert.Equal(t, "zerodha", cfg.Routing.PrimaryBroker)
	assert.Equal(t, "upstox", cfg.Routing.FallbackBroker)
	assert.Equal(t, []string{"zerodha"}, cfg.Routing.ExchangeBrokers["MCX"])
	assert.Equal(t, 20, cfg.Execution.MaxPolls)
	assert.Equal(t, 50.0, cfg.Execution.PartialFillAcceptPct)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, "sim", cfg.Gateway.Mode)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
risk:
  max_order_value: 5000000
  max_daily_trades: 50
  counter_timezone: UTC
routing:
  primary_broker: upstox
  fallback_broker: zerodha
execution:
  partial_fill_accept_pct: 75
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, float64(5_000_000), cfg.Risk.MaxOrderValue)
	assert.Equal(t, int64(50), cfg.Risk.MaxDailyTrades)
	assert.Equal(t, "UTC", cfg.Risk.CounterTimezone)
	assert.Equal(t, "upstox", cfg.Routing.PrimaryBroker)
	assert.Equal(t, 75.0, cfg.Execution.PartialFillAcceptPct)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			"same primary and fallback",
			"routing:\n  primary_broker: zerodha\n  fallback_broker: zerodha\n",
			"must differ",
		},
		{
			"concentration above 100",
			"risk:\n  max_concentration_pct: 150\n",
			"max_concentration_pct",
		},
		{
			"bad timezone",
			"risk:\n  counter_timezone: Mars/Olympus\n",
			"counter_timezone",
		},
		{
			"http mode without urls",
			"gateway:\n  mode: http\n",
			"portfolio_url",
		},
		{
			"unknown gateway mode",
			"gateway:\n  mode: carrier-pigeon\n",
			"gateway.mode",
		},
		{
			"inverted size thresholds",
			"routing:\n  medium_order_threshold: 20000\n  large_order_threshold: 10000\n",
			"medium_order_threshold",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sim", cfg.Gateway.Mode)
	assert.Equal(t, 500, cfg.Execution.PollIntervalMillis)
	assert.Equal(t, int64(100_000), cfg.Routing.MaxSingleOrderQuantity)
}
