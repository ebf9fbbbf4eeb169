package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepipe/internal/domain"
	"tradepipe/internal/gateway/sim"
	"tradepipe/internal/pkg/circuit"
)

const testAccount = "ACC-1"

func testLimits() Limits {
	return Limits{
		MaxOrderValue:        decimal.NewFromInt(10_000_000),
		MaxDailyTrades:       200,
		MaxConcentrationPct:  25.0,
		MinBuyingPowerBuffer: 0.05,
		MaxMarginUsagePct:    80.0,
	}
}

func newTestEngine(t *testing.T) (*Engine, *sim.Portfolio) {
	t.Helper()
	pf := sim.NewPortfolio()
	pf.SeedAccount(testAccount, sim.AccountState{
		AvailableFunds: decimal.NewFromInt(50_000_000),
		PortfolioValue: decimal.NewFromInt(100_000_000),
		Positions:      map[string]int64{},
		PositionLimit:  50_000,
		MarginUsagePct: 20.0,
	})
	pf.SetMarkPrice("RELIANCE", decimal.NewFromInt(2500))
	b := circuit.NewBreaker("portfolio", circuit.Config{FailureThreshold: 100, Window: time.Minute, Cooldown: time.Second})
	return NewEngine(pf, b, NewDailyCounter(time.UTC), testLimits()), pf
}

func limitOrder(qty int64, price int64) *domain.OrderRequest {
	return &domain.OrderRequest{
		Symbol:      "RELIANCE",
		Exchange:    "NSE",
		Side:        domain.SideBuy,
		Type:        domain.TypeLimit,
		Quantity:    qty,
		LimitPrice:  decimal.NewFromInt(price),
		TimeInForce: domain.TIFDay,
	}
}

func TestCheckRiskPasses(t *testing.T) {
	e, _ := newTestEngine(t)
	val := e.CheckRisk(context.Background(), limitOrder(100, 2500), testAccount)
	assert.True(t, val.OK(), "unexpected violations: %v", val.ErrorList())
}

func TestOrderValueLimit(t *testing.T) {
	e, _ := newTestEngine(t)

	// 6000 x 2000 = 12,000,000 against a 10,000,000 cap.
	val := e.CheckRisk(context.Background(), limitOrder(6000, 2000), testAccount)
	require.False(t, val.OK())

	var hit domain.OrderValueLimitError
	found := false
	for _, err := range val.Errors() {
		if ove, ok := err.(domain.OrderValueLimitError); ok {
			hit, found = ove, true
		}
	}
	require.True(t, found, "expected an order value violation, got %v", val.ErrorList())
	assert.True(t, hit.Notional.Equal(decimal.NewFromInt(12_000_000)))
	assert.True(t, hit.Limit.Equal(decimal.NewFromInt(10_000_000)))
	assert.Equal(t, domain.SeverityHigh, hit.Severity())
	assert.False(t, hit.Retryable())
}

func TestDailyTradeLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	limits := testLimits()
	limits.MaxDailyTrades = 2
	e.UpdateLimits(limits)

	req := limitOrder(10, 2500)
	require.True(t, e.CheckRisk(context.Background(), req, testAccount).OK())
	require.True(t, e.CheckRisk(context.Background(), req, testAccount).OK())

	val := e.CheckRisk(context.Background(), req, testAccount)
	require.False(t, val.OK())
	_, ok := val.Errors()[0].(domain.DailyTradeLimitError)
	assert.True(t, ok)

	// The rejected attempt gave its slot back; usage stays at the limit.
	assert.Equal(t, int64(2), e.Counter().Count(testAccount))
}

func TestBuyingPower(t *testing.T) {
	e, pf := newTestEngine(t)
	pf.SeedAccount(testAccount, sim.AccountState{
		AvailableFunds: decimal.NewFromInt(250_000),
		PortfolioValue: decimal.NewFromInt(100_000_000),
		PositionLimit:  50_000,
	})

	// 100 x 2500 = 250,000 exactly; the 5% buffer pushes it over.
	val := e.CheckRisk(context.Background(), limitOrder(100, 2500), testAccount)
	require.False(t, val.OK())
	var bp domain.InsufficientBuyingPowerError
	found := false
	for _, err := range val.Errors() {
		if e, ok := err.(domain.InsufficientBuyingPowerError); ok {
			bp, found = e, true
		}
	}
	require.True(t, found)
	assert.True(t, bp.Required.Equal(decimal.NewFromInt(262_500)))

	// SELL orders need no buying power.
	sell := limitOrder(100, 2500)
	sell.Side = domain.SideSell
	assert.True(t, e.CheckRisk(context.Background(), sell, testAccount).OK())
}

func TestPositionSizeLimit(t *testing.T) {
	e, pf := newTestEngine(t)
	pf.SeedAccount(testAccount, sim.AccountState{
		AvailableFunds: decimal.NewFromInt(50_000_000),
		PortfolioValue: decimal.NewFromInt(100_000_000),
		Positions:      map[string]int64{"RELIANCE": 900},
		PositionLimit:  1000,
	})

	val := e.CheckRisk(context.Background(), limitOrder(200, 2500), testAccount)
	require.False(t, val.OK())
	found := false
	for _, err := range val.Errors() {
		if ps, ok := err.(domain.PositionSizeLimitError); ok {
			assert.Equal(t, int64(1100), ps.Projected)
			found = true
		}
	}
	assert.True(t, found)

	// Selling shrinks the position and passes.
	sell := limitOrder(200, 2500)
	sell.Side = domain.SideSell
	assert.True(t, e.CheckRisk(context.Background(), sell, testAccount).OK())
}

func TestConcentrationLimit(t *testing.T) {
	e, pf := newTestEngine(t)
	pf.SeedAccount(testAccount, sim.AccountState{
		AvailableFunds: decimal.NewFromInt(50_000_000),
		PortfolioValue: decimal.NewFromInt(10_000_000),
		Positions:      map[string]int64{"RELIANCE": 800},
		PositionLimit:  50_000,
	})

	// Exposure 2,000,000 plus a 1,000,000 buy = 30% of a 10,000,000 book.
	val := e.CheckRisk(context.Background(), limitOrder(400, 2500), testAccount)
	require.False(t, val.OK())
	found := false
	for _, err := range val.Errors() {
		if cr, ok := err.(domain.ConcentrationRiskError); ok {
			assert.InDelta(t, 30.0, cr.ProjectedPct, 0.01)
			found = true
		}
	}
	assert.True(t, found)
}

func TestMarginUsageLimit(t *testing.T) {
	e, pf := newTestEngine(t)
	pf.SeedAccount(testAccount, sim.AccountState{
		AvailableFunds: decimal.NewFromInt(50_000_000),
		PortfolioValue: decimal.NewFromInt(100_000_000),
		PositionLimit:  50_000,
		MarginUsagePct: 85.0,
	})

	val := e.CheckRisk(context.Background(), limitOrder(10, 2500), testAccount)
	require.False(t, val.OK())
	found := false
	for _, err := range val.Errors() {
		if mu, ok := err.(domain.MarginUsageError); ok {
			assert.Equal(t, domain.SeverityCritical, mu.Severity())
			found = true
		}
	}
	assert.True(t, found)
}

func TestRiskDegradesConservativelyWhenPortfolioDown(t *testing.T) {
	e, pf := newTestEngine(t)
	pf.SetUnavailable(true)

	val := e.CheckRisk(context.Background(), limitOrder(100, 2500), testAccount)
	require.False(t, val.OK())

	// Every portfolio-dependent check rejects with a retryable degradation
	// error rather than approving blind.
	for _, err := range val.Errors() {
		du, ok := err.(domain.RiskDataUnavailableError)
		require.True(t, ok, "unexpected violation type: %T", err)
		assert.True(t, du.Retryable())
	}
	// buying-power, position-size, concentration and margin degrade; the
	// LIMIT notional is computable locally so order-value still passes.
	assert.Len(t, val.Errors(), 4)
}

func TestMarketOrderValueNeedsMarkPrice(t *testing.T) {
	e, pf := newTestEngine(t)
	pf.SetUnavailable(true)

	req := limitOrder(100, 0)
	req.Type = domain.TypeMarket
	req.LimitPrice = decimal.Decimal{}
	val := e.CheckRisk(context.Background(), req, testAccount)
	require.False(t, val.OK())

	found := false
	for _, err := range val.Errors() {
		if du, ok := err.(domain.RiskDataUnavailableError); ok && du.Check == "order-value" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRiskMetrics(t *testing.T) {
	e, pf := newTestEngine(t)
	limits := testLimits()
	limits.MaxDailyTrades = 10
	e.UpdateLimits(limits)

	for i := 0; i < 8; i++ {
		e.Counter().Increment(testAccount)
	}

	m := e.RiskMetrics(context.Background(), testAccount)
	assert.Equal(t, int64(8), m.DailyTradesUsed)
	assert.InDelta(t, 80.0, m.DailyTradesPct, 0.01)
	assert.True(t, m.PortfolioAvailable)
	assert.True(t, e.ApproachingLimit(context.Background(), testAccount))

	pf.SetUnavailable(true)
	m = e.RiskMetrics(context.Background(), testAccount)
	assert.False(t, m.PortfolioAvailable)
}
