package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepipe/internal/config"
	"tradepipe/internal/domain"
	"tradepipe/internal/executor"
	"tradepipe/internal/gateway/sim"
	"tradepipe/internal/pkg/circuit"
	"tradepipe/internal/risk"
	"tradepipe/internal/router"
	"tradepipe/internal/store/memstore"
	"tradepipe/internal/validator"
)

const testAccount = "ACC-1"

type harness struct {
	pipeline  *Pipeline
	portfolio *sim.Portfolio
	primary   *sim.Broker
	fallback  *sim.Broker
	store     *memstore.Store
	engine    *risk.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Execution.PollIntervalMillis = 1
	cfg.Execution.MaxPolls = 5

	tick := decimal.NewFromFloat(0.05)
	dir := validator.NewStaticDirectory([]validator.Instrument{
		{Symbol: "RELIANCE", Exchange: "NSE", Tradeable: true, LotSize: 1, TickSize: tick, MinQuantity: 1, MaxQuantity: 100000},
		{Symbol: "TCS", Exchange: "NSE", Tradeable: true, LotSize: 1, TickSize: tick, MinQuantity: 1, MaxQuantity: 100000},
	})
	val := validator.New(dir, validator.AllowAll{})

	pf := sim.NewPortfolio()
	pf.SeedAccount(testAccount, sim.AccountState{
		AvailableFunds: decimal.NewFromInt(50_000_000),
		PortfolioValue: decimal.NewFromInt(500_000_000),
		Positions:      map[string]int64{},
		PositionLimit:  100_000,
		MarginUsagePct: 20.0,
	})
	pf.SetMarkPrice("RELIANCE", decimal.NewFromInt(2500))
	pf.SetMarkPrice("TCS", decimal.NewFromInt(3500))

	primary := sim.NewBroker(cfg.Routing.PrimaryBroker)
	primary.SetPrice(decimal.NewFromInt(2500))
	fallback := sim.NewBroker(cfg.Routing.FallbackBroker)
	fallback.SetPrice(decimal.NewFromInt(2500))
	net := sim.NewBrokerNet(primary, fallback)

	breakerCfg := circuit.Config{FailureThreshold: 100, Window: time.Minute, Cooldown: time.Second}
	engine := risk.NewEngine(pf, circuit.NewBreaker("portfolio", breakerCfg), risk.NewDailyCounter(time.UTC), risk.LimitsFromConfig(cfg.Risk))
	rt := router.New(cfg.Routing, net, circuit.NewBreaker("broker-auth", breakerCfg))
	ex := executor.New(net, circuit.NewBreaker("broker-exec", breakerCfg), cfg.Execution)
	store := memstore.New()

	return &harness{
		pipeline:  New(val, engine, rt, ex, store),
		portfolio: pf,
		primary:   primary,
		fallback:  fallback,
		store:     store,
		engine:    engine,
	}
}

func marketBuy(qty int64) *domain.OrderRequest {
	return &domain.OrderRequest{
		Symbol:      "RELIANCE",
		Exchange:    "NSE",
		Side:        domain.SideBuy,
		Type:        domain.TypeMarket,
		Quantity:    qty,
		TimeInForce: domain.TIFDay,
	}
}

func limitBuy(qty int64, price int64) *domain.OrderRequest {
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

func acct() AccountContext { return AccountContext{AccountID: testAccount, UserID: "USR-1"} }

func TestPlaceOrderHappyPath(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.pipeline.PlaceOrder(context.Background(), marketBuy(100), acct())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFilled, outcome.Order.Status)
	assert.Equal(t, int64(100), outcome.Order.FilledQuantity)
	assert.Equal(t, "zerodha", outcome.Order.BrokerName)
	assert.NotEmpty(t, outcome.Order.BrokerOrderID)
	assert.Equal(t, domain.StrategyImmediate, outcome.Decision.Strategy)
	assert.True(t, outcome.Result.AverageFillPrice.Equal(decimal.NewFromInt(2500)))

	stored, err := h.store.Load(context.Background(), outcome.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFilled, stored.Status)

	// PENDING -> ACKNOWLEDGED -> FILLED leaves two audit rows.
	assert.Equal(t, 2, h.store.TransitionCount(outcome.Order.ID))
}

func TestPlaceOrderValidationRejectsWithoutPersisting(t *testing.T) {
	h := newHarness(t)

	req := marketBuy(-5)
	req.LimitPrice = decimal.NewFromInt(2500)

	_, err := h.pipeline.PlaceOrder(context.Background(), req, acct())
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, StageValidation, pErr.Stage)
	assert.Empty(t, pErr.OrderID, "invalid requests never become orders")
	assert.GreaterOrEqual(t, len(pErr.Errs), 2, "quantity and stray limit price both reported")

	// A validation reject consumes no daily trade slot.
	assert.Equal(t, int64(0), h.engine.Counter().Count(testAccount))
}

func TestPlaceOrderRiskRejectionPersistsRejected(t *testing.T) {
	h := newHarness(t)

	// 6000 x 2000 = 12,000,000 against the 10,000,000 default cap.
	_, err := h.pipeline.PlaceOrder(context.Background(), limitBuy(6000, 2000), acct())
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, StageRisk, pErr.Stage)
	require.NotEmpty(t, pErr.OrderID)

	var ove domain.OrderValueLimitError
	require.ErrorAs(t, err, &ove)
	assert.True(t, ove.Notional.Equal(decimal.NewFromInt(12_000_000)))

	stored, loadErr := h.store.Load(context.Background(), pErr.OrderID)
	require.NoError(t, loadErr)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.NotEmpty(t, stored.RejectionReason)
	assert.Empty(t, stored.BrokerOrderID, "rejected orders never reach a broker")
}

func TestPlaceOrderFallbackRouting(t *testing.T) {
	h := newHarness(t)
	h.primary.SetDown(true)

	outcome, err := h.pipeline.PlaceOrder(context.Background(), marketBuy(100), acct())
	require.NoError(t, err, "primary outage must not fail the pipeline")

	assert.Equal(t, "upstox", outcome.Order.BrokerName)
	assert.Equal(t, domain.StatusFilled, outcome.Order.Status)
	assert.InDelta(t, 0.7, outcome.Decision.Confidence, 1e-9)
	assert.Contains(t, outcome.Decision.Reason, "fallback")
	assert.Equal(t, 0, h.primary.SubmitCount())
	assert.Equal(t, 1, h.fallback.SubmitCount())
}

func TestPlaceOrderPartialFillNeedsFollowUp(t *testing.T) {
	h := newHarness(t)
	h.primary.SetFill(0.6, 1)

	outcome, err := h.pipeline.PlaceOrder(context.Background(), marketBuy(1000), acct())
	require.NoError(t, err, "a 60%% fill is a successful partial execution")

	assert.Equal(t, domain.StatusPartiallyFilled, outcome.Order.Status)
	assert.Equal(t, int64(600), outcome.Order.FilledQuantity)
	assert.Equal(t, int64(400), outcome.Order.Remaining())
	assert.True(t, outcome.Result.FollowUpRequired)

	stored, err := h.store.Load(context.Background(), outcome.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallyFilled, stored.Status)
}

func TestPlaceOrderBrokerRejectionCancels(t *testing.T) {
	h := newHarness(t)
	h.primary.SetReject("RMS: margin exceeded")

	_, err := h.pipeline.PlaceOrder(context.Background(), marketBuy(100), acct())
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, StageExecution, pErr.Stage)
	var rej domain.OrderRejectedError
	require.ErrorAs(t, err, &rej)

	stored, loadErr := h.store.Load(context.Background(), pErr.OrderID)
	require.NoError(t, loadErr)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Contains(t, stored.RejectionReason, "RMS: margin exceeded")
}

func TestPlaceOrderInfraFailureLeavesAcknowledged(t *testing.T) {
	h := newHarness(t)

	// Routing substitutes the fallback without re-probing it, so downing
	// both brokers makes the failure land at submission time.
	h.primary.SetDown(true)
	h.fallback.SetDown(true)

	_, err := h.pipeline.PlaceOrder(context.Background(), marketBuy(100), acct())
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, StageExecution, pErr.Stage)
	var apiErr domain.BrokerAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Retryable())

	stored, loadErr := h.store.Load(context.Background(), pErr.OrderID)
	require.NoError(t, loadErr)
	assert.Equal(t, domain.StatusAcknowledged, stored.Status, "retryable failures keep the order open for reconciliation")
	assert.NotEmpty(t, stored.RejectionReason)
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)

	t.Run("working partial cancels and keeps fills", func(t *testing.T) {
		h.primary.SetFill(0.3, 1)
		outcome, err := h.pipeline.PlaceOrder(context.Background(), marketBuy(1000), acct())
		require.NoError(t, err)
		require.Equal(t, domain.StatusPartiallyFilled, outcome.Order.Status)

		res, err := h.pipeline.CancelOrder(context.Background(), outcome.Order.ID)
		require.NoError(t, err)
		assert.True(t, res.Cancelled)

		stored, err := h.store.Load(context.Background(), outcome.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, stored.Status)
		assert.Equal(t, int64(300), stored.FilledQuantity)
	})

	t.Run("terminal order is a typed no-op", func(t *testing.T) {
		h.primary.SetFill(1.0, 0)
		outcome, err := h.pipeline.PlaceOrder(context.Background(), marketBuy(100), acct())
		require.NoError(t, err)
		require.Equal(t, domain.StatusFilled, outcome.Order.Status)

		res, err := h.pipeline.CancelOrder(context.Background(), outcome.Order.ID)
		require.NoError(t, err)
		assert.False(t, res.Cancelled)
		assert.Contains(t, res.Reason, "terminal")
	})

	t.Run("unknown order surfaces persistence error", func(t *testing.T) {
		_, err := h.pipeline.CancelOrder(context.Background(), "no-such-order")
		var pErr *Error
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, StagePersistence, pErr.Stage)
	})
}

func TestModifyOrder(t *testing.T) {
	h := newHarness(t)

	t.Run("cancel and replace under a fresh identity", func(t *testing.T) {
		h.primary.SetFill(0.3, 1)
		placed, err := h.pipeline.PlaceOrder(context.Background(), limitBuy(1000, 2500), acct())
		require.NoError(t, err)
		require.Equal(t, domain.StatusPartiallyFilled, placed.Order.Status)

		h.primary.SetFill(1.0, 0)
		modified, err := h.pipeline.ModifyOrder(context.Background(), placed.Order.ID,
			&domain.OrderRequest{LimitPrice: decimal.NewFromInt(2600)}, acct())
		require.NoError(t, err)

		assert.NotEqual(t, placed.Order.ID, modified.Order.ID)
		assert.True(t, modified.Order.LimitPrice.Equal(decimal.NewFromInt(2600)))
		assert.Equal(t, int64(1000), modified.Order.Quantity)

		original, err := h.store.Load(context.Background(), placed.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, original.Status)
	})

	t.Run("side change rejected in validation", func(t *testing.T) {
		placed, err := h.pipeline.PlaceOrder(context.Background(), limitBuy(100, 2500), acct())
		require.NoError(t, err)

		_, err = h.pipeline.ModifyOrder(context.Background(), placed.Order.ID,
			&domain.OrderRequest{Side: domain.SideSell}, acct())
		var pErr *Error
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, StageValidation, pErr.Stage)
	})
}

func TestConcurrentPlacementsShareTheDailyCounter(t *testing.T) {
	h := newHarness(t)
	limits := h.engine.Limits()
	limits.MaxDailyTrades = 3
	h.engine.UpdateLimits(limits)

	accepted := 0
	for i := 0; i < 5; i++ {
		if _, err := h.pipeline.PlaceOrder(context.Background(), marketBuy(10), acct()); err == nil {
			accepted++
		}
	}
	assert.Equal(t, 3, accepted)
	assert.Equal(t, int64(3), h.engine.Counter().Count(testAccount))
}
