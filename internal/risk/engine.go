// Package risk runs the account and portfolio risk checks between validation
// and routing. Checks accumulate like the validator's: every limit is
// evaluated and every violation reported. Portfolio reads go through a
// circuit breaker; when risk data is unavailable the affected checks reject
// conservatively rather than approving blind.
package risk

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"tradepipe/internal/config"
	"tradepipe/internal/domain"
	"tradepipe/internal/gateway"
	"tradepipe/internal/logger"
	"tradepipe/internal/pkg/circuit"
	"tradepipe/internal/result"
)

// Validation is the risk engine's accumulating outcome type.
type Validation = result.Validation[*domain.OrderRequest, domain.RiskError]

// Limits is the immutable snapshot of configured risk limits. The engine
// swaps the snapshot atomically on config reload.
type Limits struct {
	MaxOrderValue        decimal.Decimal
	MaxDailyTrades       int64
	MaxConcentrationPct  float64
	MinBuyingPowerBuffer float64
	MaxMarginUsagePct    float64
}

// LimitsFromConfig converts the config section into a limit snapshot.
func LimitsFromConfig(rc config.RiskConfig) Limits {
	return Limits{
		MaxOrderValue:        decimal.NewFromFloat(rc.MaxOrderValue),
		MaxDailyTrades:       rc.MaxDailyTrades,
		MaxConcentrationPct:  rc.MaxConcentrationPct,
		MinBuyingPowerBuffer: rc.MinBuyingPowerBuffer,
		MaxMarginUsagePct:    rc.MaxMarginUsagePct,
	}
}

type Engine struct {
	portfolio gateway.PortfolioClient
	breaker   *circuit.Breaker
	counter   *DailyCounter
	limits    atomic.Pointer[Limits]
}

func NewEngine(portfolio gateway.PortfolioClient, breaker *circuit.Breaker, counter *DailyCounter, limits Limits) *Engine {
	e := &Engine{
		portfolio: portfolio,
		breaker:   breaker,
		counter:   counter,
	}
	e.limits.Store(&limits)
	return e
}

// UpdateLimits swaps in a new limit snapshot; in-flight checks keep the one
// they started with.
func (e *Engine) UpdateLimits(limits Limits) {
	e.limits.Store(&limits)
	logger.Infof("risk limits updated: max_order_value=%s max_daily_trades=%d concentration=%.1f%% margin=%.1f%%",
		limits.MaxOrderValue, limits.MaxDailyTrades, limits.MaxConcentrationPct, limits.MaxMarginUsagePct)
}

// Limits returns the current snapshot.
func (e *Engine) Limits() Limits { return *e.limits.Load() }

// Counter exposes the daily counter for scheduler pruning.
func (e *Engine) Counter() *DailyCounter { return e.counter }

// CheckRisk evaluates every risk limit for the request and returns the full
// violation list. Any non-empty list is a hard rejection.
func (e *Engine) CheckRisk(ctx context.Context, req *domain.OrderRequest, accountID string) Validation {
	limits := e.Limits()
	val := result.Of[*domain.OrderRequest, domain.RiskError](req)

	// Portfolio reads happen once; each dependent check degrades on its own
	// if the data is missing.
	impact, impactErr := circuit.Do(ctx, e.breaker, func(ctx context.Context) (gateway.ImpactAssessment, error) {
		return e.portfolio.CalculateImpact(ctx, accountID, req)
	})
	posRisk, posErr := circuit.Do(ctx, e.breaker, func(ctx context.Context) (gateway.PositionRisk, error) {
		return e.portfolio.GetPositionRisk(ctx, accountID, req.Symbol)
	})

	val = val.Add(e.checkOrderValue(req, limits, impact, impactErr)...)
	val = val.Add(e.checkDailyTrades(accountID, limits)...)
	val = val.Add(e.checkBuyingPower(req, limits, impact, impactErr)...)
	val = val.Add(e.checkPositionSize(req, posRisk, posErr)...)
	val = val.Add(e.checkConcentration(req, limits, impact, impactErr)...)
	val = val.Add(e.checkMarginUsage(limits, impact, impactErr)...)
	return val
}

func (e *Engine) checkOrderValue(req *domain.OrderRequest, limits Limits, impact gateway.ImpactAssessment, impactErr error) []domain.RiskError {
	if req.Type == domain.TypeMarket && impactErr != nil {
		// No mark price to compute a MARKET notional against.
		return []domain.RiskError{domain.RiskDataUnavailableError{Check: "order-value", Cause: impactErr}}
	}
	notional := req.Notional(impact.MarkPrice)
	if notional.GreaterThan(limits.MaxOrderValue) {
		return []domain.RiskError{domain.OrderValueLimitError{Notional: notional, Limit: limits.MaxOrderValue}}
	}
	return nil
}

// checkDailyTrades reserves a slot via atomic increment so two concurrent
// placements for one account cannot both sneak under the limit. A placement
// rejected by this very check gives its slot back; slots consumed by
// placements that later fail other checks stay consumed (the attempt
// counted).
func (e *Engine) checkDailyTrades(accountID string, limits Limits) []domain.RiskError {
	count := e.counter.Increment(accountID)
	if count > limits.MaxDailyTrades {
		e.counter.Release(accountID)
		return []domain.RiskError{domain.DailyTradeLimitError{Count: count, Limit: limits.MaxDailyTrades}}
	}
	return nil
}

func (e *Engine) checkBuyingPower(req *domain.OrderRequest, limits Limits, impact gateway.ImpactAssessment, impactErr error) []domain.RiskError {
	if req.Side != domain.SideBuy {
		return nil
	}
	if impactErr != nil {
		return []domain.RiskError{domain.RiskDataUnavailableError{Check: "buying-power", Cause: impactErr}}
	}
	buffer := decimal.NewFromFloat(1 + limits.MinBuyingPowerBuffer)
	required := impact.RequiredFunds.Mul(buffer)
	if required.GreaterThan(impact.AvailableFunds) {
		return []domain.RiskError{domain.InsufficientBuyingPowerError{Required: required, Available: impact.AvailableFunds}}
	}
	return nil
}

func (e *Engine) checkPositionSize(req *domain.OrderRequest, posRisk gateway.PositionRisk, posErr error) []domain.RiskError {
	if posErr != nil {
		return []domain.RiskError{domain.RiskDataUnavailableError{Check: "position-size", Cause: posErr}}
	}
	if posRisk.PositionLimit <= 0 {
		return nil
	}
	projected := posRisk.CurrentQuantity
	if req.Side == domain.SideBuy {
		projected += req.Quantity
	} else {
		projected -= req.Quantity
	}
	if projected < 0 {
		projected = -projected
	}
	if projected > posRisk.PositionLimit {
		return []domain.RiskError{domain.PositionSizeLimitError{Symbol: req.Symbol, Projected: projected, Limit: posRisk.PositionLimit}}
	}
	return nil
}

func (e *Engine) checkConcentration(req *domain.OrderRequest, limits Limits, impact gateway.ImpactAssessment, impactErr error) []domain.RiskError {
	if impactErr != nil {
		// Worst case assumed: without portfolio data the position could be
		// arbitrarily concentrated.
		return []domain.RiskError{domain.RiskDataUnavailableError{Check: "concentration", Cause: impactErr}}
	}
	if impact.ProjectedConcentrationPct > limits.MaxConcentrationPct {
		return []domain.RiskError{domain.ConcentrationRiskError{
			Symbol:        req.Symbol,
			ProjectedPct:  impact.ProjectedConcentrationPct,
			MaxAllowedPct: limits.MaxConcentrationPct,
		}}
	}
	return nil
}

func (e *Engine) checkMarginUsage(limits Limits, impact gateway.ImpactAssessment, impactErr error) []domain.RiskError {
	if impactErr != nil {
		return []domain.RiskError{domain.RiskDataUnavailableError{Check: "margin-usage", Cause: impactErr}}
	}
	if impact.ProjectedMarginUsagePct > limits.MaxMarginUsagePct {
		return []domain.RiskError{domain.MarginUsageError{UsagePct: impact.ProjectedMarginUsagePct, MaxPct: limits.MaxMarginUsagePct}}
	}
	return nil
}
