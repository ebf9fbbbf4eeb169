package risk

import (
	"context"

	"tradepipe/internal/gateway"
	"tradepipe/internal/pkg/circuit"
)

// Metrics is an advisory snapshot of how close an account sits to its
// limits. Percentages are of the configured maximum (100 = at the limit).
type Metrics struct {
	AccountID          string  `json:"account_id"`
	DailyTradesUsed    int64   `json:"daily_trades_used"`
	DailyTradesLimit   int64   `json:"daily_trades_limit"`
	DailyTradesPct     float64 `json:"daily_trades_pct"`
	MarginUsagePct     float64 `json:"margin_usage_pct"`
	MarginLimitPct     float64 `json:"margin_limit_pct"`
	PortfolioAvailable bool    `json:"portfolio_available"`
}

// approachingPct is the advisory warning threshold.
const approachingPct = 80.0

// RiskMetrics is a non-blocking advisory read: it reports what is known
// right now and marks portfolio-derived figures unavailable instead of
// waiting out a failing dependency.
func (e *Engine) RiskMetrics(ctx context.Context, accountID string) Metrics {
	limits := e.Limits()
	m := Metrics{
		AccountID:        accountID,
		DailyTradesUsed:  e.counter.Count(accountID),
		DailyTradesLimit: limits.MaxDailyTrades,
		MarginLimitPct:   limits.MaxMarginUsagePct,
	}
	if limits.MaxDailyTrades > 0 {
		m.DailyTradesPct = float64(m.DailyTradesUsed) / float64(limits.MaxDailyTrades) * 100
	}

	impact, err := circuit.Do(ctx, e.breaker, func(ctx context.Context) (gateway.ImpactAssessment, error) {
		return e.portfolio.CalculateImpact(ctx, accountID, nil)
	})
	if err == nil {
		m.PortfolioAvailable = true
		m.MarginUsagePct = impact.ProjectedMarginUsagePct
	}
	return m
}

// ApproachingLimit reports whether the account sits at or beyond 80% of any
// configured limit.
func (e *Engine) ApproachingLimit(ctx context.Context, accountID string) bool {
	m := e.RiskMetrics(ctx, accountID)
	if m.DailyTradesPct >= approachingPct {
		return true
	}
	if m.PortfolioAvailable && m.MarginLimitPct > 0 &&
		m.MarginUsagePct/m.MarginLimitPct*100 >= approachingPct {
		return true
	}
	return false
}
