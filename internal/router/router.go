// Package router picks the execution venue for a validated, risk-approved
// order. Scoring is deterministic; broker unavailability is absorbed by
// substituting the configured fallback broker and never terminates the
// pipeline.
package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tradepipe/internal/config"
	"tradepipe/internal/domain"
	"tradepipe/internal/gateway"
	"tradepipe/internal/logger"
	"tradepipe/internal/pkg/circuit"
)

// fallbackConfidence is the reduced confidence attached to a decision that
// had to substitute the fallback broker.
const fallbackConfidence = 0.7

type Router struct {
	cfg     config.RoutingConfig
	auth    gateway.BrokerAuthClient
	breaker *circuit.Breaker
}

func New(cfg config.RoutingConfig, auth gateway.BrokerAuthClient, breaker *circuit.Breaker) *Router {
	return &Router{cfg: cfg, auth: auth, breaker: breaker}
}

// Route scores the eligible brokers, tags the execution strategy and
// validates connectivity, substituting the fallback broker on failure.
// The only errors returned are hard failures: no eligible broker, order too
// large, or broken configuration.
func (r *Router) Route(ctx context.Context, order *domain.Order) (domain.RoutingDecision, error) {
	var zero domain.RoutingDecision

	if r.cfg.MaxSingleOrderQuantity <= 0 || r.cfg.LargeOrderThreshold <= 0 {
		return zero, domain.RouterConfigError{Reason: "order size thresholds not configured"}
	}
	if order.Quantity > r.cfg.MaxSingleOrderQuantity {
		return zero, domain.OrderTooLargeError{Quantity: order.Quantity, Max: r.cfg.MaxSingleOrderQuantity}
	}

	eligible := r.cfg.ExchangeBrokers[order.Exchange]
	if len(eligible) == 0 {
		return zero, domain.NoEligibleBrokerError{Exchange: order.Exchange}
	}

	broker, score := r.pickBroker(order, eligible)
	strategy := r.strategyFor(order)
	decision := domain.RoutingDecision{
		BrokerName:             broker,
		Venue:                  order.Exchange,
		Strategy:               strategy,
		Confidence:             score,
		Reason:                 fmt.Sprintf("scored %.3f on %s for %s order", score, order.Exchange, order.Type),
		EstimatedExecutionTime: estimateFor(strategy),
	}

	return r.validateConnectivity(ctx, order, decision)
}

// pickBroker runs the multi-factor score over the eligible brokers. Sorting
// by name first makes ties deterministic; the primary broker then wins any
// remaining tie.
func (r *Router) pickBroker(order *domain.Order, eligible []string) (string, float64) {
	candidates := append([]string(nil), eligible...)
	sort.Strings(candidates)

	bestBroker := ""
	bestScore := -1.0
	for _, broker := range candidates {
		score := r.score(order, broker)
		if score > bestScore || (score == bestScore && broker == r.cfg.PrimaryBroker) {
			bestBroker, bestScore = broker, score
		}
	}
	return bestBroker, bestScore
}

func (r *Router) score(order *domain.Order, broker string) float64 {
	base := 0.8
	if broker == r.cfg.PrimaryBroker {
		base = 1.0
	}
	return base * r.sizeFactor(order.Quantity) * typeFactor(order.Type) * exchangeFactor(order.Exchange)
}

func (r *Router) sizeFactor(quantity int64) float64 {
	switch {
	case quantity >= r.cfg.LargeOrderThreshold:
		return 0.7
	case quantity >= r.cfg.MediumOrderThreshold:
		return 0.9
	default:
		return 1.0
	}
}

func typeFactor(t domain.OrderType) float64 {
	switch t {
	case domain.TypeMarket:
		return 1.0
	case domain.TypeLimit:
		return 0.95
	default: // STOP family
		return 0.9
	}
}

func exchangeFactor(exchange string) float64 {
	switch exchange {
	case "NSE":
		return 1.0
	case "BSE":
		return 0.95
	case "MCX":
		return 0.9
	default:
		return 0.85
	}
}

func (r *Router) strategyFor(order *domain.Order) domain.ExecutionStrategy {
	switch {
	case order.Type.IsStopFamily():
		return domain.StrategyScheduled
	case order.Type == domain.TypeLimit && order.Quantity >= r.cfg.LargeOrderThreshold:
		return domain.StrategySliced
	default:
		return domain.StrategyImmediate
	}
}

func estimateFor(strategy domain.ExecutionStrategy) time.Duration {
	switch strategy {
	case domain.StrategySliced:
		return 15 * time.Minute
	case domain.StrategyScheduled:
		return time.Hour
	default:
		return 5 * time.Second
	}
}

// validateConnectivity verifies the chosen broker's session through the
// breaker. Any failure substitutes the fallback broker with reduced
// confidence; this path must never surface as a pipeline failure.
func (r *Router) validateConnectivity(ctx context.Context, order *domain.Order, decision domain.RoutingDecision) (domain.RoutingDecision, error) {
	usable, err := circuit.Do(ctx, r.breaker, func(ctx context.Context) (bool, error) {
		return r.auth.ValidateToken(ctx, decision.BrokerName)
	})
	if err == nil && usable {
		return decision, nil
	}
	if err == nil {
		err = fmt.Errorf("session for %s reported unusable", decision.BrokerName)
	}

	if decision.BrokerName == r.cfg.FallbackBroker {
		// Already on the fallback; hand the decision to the executor anyway
		// and let its breaker-guarded submission decide.
		logger.Warnf("router: fallback broker %s connectivity check failed, proceeding: %v", decision.BrokerName, err)
		return decision, nil
	}

	logger.Warnf("router: order %s broker %s unavailable, substituting fallback %s: %v",
		order.ID, decision.BrokerName, r.cfg.FallbackBroker, err)
	substituted := decision
	substituted.BrokerName = r.cfg.FallbackBroker
	substituted.Confidence = fallbackConfidence
	substituted.Reason = fmt.Sprintf("fallback to %s: primary choice %s unavailable (%v)",
		r.cfg.FallbackBroker, decision.BrokerName, err)
	return substituted, nil
}
