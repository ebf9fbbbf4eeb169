// Package executor submits routed orders to their broker with at-most-once
// semantics, polls non-terminal acknowledgements to completion, applies the
// partial-fill acceptance policy and handles cancellation. Every broker call
// runs under the broker circuit breaker with a bounded timeout.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradepipe/internal/config"
	"tradepipe/internal/domain"
	"tradepipe/internal/gateway"
	"tradepipe/internal/logger"
	"tradepipe/internal/pkg/circuit"
)

type Executor struct {
	auth    gateway.BrokerAuthClient
	breaker *circuit.Breaker
	idem    *idempotencyTracker
	cfg     config.ExecutionConfig

	// sleepFn is swapped in tests to skip real poll waits.
	sleepFn func(ctx context.Context, d time.Duration) error
}

func New(auth gateway.BrokerAuthClient, breaker *circuit.Breaker, cfg config.ExecutionConfig) *Executor {
	return &Executor{
		auth:    auth,
		breaker: breaker,
		idem:    newIdempotencyTracker(),
		cfg:     cfg,
		sleepFn: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute submits the order per the routing decision and tracks it to a
// bounded outcome. A duplicate call for the same order identity returns the
// first call's recorded outcome instead of re-submitting.
func (e *Executor) Execute(ctx context.Context, order *domain.Order, decision domain.RoutingDecision) (domain.ExecutionResult, error) {
	res, err, replayed := e.idem.Execute(order.ID, func() (domain.ExecutionResult, error) {
		return e.executeOnce(ctx, order, decision)
	})
	if replayed {
		logger.Infof("executor: order %s replayed recorded outcome (status=%s)", order.ID, res.Status)
	}
	return res, err
}

func (e *Executor) executeOnce(ctx context.Context, order *domain.Order, decision domain.RoutingDecision) (domain.ExecutionResult, error) {
	conn, err := circuit.Do(ctx, e.breaker, func(ctx context.Context) (gateway.BrokerConn, error) {
		return e.auth.GetConnection(ctx, decision.BrokerName)
	})
	if err != nil {
		return domain.ExecutionResult{}, domain.BrokerAPIError{Broker: decision.BrokerName, Op: "connect", Cause: err}
	}

	ack, err := e.submit(ctx, conn, order)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	if ack.Rejected {
		return domain.ExecutionResult{}, domain.OrderRejectedError{Broker: decision.BrokerName, Reason: ack.RejectReason}
	}

	state := gateway.BrokerOrderState{
		Status:         ack.Status,
		FilledQuantity: ack.FilledQuantity,
		Fills:          ack.Fills,
		Commission:     ack.Commission,
	}
	exhausted := false
	if !ack.Status.Terminal() {
		state, exhausted, err = e.poll(ctx, conn, ack.BrokerOrderID, state)
		if err != nil {
			return domain.ExecutionResult{}, err
		}
	}
	return e.buildResult(order, ack.BrokerOrderID, state, exhausted), nil
}

func (e *Executor) submit(ctx context.Context, conn gateway.BrokerConn, order *domain.Order) (gateway.BrokerAck, error) {
	submitCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
	defer cancel()
	started := time.Now()
	ack, err := circuit.Do(submitCtx, e.breaker, func(ctx context.Context) (gateway.BrokerAck, error) {
		return conn.SubmitOrder(ctx, order)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return gateway.BrokerAck{}, domain.TimeoutError{Op: "submit", Elapsed: time.Since(started)}
		}
		return gateway.BrokerAck{}, domain.BrokerAPIError{Broker: conn.Broker(), Op: "submit", Cause: err}
	}
	return ack, nil
}

// poll tracks a non-terminal order at a fixed interval up to the configured
// budget. Poll failures are absorbed (the breaker has already counted
// them); the loop continues with the last known state. Only caller
// cancellation aborts early.
func (e *Executor) poll(ctx context.Context, conn gateway.BrokerConn, brokerOrderID string, last gateway.BrokerOrderState) (gateway.BrokerOrderState, bool, error) {
	for i := 0; i < e.cfg.MaxPolls; i++ {
		if err := e.sleepFn(ctx, e.cfg.PollInterval()); err != nil {
			return last, false, domain.TimeoutError{Op: "status-poll", Elapsed: time.Duration(i) * e.cfg.PollInterval()}
		}
		pollCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
		state, err := circuit.Do(pollCtx, e.breaker, func(ctx context.Context) (gateway.BrokerOrderState, error) {
			return conn.GetOrderStatus(ctx, brokerOrderID)
		})
		cancel()
		if err != nil {
			logger.Warnf("executor: status poll %d for %s failed: %v", i+1, brokerOrderID, err)
			continue
		}
		// Fill counts only move forward; ignore stale snapshots.
		if state.FilledQuantity >= last.FilledQuantity {
			last = state
		}
		if last.Status.Terminal() {
			return last, false, nil
		}
	}
	return last, true, nil
}

// buildResult applies the partial-fill acceptance policy and the
// reconciliation flag to the final broker state.
func (e *Executor) buildResult(order *domain.Order, brokerOrderID string, state gateway.BrokerOrderState, pollExhausted bool) domain.ExecutionResult {
	res := domain.ExecutionResult{
		Status:           state.Status,
		FilledQuantity:   state.FilledQuantity,
		Fills:            state.Fills,
		TotalCommission:  state.Commission,
		BrokerOrderID:    brokerOrderID,
		AverageFillPrice: domain.AvgPriceFromFills(state.Fills),
	}

	if res.FilledQuantity >= order.Quantity {
		res.Status = domain.StatusFilled
		return res
	}
	if res.FilledQuantity > 0 {
		res.Status = domain.StatusPartiallyFilled
		fillPct := float64(res.FilledQuantity) / float64(order.Quantity) * 100
		if fillPct < e.cfg.PartialFillAcceptPct {
			res.FollowUpRequired = true
			res.FollowUpReason = fmt.Sprintf("fill %.1f%% below acceptance threshold %.1f%%", fillPct, e.cfg.PartialFillAcceptPct)
		}
	}
	if pollExhausted {
		res.FollowUpRequired = true
		if res.FollowUpReason != "" {
			res.FollowUpReason += "; "
		}
		res.FollowUpReason += fmt.Sprintf("poll budget exhausted after %d polls, last status %s needs reconciliation",
			e.cfg.MaxPolls, state.Status)
	}
	return res
}

// Cancel asks the broker to cancel a working order. An already-filled order
// yields a typed no-op result, not an error.
func (e *Executor) Cancel(ctx context.Context, order *domain.Order) (domain.CancellationResult, error) {
	if order.Status == domain.StatusFilled {
		return domain.CancellationResult{
			OrderID:        order.ID,
			Cancelled:      false,
			Reason:         "order already filled",
			FilledQuantity: order.FilledQuantity,
		}, nil
	}
	if order.BrokerOrderID == "" {
		// Never reached the broker; nothing to cancel remotely.
		return domain.CancellationResult{OrderID: order.ID, Cancelled: true, Reason: "order not yet submitted"}, nil
	}

	conn, err := circuit.Do(ctx, e.breaker, func(ctx context.Context) (gateway.BrokerConn, error) {
		return e.auth.GetConnection(ctx, order.BrokerName)
	})
	if err != nil {
		return domain.CancellationResult{}, domain.BrokerAPIError{Broker: order.BrokerName, Op: "connect", Cause: err}
	}

	cancelCtx, cancelFn := context.WithTimeout(ctx, e.cfg.Timeout())
	defer cancelFn()
	ack, err := circuit.Do(cancelCtx, e.breaker, func(ctx context.Context) (gateway.BrokerCancelAck, error) {
		return conn.CancelOrder(ctx, order.BrokerOrderID)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.CancellationResult{}, domain.TimeoutError{Op: "cancel", Elapsed: e.cfg.Timeout()}
		}
		return domain.CancellationResult{}, domain.BrokerAPIError{Broker: order.BrokerName, Op: "cancel", Cause: err}
	}
	return domain.CancellationResult{
		OrderID:        order.ID,
		Cancelled:      ack.Cancelled,
		Reason:         ack.Reason,
		FilledQuantity: ack.FilledQuantity,
	}, nil
}

// RecordedOutcome exposes the idempotency record for an order, if present.
func (e *Executor) RecordedOutcome(orderID string) (domain.IdempotencyRecord, bool) {
	return e.idem.Lookup(orderID)
}
