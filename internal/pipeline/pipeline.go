// Package pipeline orchestrates the four processing stages for one order:
// validation, risk check, routing and execution. Stages run strictly in
// order for a given placement; the first hard failure short-circuits the
// rest. Each placement is an independent goroutine from the caller's point
// of view; the only shared state lives inside the risk counter and the
// executor's idempotency table.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradepipe/internal/domain"
	"tradepipe/internal/executor"
	"tradepipe/internal/gateway"
	"tradepipe/internal/logger"
	"tradepipe/internal/risk"
	"tradepipe/internal/router"
	"tradepipe/internal/validator"
)

// Stage names the pipeline step a failure came from.
type Stage string

const (
	StageValidation  Stage = "validation"
	StageRisk        Stage = "risk"
	StageRouting     Stage = "routing"
	StageExecution   Stage = "execution"
	StagePersistence Stage = "persistence"
)

// Error is the typed pipeline failure handed to callers: the stage that
// failed plus the complete error list for that stage. Accumulating stages
// (validation, risk) carry every violation; short-circuiting stages carry
// one.
type Error struct {
	Stage   Stage
	OrderID string
	Errs    []error
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Stage, strings.Join(msgs, "; "))
}

func (e *Error) Unwrap() []error { return e.Errs }

func stageError(stage Stage, orderID string, errs ...error) *Error {
	return &Error{Stage: stage, OrderID: orderID, Errs: errs}
}

// AccountContext identifies the caller on whose behalf an order runs.
type AccountContext struct {
	AccountID string
	UserID    string
}

// OrderOutcome is the successful result of a placement.
type OrderOutcome struct {
	Order    *domain.Order
	Decision domain.RoutingDecision
	Result   domain.ExecutionResult
}

type Pipeline struct {
	validator *validator.Validator
	risk      *risk.Engine
	router    *router.Router
	executor  *executor.Executor
	store     gateway.OrderStore
}

func New(v *validator.Validator, r *risk.Engine, rt *router.Router, ex *executor.Executor, store gateway.OrderStore) *Pipeline {
	return &Pipeline{validator: v, risk: r, router: rt, executor: ex, store: store}
}

// PlaceOrder runs the full pipeline for one request. The caller always gets
// either an OrderOutcome or a *Error naming the failed stage with its full
// error list.
func (p *Pipeline) PlaceOrder(ctx context.Context, req *domain.OrderRequest, acct AccountContext) (*OrderOutcome, error) {
	// Stage 1: validation. Pure, accumulate-all; nothing is persisted for a
	// request that never became a valid order.
	if val := p.validator.Validate(req, acct.AccountID); !val.OK() {
		return nil, stageError(StageValidation, "", val.ErrorList()...)
	}

	order := domain.NewOrder(req, acct.AccountID, acct.UserID)
	if err := p.store.Save(ctx, order); err != nil {
		return nil, stageError(StagePersistence, order.ID, err)
	}
	logger.Infof("pipeline: order %s accepted for %s %d %s on %s", order.ID, order.Side, order.Quantity, order.Symbol, order.Exchange)

	// Stage 2: risk. Accumulate-all; any violation is a hard rejection.
	if val := p.risk.CheckRisk(ctx, req, acct.AccountID); !val.OK() {
		p.reject(ctx, order, joinReasons(val.ErrorList()))
		return nil, stageError(StageRisk, order.ID, val.ErrorList()...)
	}

	// Stage 3: routing. Short-circuiting; broker unavailability has already
	// been absorbed inside the router.
	decision, err := p.router.Route(ctx, order)
	if err != nil {
		p.reject(ctx, order, err.Error())
		return nil, stageError(StageRouting, order.ID, err)
	}
	order.BrokerName = decision.BrokerName
	p.transition(ctx, order, domain.StatusAcknowledged, "routed to "+decision.BrokerName)

	// Stage 4: execution.
	res, err := p.executor.Execute(ctx, order, decision)
	if err != nil {
		p.failExecution(ctx, order, err)
		return nil, stageError(StageExecution, order.ID, err)
	}
	p.applyResult(ctx, order, res)

	return &OrderOutcome{Order: order, Decision: decision, Result: res.Snapshot()}, nil
}

// ModifyOrder re-validates and re-risk-checks the merged order, then applies
// the changes. Orders already working at a broker are cancelled and
// re-submitted under a fresh identity; the idempotency guarantee is per
// submission identity.
func (p *Pipeline) ModifyOrder(ctx context.Context, orderID string, changes *domain.OrderRequest, acct AccountContext) (*OrderOutcome, error) {
	order, err := p.store.Load(ctx, orderID)
	if err != nil {
		return nil, stageError(StagePersistence, orderID, err)
	}
	if val := p.validator.ValidateModification(order, changes, acct.AccountID); !val.OK() {
		return nil, stageError(StageValidation, orderID, val.ErrorList()...)
	}
	merged := mergeRequest(order, changes)
	if val := p.risk.CheckRisk(ctx, merged, acct.AccountID); !val.OK() {
		return nil, stageError(StageRisk, orderID, val.ErrorList()...)
	}

	if order.BrokerOrderID != "" && !order.Status.Terminal() {
		cres, err := p.executor.Cancel(ctx, order)
		if err != nil {
			return nil, stageError(StageExecution, orderID, err)
		}
		if !cres.Cancelled {
			return nil, stageError(StageExecution, orderID,
				domain.OrderRejectedError{Broker: order.BrokerName, Reason: "modification impossible: " + cres.Reason})
		}
		p.transition(ctx, order, domain.StatusCancelled, "cancelled for modification")
	} else if !order.Status.Terminal() {
		p.transition(ctx, order, domain.StatusCancelled, "superseded by modification")
	}

	// Fresh placement under a new identity carrying the merged fields.
	outcome, err := p.PlaceOrder(ctx, merged, acct)
	if err != nil {
		return nil, err
	}
	logger.Infof("pipeline: order %s modified, replacement order %s", orderID, outcome.Order.ID)
	return outcome, nil
}

// CancelOrder cancels a working order and persists the terminal state.
func (p *Pipeline) CancelOrder(ctx context.Context, orderID string) (domain.CancellationResult, error) {
	order, err := p.store.Load(ctx, orderID)
	if err != nil {
		return domain.CancellationResult{}, stageError(StagePersistence, orderID, err)
	}
	if order.Status.Terminal() {
		return domain.CancellationResult{
			OrderID:        orderID,
			Cancelled:      false,
			Reason:         "order already in terminal status " + string(order.Status),
			FilledQuantity: order.FilledQuantity,
		}, nil
	}
	res, err := p.executor.Cancel(ctx, order)
	if err != nil {
		return domain.CancellationResult{}, stageError(StageExecution, orderID, err)
	}
	if res.Cancelled {
		order.RecordFill(res.FilledQuantity)
		p.transition(ctx, order, domain.StatusCancelled, "cancelled by client")
	}
	return res, nil
}

// Order loads an order for read-only callers such as the ops surface.
func (p *Pipeline) Order(ctx context.Context, orderID string) (*domain.Order, error) {
	return p.store.Load(ctx, orderID)
}

func mergeRequest(order *domain.Order, changes *domain.OrderRequest) *domain.OrderRequest {
	merged := order.Request()
	if changes.Quantity != 0 {
		merged.Quantity = changes.Quantity
	}
	if !changes.LimitPrice.IsZero() {
		merged.LimitPrice = changes.LimitPrice
	}
	if !changes.StopPrice.IsZero() {
		merged.StopPrice = changes.StopPrice
	}
	if changes.TimeInForce != "" {
		merged.TimeInForce = changes.TimeInForce
	}
	if !changes.ExpiryDate.IsZero() {
		merged.ExpiryDate = changes.ExpiryDate
	}
	if changes.Type != "" {
		merged.Type = changes.Type
	}
	return merged
}

func (p *Pipeline) applyResult(ctx context.Context, order *domain.Order, res domain.ExecutionResult) {
	order.BrokerOrderID = res.BrokerOrderID
	order.RecordFill(res.FilledQuantity)
	if res.Status != order.Status && domain.CanTransition(order.Status, res.Status) {
		p.transition(ctx, order, res.Status, "execution result")
		return
	}
	if err := p.store.Save(ctx, order); err != nil {
		logger.Errorf("pipeline: persisting order %s after execution failed: %v", order.ID, err)
	}
}

func (p *Pipeline) failExecution(ctx context.Context, order *domain.Order, execErr error) {
	var target domain.OrderStatus
	switch execErr.(type) {
	case domain.OrderRejectedError:
		// Broker said no; the order is done.
		target = domain.StatusCancelled
	default:
		// Retryable or unknown infra failures leave the order ACKNOWLEDGED
		// for reconciliation; only note the failure.
		order.RejectionReason = execErr.Error()
		if err := p.store.Save(ctx, order); err != nil {
			logger.Errorf("pipeline: persisting order %s after execution failure failed: %v", order.ID, err)
		}
		return
	}
	order.RejectionReason = execErr.Error()
	p.transition(ctx, order, target, execErr.Error())
}

func (p *Pipeline) reject(ctx context.Context, order *domain.Order, reason string) {
	order.RejectionReason = reason
	p.transition(ctx, order, domain.StatusRejected, reason)
}

// transition applies a status change, persists it, and appends to the audit
// trail. Persistence failures are logged, not propagated: the in-memory
// state machine already advanced and the caller's outcome is decided.
func (p *Pipeline) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus, note string) {
	from := order.Status
	if err := order.Transition(to); err != nil {
		logger.Errorf("pipeline: %v", err)
		return
	}
	if err := p.store.Save(ctx, order); err != nil {
		logger.Errorf("pipeline: persisting order %s failed: %v", order.ID, err)
	}
	if err := p.store.LogTransition(ctx, order.ID, from, to, note, time.Now().UTC()); err != nil {
		logger.Warnf("pipeline: audit log for order %s failed: %v", order.ID, err)
	}
}

func joinReasons(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
