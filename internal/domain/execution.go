package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionStrategy tags how the executor (or a downstream slicer) should
// work the order. SLICED orders are tagged here but sliced by a downstream
// collaborator.
type ExecutionStrategy string

const (
	StrategyImmediate ExecutionStrategy = "IMMEDIATE"
	StrategySliced    ExecutionStrategy = "SLICED"
	StrategyScheduled ExecutionStrategy = "SCHEDULED"
)

// RoutingDecision is produced once by the router and never mutated.
type RoutingDecision struct {
	BrokerName             string
	Venue                  string
	Strategy               ExecutionStrategy
	Confidence             float64
	Reason                 string
	EstimatedExecutionTime time.Duration
}

// FillDetail is one execution print reported by the broker.
type FillDetail struct {
	Price     decimal.Decimal
	Quantity  int64
	Timestamp time.Time
	Venue     string
}

// ExecutionResult is the immutable outcome of one broker execution attempt.
// Callers receive snapshots; Fills is copied on access.
type ExecutionResult struct {
	Status           OrderStatus
	FilledQuantity   int64
	AverageFillPrice decimal.Decimal
	Fills            []FillDetail
	TotalCommission  decimal.Decimal
	BrokerOrderID    string

	// FollowUpRequired marks outcomes operations must reconcile: a fill
	// below the acceptance threshold, or polling budget exhausted before a
	// terminal broker status was observed.
	FollowUpRequired bool
	FollowUpReason   string
}

// Snapshot returns a defensive copy with its own fills slice.
func (r ExecutionResult) Snapshot() ExecutionResult {
	cp := r
	if len(r.Fills) > 0 {
		cp.Fills = make([]FillDetail, len(r.Fills))
		copy(cp.Fills, r.Fills)
	}
	return cp
}

// AvgPriceFromFills computes the volume-weighted average price of fills.
func AvgPriceFromFills(fills []FillDetail) decimal.Decimal {
	var qty int64
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Price.Mul(decimal.NewFromInt(f.Quantity)))
		qty += f.Quantity
	}
	if qty == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(qty))
}

// CancellationResult is the typed outcome of a cancel attempt. An
// already-filled order yields Cancelled=false, not an error.
type CancellationResult struct {
	OrderID        string
	Cancelled      bool
	Reason         string
	FilledQuantity int64
}

// IdempotencyRecord captures the recorded outcome of an execution so a
// duplicate invocation returns the first result instead of re-submitting.
type IdempotencyRecord struct {
	OrderID    string
	Result     ExecutionResult
	Err        error
	RecordedAt time.Time
}
