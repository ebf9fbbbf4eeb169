// Package domain holds the order-processing data model: requests, the order
// aggregate and its status state machine, routing decisions, execution
// results, and the per-stage error families.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

type OrderType string

const (
	TypeMarket    OrderType = "MARKET"
	TypeLimit     OrderType = "LIMIT"
	TypeStop      OrderType = "STOP"
	TypeStopLimit OrderType = "STOP_LIMIT"
)

func (t OrderType) Valid() bool {
	switch t {
	case TypeMarket, TypeLimit, TypeStop, TypeStopLimit:
		return true
	}
	return false
}

// IsStopFamily reports whether the type carries a stop trigger.
func (t OrderType) IsStopFamily() bool { return t == TypeStop || t == TypeStopLimit }

// RequiresLimitPrice reports whether a limit price must be present.
func (t OrderType) RequiresLimitPrice() bool { return t == TypeLimit || t == TypeStopLimit }

type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFGTD TimeInForce = "GTD"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
)

func (t TimeInForce) Valid() bool {
	switch t {
	case TIFDay, TIFGTC, TIFGTD, TIFIOC, TIFFOK:
		return true
	}
	return false
}

type OrderStatus string

const (
	StatusPending         OrderStatus = "PENDING"
	StatusAcknowledged    OrderStatus = "ACKNOWLEDGED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal status move. Terminal
// states are absorbing; PARTIALLY_FILLED may self-loop as fills accumulate.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return from == StatusPartiallyFilled
	}
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusAcknowledged || to == StatusRejected
	case StatusAcknowledged:
		return to == StatusPartiallyFilled || to == StatusFilled ||
			to == StatusCancelled || to == StatusExpired
	case StatusPartiallyFilled:
		return to == StatusFilled || to == StatusCancelled
	}
	return false
}

// OrderRequest is the immutable, single-use trade instruction submitted by a
// client. Optional prices use the decimal zero value as "absent"; a zero
// price is never a legal trading price on the supported venues.
type OrderRequest struct {
	Symbol      string
	Exchange    string
	Side        Side
	Type        OrderType
	Quantity    int64
	LimitPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce TimeInForce
	ExpiryDate  time.Time // GTD only
	BrokerHint  string
}

// Notional returns quantity x reference price. For MARKET orders the caller
// supplies a mark price; LIMIT/STOP_LIMIT use the limit price.
func (r *OrderRequest) Notional(markPrice decimal.Decimal) decimal.Decimal {
	px := r.LimitPrice
	if px.IsZero() {
		px = markPrice
	}
	return px.Mul(decimal.NewFromInt(r.Quantity))
}

// Order is the persistent aggregate created once validation passes. The
// pipeline is the sole mutator of Status, FilledQuantity, BrokerOrderID and
// RejectionReason while a placement is in flight.
type Order struct {
	ID              string
	UserID          string
	AccountID       string
	Symbol          string
	Exchange        string
	Side            Side
	Type            OrderType
	TimeInForce     TimeInForce
	Quantity        int64
	FilledQuantity  int64
	LimitPrice      decimal.Decimal
	StopPrice       decimal.Decimal
	ExpiryDate      time.Time
	Status          OrderStatus
	BrokerOrderID   string
	BrokerName      string
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder builds a PENDING order from a validated request.
func NewOrder(req *OrderRequest, accountID, userID string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		AccountID:   accountID,
		Symbol:      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Exchange:    strings.ToUpper(strings.TrimSpace(req.Exchange)),
		Side:        req.Side,
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		ExpiryDate:  req.ExpiryDate,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the order to a new status, enforcing the state machine.
func (o *Order) Transition(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("order %s: illegal status transition %s -> %s", o.ID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordFill applies an observed cumulative fill quantity. Fill quantities
// only ever grow; a broker echoing a stale lower number is ignored.
func (o *Order) RecordFill(cumulative int64) {
	if cumulative <= o.FilledQuantity {
		return
	}
	if cumulative > o.Quantity {
		cumulative = o.Quantity
	}
	o.FilledQuantity = cumulative
	o.UpdatedAt = time.Now().UTC()
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() int64 { return o.Quantity - o.FilledQuantity }

// Modifiable reports whether the order may still be amended.
func (o *Order) Modifiable() bool {
	return !o.Status.Terminal()
}

// Request reconstructs the order's fields as a request, used when a
// modification merges changes over the existing order.
func (o *Order) Request() *OrderRequest {
	return &OrderRequest{
		Symbol:      o.Symbol,
		Exchange:    o.Exchange,
		Side:        o.Side,
		Type:        o.Type,
		Quantity:    o.Quantity,
		LimitPrice:  o.LimitPrice,
		StopPrice:   o.StopPrice,
		TimeInForce: o.TimeInForce,
		ExpiryDate:  o.ExpiryDate,
	}
}
