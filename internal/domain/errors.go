package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Severity grades how bad a risk or execution failure is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ---------------------------------------------------------------------------
// ValidationError: structural/semantic problems with a submitted request.
// Closed variant set; new variants must be handled wherever a type switch
// matches the family.

type ValidationError interface {
	error
	Field() string
	validationError()
}

type SymbolError struct {
	Symbol string
	Reason string
}

func (e SymbolError) Error() string     { return fmt.Sprintf("symbol %q: %s", e.Symbol, e.Reason) }
func (e SymbolError) Field() string     { return "symbol" }
func (e SymbolError) validationError() {}

type QuantityError struct {
	Quantity int64
	Reason   string
}

func (e QuantityError) Error() string {
	return fmt.Sprintf("quantity %d: %s", e.Quantity, e.Reason)
}
func (e QuantityError) Field() string     { return "quantity" }
func (e QuantityError) validationError() {}

type PriceError struct {
	FieldName string // "limitPrice" or "stopPrice"
	Reason    string
}

func (e PriceError) Error() string     { return fmt.Sprintf("%s: %s", e.FieldName, e.Reason) }
func (e PriceError) Field() string     { return e.FieldName }
func (e PriceError) validationError() {}

type TickSizeError struct {
	Price    decimal.Decimal
	TickSize decimal.Decimal
	Exchange string
}

func (e TickSizeError) Error() string {
	return fmt.Sprintf("price %s violates %s tick size %s", e.Price, e.Exchange, e.TickSize)
}
func (e TickSizeError) Field() string     { return "limitPrice" }
func (e TickSizeError) validationError() {}

type StopPriceError struct {
	Side       Side
	StopPrice  decimal.Decimal
	LimitPrice decimal.Decimal
}

func (e StopPriceError) Error() string {
	return fmt.Sprintf("stop/limit relation violated for %s: stop=%s limit=%s", e.Side, e.StopPrice, e.LimitPrice)
}
func (e StopPriceError) Field() string     { return "stopPrice" }
func (e StopPriceError) validationError() {}

type ExpiryError struct {
	Expiry time.Time
	Reason string
}

func (e ExpiryError) Error() string {
	return fmt.Sprintf("expiry %s: %s", e.Expiry.Format("2006-01-02"), e.Reason)
}
func (e ExpiryError) Field() string     { return "expiryDate" }
func (e ExpiryError) validationError() {}

type VenueCompatibilityError struct {
	Exchange  string
	OrderType OrderType
}

func (e VenueCompatibilityError) Error() string {
	return fmt.Sprintf("order type %s not supported on %s", e.OrderType, e.Exchange)
}
func (e VenueCompatibilityError) Field() string     { return "orderType" }
func (e VenueCompatibilityError) validationError() {}

type AuthorizationError struct {
	AccountID string
	Symbol    string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("account %s is not authorized to trade %s", e.AccountID, e.Symbol)
}
func (e AuthorizationError) Field() string     { return "symbol" }
func (e AuthorizationError) validationError() {}

type FieldError struct {
	FieldName string
	Reason    string
}

func (e FieldError) Error() string     { return fmt.Sprintf("%s: %s", e.FieldName, e.Reason) }
func (e FieldError) Field() string     { return e.FieldName }
func (e FieldError) validationError() {}

type ModificationError struct {
	Reason string
}

func (e ModificationError) Error() string     { return "modification rejected: " + e.Reason }
func (e ModificationError) Field() string     { return "order" }
func (e ModificationError) validationError() {}

// ---------------------------------------------------------------------------
// RiskError: policy/limit violations. Carries severity and retryability.

type RiskError interface {
	error
	Severity() Severity
	Retryable() bool
	riskError()
}

type OrderValueLimitError struct {
	Notional decimal.Decimal
	Limit    decimal.Decimal
}

func (e OrderValueLimitError) Error() string {
	return fmt.Sprintf("order notional %s exceeds max order value %s", e.Notional, e.Limit)
}
func (e OrderValueLimitError) Severity() Severity { return SeverityHigh }
func (e OrderValueLimitError) Retryable() bool    { return false }
func (e OrderValueLimitError) riskError()         {}

type DailyTradeLimitError struct {
	Count int64
	Limit int64
}

func (e DailyTradeLimitError) Error() string {
	return fmt.Sprintf("daily trade count %d exceeds limit %d", e.Count, e.Limit)
}
func (e DailyTradeLimitError) Severity() Severity { return SeverityMedium }
func (e DailyTradeLimitError) Retryable() bool    { return false }
func (e DailyTradeLimitError) riskError()         {}

type InsufficientBuyingPowerError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e InsufficientBuyingPowerError) Error() string {
	return fmt.Sprintf("insufficient buying power: required %s, available %s", e.Required, e.Available)
}
func (e InsufficientBuyingPowerError) Severity() Severity { return SeverityHigh }
func (e InsufficientBuyingPowerError) Retryable() bool    { return false }
func (e InsufficientBuyingPowerError) riskError()         {}

type PositionSizeLimitError struct {
	Symbol    string
	Projected int64
	Limit     int64
}

func (e PositionSizeLimitError) Error() string {
	return fmt.Sprintf("projected position %d in %s exceeds limit %d", e.Projected, e.Symbol, e.Limit)
}
func (e PositionSizeLimitError) Severity() Severity { return SeverityHigh }
func (e PositionSizeLimitError) Retryable() bool    { return false }
func (e PositionSizeLimitError) riskError()         {}

type ConcentrationRiskError struct {
	Symbol        string
	ProjectedPct  float64
	MaxAllowedPct float64
}

func (e ConcentrationRiskError) Error() string {
	return fmt.Sprintf("position in %s would be %.1f%% of portfolio, max %.1f%%",
		e.Symbol, e.ProjectedPct, e.MaxAllowedPct)
}
func (e ConcentrationRiskError) Severity() Severity { return SeverityMedium }
func (e ConcentrationRiskError) Retryable() bool    { return false }
func (e ConcentrationRiskError) riskError()         {}

type MarginUsageError struct {
	UsagePct float64
	MaxPct   float64
}

func (e MarginUsageError) Error() string {
	return fmt.Sprintf("margin usage %.1f%% exceeds max %.1f%%", e.UsagePct, e.MaxPct)
}
func (e MarginUsageError) Severity() Severity { return SeverityCritical }
func (e MarginUsageError) Retryable() bool    { return false }
func (e MarginUsageError) riskError()         {}

// RiskDataUnavailableError is the conservative degradation when portfolio
// data cannot be fetched (breaker open, timeout). The check that needed the
// data rejects instead of approving blind.
type RiskDataUnavailableError struct {
	Check string
	Cause error
}

func (e RiskDataUnavailableError) Error() string {
	return fmt.Sprintf("risk data unavailable for %s check, rejecting conservatively: %v", e.Check, e.Cause)
}
func (e RiskDataUnavailableError) Severity() Severity { return SeverityHigh }
func (e RiskDataUnavailableError) Retryable() bool    { return true }
func (e RiskDataUnavailableError) riskError()         {}
func (e RiskDataUnavailableError) Unwrap() error      { return e.Cause }

// ---------------------------------------------------------------------------
// RoutingError: no viable venue or broken configuration. These are the only
// routing failures that terminate the pipeline; broker unavailability is
// absorbed by fallback substitution and never appears here.

type RoutingError interface {
	error
	routingError()
}

type NoEligibleBrokerError struct {
	Exchange string
}

func (e NoEligibleBrokerError) Error() string {
	return "no eligible broker for exchange " + e.Exchange
}
func (e NoEligibleBrokerError) routingError() {}

type OrderTooLargeError struct {
	Quantity int64
	Max      int64
}

func (e OrderTooLargeError) Error() string {
	return fmt.Sprintf("quantity %d exceeds max single-order quantity %d", e.Quantity, e.Max)
}
func (e OrderTooLargeError) routingError() {}

type RouterConfigError struct {
	Reason string
}

func (e RouterConfigError) Error() string { return "router configuration error: " + e.Reason }
func (e RouterConfigError) routingError() {}

// ---------------------------------------------------------------------------
// ExecutionError: broker/infra failures during submission, polling or
// cancellation. Only BrokerAPIError and TimeoutError are caller-retryable.

type ExecutionError interface {
	error
	Severity() Severity
	Retryable() bool
	executionError()
}

type BrokerAPIError struct {
	Broker string
	Op     string
	Cause  error
}

func (e BrokerAPIError) Error() string {
	return fmt.Sprintf("broker %s %s failed: %v", e.Broker, e.Op, e.Cause)
}
func (e BrokerAPIError) Severity() Severity { return SeverityHigh }
func (e BrokerAPIError) Retryable() bool    { return true }
func (e BrokerAPIError) executionError()    {}
func (e BrokerAPIError) Unwrap() error      { return e.Cause }

type OrderRejectedError struct {
	Broker string
	Reason string
}

func (e OrderRejectedError) Error() string {
	return fmt.Sprintf("broker %s rejected order: %s", e.Broker, e.Reason)
}
func (e OrderRejectedError) Severity() Severity { return SeverityMedium }
func (e OrderRejectedError) Retryable() bool    { return false }
func (e OrderRejectedError) executionError()    {}

type TimeoutError struct {
	Op      string
	Elapsed time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Elapsed)
}
func (e TimeoutError) Severity() Severity { return SeverityHigh }
func (e TimeoutError) Retryable() bool    { return true }
func (e TimeoutError) executionError()    {}

type PartialFillError struct {
	Filled   int64
	Quantity int64
}

func (e PartialFillError) Error() string {
	return fmt.Sprintf("partial fill %d/%d below acceptance threshold", e.Filled, e.Quantity)
}
func (e PartialFillError) Severity() Severity { return SeverityMedium }
func (e PartialFillError) Retryable() bool    { return false }
func (e PartialFillError) executionError()    {}

type InsufficientLiquidityError struct {
	Symbol string
}

func (e InsufficientLiquidityError) Error() string {
	return "insufficient liquidity for " + e.Symbol
}
func (e InsufficientLiquidityError) Severity() Severity { return SeverityMedium }
func (e InsufficientLiquidityError) Retryable() bool    { return false }
func (e InsufficientLiquidityError) executionError()    {}

type IdempotencyViolationError struct {
	OrderID string
}

func (e IdempotencyViolationError) Error() string {
	return "conflicting execution already recorded for order " + e.OrderID
}
func (e IdempotencyViolationError) Severity() Severity { return SeverityCritical }
func (e IdempotencyViolationError) Retryable() bool    { return false }
func (e IdempotencyViolationError) executionError()    {}

type SystemError struct {
	Cause error
}

func (e SystemError) Error() string      { return fmt.Sprintf("execution system error: %v", e.Cause) }
func (e SystemError) Severity() Severity { return SeverityCritical }
func (e SystemError) Retryable() bool    { return false }
func (e SystemError) executionError()    {}
func (e SystemError) Unwrap() error      { return e.Cause }
