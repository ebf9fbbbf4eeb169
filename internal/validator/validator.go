// Package validator performs pure structural and semantic validation of
// submitted order requests. Every check runs independently and all
// violations accumulate, so a broken ticket surfaces every problem at once.
package validator

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"tradepipe/internal/domain"
	"tradepipe/internal/result"
)

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9&-]{0,19}$`)

// Validation is the validator's accumulating outcome type.
type Validation = result.Validation[*domain.OrderRequest, domain.ValidationError]

// Validator is stateless; reference data and authorization are injected.
type Validator struct {
	directory InstrumentDirectory
	auth      Authorizer
	nowFn     func() time.Time
}

func New(directory InstrumentDirectory, auth Authorizer) *Validator {
	return &Validator{
		directory: directory,
		auth:      auth,
		nowFn:     time.Now,
	}
}

// Validate runs every check against the request for the given account and
// returns the complete violation list. No I/O happens here.
func (v *Validator) Validate(req *domain.OrderRequest, accountID string) Validation {
	return result.Of[*domain.OrderRequest, domain.ValidationError](req).Check(
		v.checkSymbol,
		v.checkQuantity,
		v.checkPricePresence,
		v.checkTickSize,
		checkStopLimitRelation,
		v.checkExpiry,
		v.checkVenueCompatibility,
		v.authorizationRule(accountID),
	)
}

// ValidateModification merges the requested changes over the existing order,
// re-runs every placement check on the merged request, and additionally
// rejects changes the lifecycle forbids.
func (v *Validator) ValidateModification(existing *domain.Order, changes *domain.OrderRequest, accountID string) Validation {
	merged := mergeModification(existing, changes)
	val := v.Validate(merged, accountID)

	if existing.Status.Terminal() || !existing.Modifiable() {
		val = val.Add(domain.ModificationError{Reason: "order is no longer modifiable (status " + string(existing.Status) + ")"})
	}
	if changes.Symbol != "" && changes.Symbol != existing.Symbol {
		val = val.Add(domain.ModificationError{Reason: "symbol cannot be changed"})
	}
	if changes.Side != "" && changes.Side != existing.Side {
		val = val.Add(domain.ModificationError{Reason: "side cannot be changed"})
	}
	if changes.Quantity != 0 && changes.Quantity < existing.FilledQuantity {
		val = val.Add(domain.ModificationError{Reason: "quantity cannot drop below filled quantity"})
	}
	return val
}

// mergeModification overlays non-zero change fields on the existing order's
// request shape.
func mergeModification(existing *domain.Order, changes *domain.OrderRequest) *domain.OrderRequest {
	merged := existing.Request()
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

func (v *Validator) checkSymbol(req *domain.OrderRequest) []domain.ValidationError {
	var errs []domain.ValidationError
	if !symbolPattern.MatchString(req.Symbol) {
		errs = append(errs, domain.SymbolError{Symbol: req.Symbol, Reason: "malformed symbol"})
		return errs
	}
	ins, ok := v.directory.Lookup(req.Symbol, req.Exchange)
	if !ok {
		errs = append(errs, domain.SymbolError{Symbol: req.Symbol, Reason: "unknown instrument on " + req.Exchange})
		return errs
	}
	if !ins.Tradeable {
		errs = append(errs, domain.SymbolError{Symbol: req.Symbol, Reason: "instrument is not tradeable"})
	}
	if ins.Suspended {
		errs = append(errs, domain.SymbolError{Symbol: req.Symbol, Reason: "instrument is suspended"})
	}
	return errs
}

func (v *Validator) checkQuantity(req *domain.OrderRequest) []domain.ValidationError {
	var errs []domain.ValidationError
	if req.Quantity <= 0 {
		errs = append(errs, domain.QuantityError{Quantity: req.Quantity, Reason: "must be positive"})
		return errs
	}
	ins, ok := v.directory.Lookup(req.Symbol, req.Exchange)
	if !ok {
		return errs // symbol check already reports the unknown instrument
	}
	if ins.MinQuantity > 0 && req.Quantity < ins.MinQuantity {
		errs = append(errs, domain.QuantityError{Quantity: req.Quantity, Reason: "below instrument minimum"})
	}
	if ins.MaxQuantity > 0 && req.Quantity > ins.MaxQuantity {
		errs = append(errs, domain.QuantityError{Quantity: req.Quantity, Reason: "above instrument maximum"})
	}
	if ins.LotSize > 1 && req.Quantity%ins.LotSize != 0 {
		errs = append(errs, domain.QuantityError{Quantity: req.Quantity, Reason: "not a multiple of the exchange lot size"})
	}
	return errs
}

func (v *Validator) checkPricePresence(req *domain.OrderRequest) []domain.ValidationError {
	var errs []domain.ValidationError
	switch {
	case req.Type == domain.TypeMarket && !req.LimitPrice.IsZero():
		errs = append(errs, domain.PriceError{FieldName: "limitPrice", Reason: "MARKET orders must not carry a limit price"})
	case req.Type.RequiresLimitPrice() && req.LimitPrice.IsZero():
		errs = append(errs, domain.PriceError{FieldName: "limitPrice", Reason: string(req.Type) + " orders require a limit price"})
	}
	if req.Type.IsStopFamily() && req.StopPrice.IsZero() {
		errs = append(errs, domain.PriceError{FieldName: "stopPrice", Reason: string(req.Type) + " orders require a stop price"})
	}
	if !req.Type.IsStopFamily() && !req.StopPrice.IsZero() {
		errs = append(errs, domain.PriceError{FieldName: "stopPrice", Reason: string(req.Type) + " orders must not carry a stop price"})
	}
	if req.LimitPrice.IsNegative() {
		errs = append(errs, domain.PriceError{FieldName: "limitPrice", Reason: "must be positive"})
	}
	if req.StopPrice.IsNegative() {
		errs = append(errs, domain.PriceError{FieldName: "stopPrice", Reason: "must be positive"})
	}
	return errs
}

func (v *Validator) checkTickSize(req *domain.OrderRequest) []domain.ValidationError {
	ins, ok := v.directory.Lookup(req.Symbol, req.Exchange)
	if !ok || ins.TickSize.IsZero() {
		return nil
	}
	var errs []domain.ValidationError
	for _, px := range []decimal.Decimal{req.LimitPrice, req.StopPrice} {
		if px.IsZero() || px.IsNegative() {
			continue
		}
		if !px.Mod(ins.TickSize).IsZero() {
			errs = append(errs, domain.TickSizeError{Price: px, TickSize: ins.TickSize, Exchange: req.Exchange})
		}
	}
	return errs
}

// checkStopLimitRelation enforces BUY stop>=limit, SELL stop<=limit for
// STOP_LIMIT orders, matching how the trigger must sit relative to the cap.
func checkStopLimitRelation(req *domain.OrderRequest) []domain.ValidationError {
	if req.Type != domain.TypeStopLimit || req.StopPrice.IsZero() || req.LimitPrice.IsZero() {
		return nil
	}
	switch req.Side {
	case domain.SideBuy:
		if req.StopPrice.LessThan(req.LimitPrice) {
			return []domain.ValidationError{domain.StopPriceError{Side: req.Side, StopPrice: req.StopPrice, LimitPrice: req.LimitPrice}}
		}
	case domain.SideSell:
		if req.StopPrice.GreaterThan(req.LimitPrice) {
			return []domain.ValidationError{domain.StopPriceError{Side: req.Side, StopPrice: req.StopPrice, LimitPrice: req.LimitPrice}}
		}
	}
	return nil
}

func (v *Validator) checkExpiry(req *domain.OrderRequest) []domain.ValidationError {
	if req.TimeInForce != domain.TIFGTD {
		if !req.ExpiryDate.IsZero() {
			return []domain.ValidationError{domain.ExpiryError{Expiry: req.ExpiryDate, Reason: "expiry only valid with GTD"}}
		}
		return nil
	}
	now := v.nowFn()
	var errs []domain.ValidationError
	if req.ExpiryDate.IsZero() {
		errs = append(errs, domain.ExpiryError{Expiry: req.ExpiryDate, Reason: "GTD orders require an expiry date"})
		return errs
	}
	if !req.ExpiryDate.After(now) {
		errs = append(errs, domain.ExpiryError{Expiry: req.ExpiryDate, Reason: "must be in the future"})
	}
	if req.ExpiryDate.After(now.AddDate(1, 0, 0)) {
		errs = append(errs, domain.ExpiryError{Expiry: req.ExpiryDate, Reason: "must be within one year"})
	}
	return errs
}

func (v *Validator) checkVenueCompatibility(req *domain.OrderRequest) []domain.ValidationError {
	var errs []domain.ValidationError
	if !req.Side.Valid() {
		errs = append(errs, domain.FieldError{FieldName: "side", Reason: "must be BUY or SELL"})
	}
	if !req.Type.Valid() {
		errs = append(errs, domain.VenueCompatibilityError{Exchange: req.Exchange, OrderType: req.Type})
		return errs
	}
	if !req.TimeInForce.Valid() {
		errs = append(errs, domain.FieldError{FieldName: "timeInForce", Reason: "unknown time-in-force"})
	}
	ins, ok := v.directory.Lookup(req.Symbol, req.Exchange)
	if ok && !ins.SupportsType(req.Type) {
		errs = append(errs, domain.VenueCompatibilityError{Exchange: req.Exchange, OrderType: req.Type})
	}
	return errs
}

func (v *Validator) authorizationRule(accountID string) func(*domain.OrderRequest) []domain.ValidationError {
	return func(req *domain.OrderRequest) []domain.ValidationError {
		if v.auth.CanTrade(accountID, req.Symbol) {
			return nil
		}
		return []domain.ValidationError{domain.AuthorizationError{AccountID: accountID, Symbol: req.Symbol}}
	}
}
