package validator

import (
	"strings"

	"github.com/shopspring/decimal"

	"tradepipe/internal/domain"
)

// Instrument is the reference data the validator needs about one listing.
type Instrument struct {
	Symbol            string
	Exchange          string
	Tradeable         bool
	Suspended         bool
	LotSize           int64
	TickSize          decimal.Decimal
	MinQuantity       int64
	MaxQuantity       int64
	AllowedOrderTypes []domain.OrderType
}

// SupportsType reports whether the listing accepts the order type. An empty
// allow-list means every type is accepted.
func (i Instrument) SupportsType(t domain.OrderType) bool {
	if len(i.AllowedOrderTypes) == 0 {
		return true
	}
	for _, allowed := range i.AllowedOrderTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// InstrumentDirectory resolves a symbol/exchange pair to its reference data.
// Lookups are in-memory; the directory is refreshed out of band.
type InstrumentDirectory interface {
	Lookup(symbol, exchange string) (Instrument, bool)
}

// Authorizer answers whether an account may trade an instrument.
type Authorizer interface {
	CanTrade(accountID, symbol string) bool
}

// StaticDirectory is a map-backed InstrumentDirectory for wiring and tests.
type StaticDirectory struct {
	instruments map[string]Instrument
}

func NewStaticDirectory(instruments []Instrument) *StaticDirectory {
	m := make(map[string]Instrument, len(instruments))
	for _, ins := range instruments {
		m[directoryKey(ins.Symbol, ins.Exchange)] = ins
	}
	return &StaticDirectory{instruments: m}
}

func (d *StaticDirectory) Lookup(symbol, exchange string) (Instrument, bool) {
	ins, ok := d.instruments[directoryKey(symbol, exchange)]
	return ins, ok
}

func directoryKey(symbol, exchange string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + ":" + strings.ToUpper(strings.TrimSpace(exchange))
}

// AllowAll authorizes every account for every symbol, for tests and the
// simulator wiring.
type AllowAll struct{}

func (AllowAll) CanTrade(string, string) bool { return true }
