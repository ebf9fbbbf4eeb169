package app

import (
	"github.com/shopspring/decimal"

	"tradepipe/internal/validator"
)

// defaultInstruments seeds the static directory with a handful of liquid
// NSE/BSE listings so the sim mode works out of the box. Production wiring
// replaces this with a reference-data feed.
func defaultInstruments() []validator.Instrument {
	tick := decimal.NewFromFloat(0.05)
	listings := []struct {
		symbol   string
		exchange string
	}{
		{"RELIANCE", "NSE"},
		{"TCS", "NSE"},
		{"INFY", "NSE"},
		{"HDFCBANK", "NSE"},
		{"SBIN", "NSE"},
		{"RELIANCE", "BSE"},
		{"TCS", "BSE"},
	}

	out := make([]validator.Instrument, 0, len(listings))
	for _, l := range listings {
		out = append(out, validator.Instrument{
			Symbol:      l.symbol,
			Exchange:    l.exchange,
			Tradeable:   true,
			LotSize:     1,
			TickSize:    tick,
			MinQuantity: 1,
			MaxQuantity: 500000,
		})
	}
	return out
}
