package market

import "math"

// InstrumentMeta describes a tradable currency pair.
type InstrumentMeta struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	PipLocation   int     // -4 for most FX pairs, -2 for JPY quotes
	ContractSize  float64 // units per 1.0 lot
	MinTradeSize  float64 // in lots
	MarginRate    float64 // e.g. 0.02 for 50:1 leverage
	SpreadPips    float64 // default spread when the data has no bid/ask
}

// PipSize returns the price value of one pip for this instrument.
func (m InstrumentMeta) PipSize() float64 {
	return math.Pow(10, float64(m.PipLocation))
}

var Instruments = map[string]InstrumentMeta{
	"EURUSD": {
		Name:          "EURUSD",
		BaseCurrency:  "EUR",
		QuoteCurrency: "USD",
		PipLocation:   -4,
		ContractSize:  100_000,
		MinTradeSize:  0.01,
		MarginRate:    0.02,
		SpreadPips:    1.0,
	},
	"GBPUSD": {
		Name:          "GBPUSD",
		BaseCurrency:  "GBP",
		QuoteCurrency: "USD",
		PipLocation:   -4,
		ContractSize:  100_000,
		MinTradeSize:  0.01,
		MarginRate:    0.03,
		SpreadPips:    1.5,
	},
	"USDJPY": {
		Name:          "USDJPY",
		BaseCurrency:  "USD",
		QuoteCurrency: "JPY",
		PipLocation:   -2,
		ContractSize:  100_000,
		MinTradeSize:  0.01,
		MarginRate:    0.02,
		SpreadPips:    1.2,
	},
}

// defaultMeta covers pairs fed from data files that are missing from the
// registry. Standard FX conventions.
var defaultMeta = InstrumentMeta{
	PipLocation:  -4,
	ContractSize: 100_000,
	MinTradeSize: 0.01,
	MarginRate:   0.02,
	SpreadPips:   1.0,
}

// Meta returns metadata for pair, falling back to standard FX defaults for
// unregistered pairs.
func Meta(pair string) InstrumentMeta {
	if m, ok := Instruments[pair]; ok {
		return m
	}
	m := defaultMeta
	m.Name = pair
	return m
}

// SpreadPrice returns the instrument's default spread in price terms.
func SpreadPrice(pair string) float64 {
	m := Meta(pair)
	return m.SpreadPips * m.PipSize()
}
