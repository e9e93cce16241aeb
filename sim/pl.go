package sim

import (
	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
)

// UnrealizedPL values a position against a mark price, in account
// currency. size is in lots.
func UnrealizedPL(p broker.Position, mark, quoteToAccount float64) float64 {
	units := p.Size * market.Meta(p.Pair).ContractSize
	plQuote := p.Side.Sign() * units * (mark - p.OpenPrice)
	return plQuote * quoteToAccount
}

// RequiredMargin is the margin locked by a position of size lots at the
// given price, in account currency.
func RequiredMargin(pair string, size, price, quoteToAccount float64) float64 {
	meta := market.Meta(pair)
	notionalQuote := size * meta.ContractSize * price
	return notionalQuote * quoteToAccount * meta.MarginRate
}
