package market

import "fmt"

// PriceSource yields the latest known mid price for a pair. The simulated
// broker's bar store satisfies this.
type PriceSource interface {
	LatestMid(pair string) (float64, error)
}

// QuoteToAccountRate converts one unit of the instrument's quote currency
// into the account currency.
func QuoteToAccountRate(pair, accountCurrency string, prices PriceSource) (float64, error) {
	meta := Meta(pair)

	// EURUSD with a USD account: P/L is already in account currency.
	if meta.QuoteCurrency == accountCurrency || meta.QuoteCurrency == "" {
		return 1.0, nil
	}

	// USDJPY with a USD account: invert the pair's own mid.
	if meta.BaseCurrency == accountCurrency {
		mid, err := prices.LatestMid(pair)
		if err != nil {
			return 0, err
		}
		if mid <= 0 {
			return 0, fmt.Errorf("conversion: no usable price for %s", pair)
		}
		return 1.0 / mid, nil
	}

	return 0, fmt.Errorf("conversion: no %s -> %s rate for %s", meta.QuoteCurrency, accountCurrency, pair)
}
