package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrices map[string]float64

func (s stubPrices) LatestMid(pair string) (float64, error) {
	mid, ok := s[pair]
	if !ok {
		return 0, errors.New("no price")
	}
	return mid, nil
}

func TestQuoteToAccountRate(t *testing.T) {
	prices := stubPrices{"USDJPY": 150.0}

	// Quote currency already matches the account: identity.
	rate, err := QuoteToAccountRate("EURUSD", "USD", prices)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)

	// USD-base pair in a USD account: invert the pair's own mid.
	rate, err = QuoteToAccountRate("USDJPY", "USD", prices)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/150.0, rate, 1e-12)

	// Unregistered pairs have no quote currency on record and fall back
	// to the identity rate.
	rate, err = QuoteToAccountRate("XAUUSD", "USD", prices)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
}

func TestQuoteToAccountRateErrors(t *testing.T) {
	// Missing price for the inversion leg.
	_, err := QuoteToAccountRate("USDJPY", "USD", stubPrices{})
	assert.Error(t, err)

	// Zero mid is unusable.
	_, err = QuoteToAccountRate("USDJPY", "USD", stubPrices{"USDJPY": 0})
	assert.Error(t, err)

	// Cross against the account currency has no conversion path.
	_, err = QuoteToAccountRate("EURUSD", "JPY", stubPrices{"EURUSD": 1.1})
	assert.Error(t, err)
}
