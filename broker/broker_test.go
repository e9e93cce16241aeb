package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSide(t *testing.T) {
	assert.Equal(t, 1.0, Buy.Sign())
	assert.Equal(t, -1.0, Sell.Sign())
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
	assert.Equal(t, "UNKNOWN", Side(0).String())
}

func TestPositionUnits(t *testing.T) {
	long := Position{Pair: "EURUSD", Side: Buy, Size: 0.1}
	assert.InDelta(t, 10_000.0, long.Units(), 1e-9)

	short := Position{Pair: "EURUSD", Side: Sell, Size: 0.5}
	assert.InDelta(t, -50_000.0, short.Units(), 1e-9)
}
