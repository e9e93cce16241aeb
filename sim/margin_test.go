package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
)

func TestUnrealizedPL(t *testing.T) {
	p := broker.Position{Pair: "EURUSD", Side: broker.Buy, Size: 0.1, OpenPrice: 1.1001}
	assert.InDelta(t, -2.0, UnrealizedPL(p, 1.0999, 1.0), 1e-9)
	assert.InDelta(t, 49.0, UnrealizedPL(p, 1.1050, 1.0), 1e-9)

	p.Side = broker.Sell
	assert.InDelta(t, 2.0, UnrealizedPL(p, 1.0999, 1.0), 1e-9)
}

func TestRequiredMargin(t *testing.T) {
	// 0.1 lots * 100000 * 1.1000 * 0.02 = 220 USD.
	assert.InDelta(t, 220.0, RequiredMargin("EURUSD", 0.1, 1.1000, 1.0), 1e-9)
	// Quote conversion scales the notional.
	assert.InDelta(t, 110.0, RequiredMargin("EURUSD", 0.1, 1.1000, 0.5), 1e-9)
}

func TestMarginCallLiquidatesUntilRecovered(t *testing.T) {
	b := newTestBroker(1_000, Config{})
	feedBar(t, b, t0, eurusdBar(t0, 1.1000, 1.1005, 1.0995, 1.1000, 1.0999, 1.1001))

	small := b.PlaceOrder(broker.OrderRequest{
		Pair: "EURUSD", Side: broker.Buy, Type: broker.Market, Size: 0.1,
	})
	big := b.PlaceOrder(broker.OrderRequest{
		Pair: "EURUSD", Side: broker.Buy, Type: broker.Market, Size: 0.3,
	})
	require.Equal(t, broker.StatusFilled, small.Status)
	require.Equal(t, broker.StatusFilled, big.Status)

	// Price drops hard. Equity 596 against 872.08 margin: level ~68%.
	feedBar(t, b, t0.Add(time.Hour), eurusdBar(t0.Add(time.Hour), 1.0990, 1.0995, 1.0890, 1.0901, 1.0900, 1.0902))
	require.Less(t, b.AccountInfo().MarginLevel, 100.0)

	closures := b.CheckMarginCall()
	require.Len(t, closures, 1, "closing the worst loser restores the level")

	c := closures[0]
	assert.Equal(t, big.PositionID, c.PositionID, "worst unrealized loss goes first")
	assert.Equal(t, broker.ReasonMarginCall, c.Reason)
	assert.InDelta(t, 1.0900, c.ClosePrice, 1e-9)
	// 30000 units * (1.0900 - 1.1001) = -303.
	assert.InDelta(t, -303.0, c.RealizedPL, 1e-9)

	positions := b.OpenPositions()
	require.Len(t, positions, 1)
	assert.Equal(t, small.PositionID, positions[0].ID)

	acct := b.AccountInfo()
	assert.InDelta(t, 697.0, acct.Balance, 1e-9)
	assert.GreaterOrEqual(t, acct.MarginLevel, 100.0)
}

func TestMarginCallCanLiquidateEverything(t *testing.T) {
	b := newTestBroker(1_000, Config{})
	feedBar(t, b, t0, eurusdBar(t0, 1.1000, 1.1005, 1.0995, 1.1000, 1.0999, 1.1001))

	res := b.PlaceOrder(broker.OrderRequest{
		Pair: "EURUSD", Side: broker.Buy, Type: broker.Market, Size: 0.4,
	})
	require.Equal(t, broker.StatusFilled, res.Status)

	feedBar(t, b, t0.Add(time.Hour), eurusdBar(t0.Add(time.Hour), 1.0990, 1.0995, 1.0890, 1.0901, 1.0900, 1.0902))
	require.Less(t, b.AccountInfo().MarginLevel, 100.0)

	closures := b.CheckMarginCall()
	require.Len(t, closures, 1)
	assert.Empty(t, b.OpenPositions())

	acct := b.AccountInfo()
	// 40000 units * (1.0900 - 1.1001) = -404.
	assert.InDelta(t, 596.0, acct.Balance, 1e-9)
	assert.True(t, math.IsInf(acct.MarginLevel, 1))
}

func TestNoMarginCallAboveThreshold(t *testing.T) {
	b := newTestBroker(100_000, Config{})
	feedBar(t, b, t0, eurusdBar(t0, 1.1000, 1.1005, 1.0995, 1.1000, 1.0999, 1.1001))

	res := b.PlaceOrder(broker.OrderRequest{
		Pair: "EURUSD", Side: broker.Buy, Type: broker.Market, Size: 0.1,
	})
	require.Equal(t, broker.StatusFilled, res.Status)

	feedBar(t, b, t0.Add(time.Hour), eurusdBar(t0.Add(time.Hour), 1.0990, 1.0995, 1.0890, 1.0901, 1.0900, 1.0902))
	assert.Empty(t, b.CheckMarginCall())
	assert.Len(t, b.OpenPositions(), 1)
}

func TestCustomMarginCallLevel(t *testing.T) {
	b := newTestBroker(1_000, Config{MarginCallLevel: 50})
	feedBar(t, b, t0, eurusdBar(t0, 1.1000, 1.1005, 1.0995, 1.1000, 1.0999, 1.1001))

	res := b.PlaceOrder(broker.OrderRequest{
		Pair: "EURUSD", Side: broker.Buy, Type: broker.Market, Size: 0.4,
	})
	require.Equal(t, broker.StatusFilled, res.Status)

	// Level ~68% is below the default 100 but above the configured 50.
	feedBar(t, b, t0.Add(time.Hour), eurusdBar(t0.Add(time.Hour), 1.0990, 1.0995, 1.0890, 1.0901, 1.0900, 1.0902))
	lvl := b.AccountInfo().MarginLevel
	require.Greater(t, lvl, 50.0)
	require.Less(t, lvl, 100.0)

	assert.Empty(t, b.CheckMarginCall())
}

var _ market.PriceSource = (*Broker)(nil)

func TestEquityMarksShortsToAsk(t *testing.T) {
	b := newTestBroker(100_000, Config{})
	feedBar(t, b, t0, eurusdBar(t0, 1.1000, 1.1005, 1.0995, 1.1000, 1.0999, 1.1001))

	short := b.PlaceOrder(broker.OrderRequest{
		Pair: "EURUSD", Side: broker.Sell, Type: broker.Market, Size: 0.1,
	})
	require.Equal(t, broker.StatusFilled, short.Status)

	// Shorts revalue on the ask: 10000 * (1.0999 - 1.1001) = -2.
	positions := b.OpenPositions()
	require.Len(t, positions, 1)
	assert.InDelta(t, -2.0, positions[0].UnrealizedPL, 1e-9)
	assert.InDelta(t, 99_998.0, b.AccountInfo().Equity, 1e-9)
}
