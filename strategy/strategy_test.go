package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func snapAt(i int, close float64) Snapshot {
	ts := t0.Add(time.Duration(i) * time.Hour)
	bar := market.New("EURUSD", ts, close, close+0.0005, close-0.0005, close, 0)
	return Snapshot{
		Pair:   "EURUSD",
		Time:   ts,
		Bar:    bar,
		Market: map[string]market.Candlestick{"EURUSD": bar},
	}
}

func TestActionHelpers(t *testing.T) {
	assert.True(t, ExecuteBuy.Trades())
	assert.True(t, ExecuteSell.Trades())
	assert.False(t, Hold.Trades())
	assert.False(t, StandAside.Trades())

	assert.Equal(t, broker.Buy, ExecuteBuy.Side())
	assert.Equal(t, broker.Sell, ExecuteSell.Side())
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{
		"noop":        "noop",
		"NOOP":        "noop",
		"open-once":   "open-once",
		"alternating": "alternating",
		"ema-cross":   "ema-cross",
		"emacross":    "ema-cross",
	} {
		s, err := ByName(name, Params{Pair: "EURUSD"})
		require.NoError(t, err, name)
		assert.Equal(t, want, s.Name())
	}

	_, err := ByName("martingale", Params{})
	assert.Error(t, err)
}

func TestNoopNeverDecides(t *testing.T) {
	dec, err := Noop{}.Invoke(context.Background(), snapAt(0, 1.1000))
	require.NoError(t, err)
	assert.Nil(t, dec)
}

func TestOpenOnceBuysExactlyOnce(t *testing.T) {
	s := NewOpenOnce(Params{Pair: "EURUSD", Size: 0.1, StopPips: 50, RR: 2})

	dec, err := s.Invoke(context.Background(), snapAt(0, 1.1000))
	require.NoError(t, err)
	require.NotNil(t, dec)
	assert.Equal(t, ExecuteBuy, dec.Action)
	assert.Equal(t, 0.1, dec.Size)
	require.NotNil(t, dec.StopLoss)
	require.NotNil(t, dec.TakeProfit)
	// 50 pips under the bar open, take at 2R above it.
	assert.InDelta(t, 1.0950, *dec.StopLoss, 1e-9)
	assert.InDelta(t, 1.1100, *dec.TakeProfit, 1e-9)

	for i := 1; i < 5; i++ {
		dec, err := s.Invoke(context.Background(), snapAt(i, 1.1000))
		require.NoError(t, err)
		assert.Nil(t, dec, "bar %d", i)
	}
}

func TestOpenOnceIgnoresOtherPairs(t *testing.T) {
	s := NewOpenOnce(Params{Pair: "GBPUSD", Size: 0.1})
	dec, err := s.Invoke(context.Background(), snapAt(0, 1.1000))
	require.NoError(t, err)
	assert.Nil(t, dec)
}

func TestOpenOnceWithoutStopPipsHasNoLevels(t *testing.T) {
	s := NewOpenOnce(Params{Pair: "EURUSD", Size: 0.1})
	dec, err := s.Invoke(context.Background(), snapAt(0, 1.1000))
	require.NoError(t, err)
	require.NotNil(t, dec)
	assert.Nil(t, dec.StopLoss)
	assert.Nil(t, dec.TakeProfit)
}

func TestAlternatingFlipsEveryInterval(t *testing.T) {
	s := NewAlternating(Params{Pair: "EURUSD", Size: 0.1, StopPips: 20, Interval: 3})

	var actions []Action
	for i := 0; i < 9; i++ {
		dec, err := s.Invoke(context.Background(), snapAt(i, 1.1000))
		require.NoError(t, err)
		if dec != nil {
			actions = append(actions, dec.Action)
		}
	}

	// First decision on the first bar, then every third bar, alternating.
	assert.Equal(t, []Action{ExecuteBuy, ExecuteSell, ExecuteBuy}, actions)
}

func TestAlternatingLevelsFollowDirection(t *testing.T) {
	s := NewAlternating(Params{Pair: "EURUSD", Size: 0.1, StopPips: 20, RR: 2, Interval: 1})

	buy, err := s.Invoke(context.Background(), snapAt(0, 1.1000))
	require.NoError(t, err)
	require.NotNil(t, buy)
	require.Equal(t, ExecuteBuy, buy.Action)
	assert.InDelta(t, 1.0980, *buy.StopLoss, 1e-9)
	assert.InDelta(t, 1.1040, *buy.TakeProfit, 1e-9)

	sell, err := s.Invoke(context.Background(), snapAt(1, 1.1000))
	require.NoError(t, err)
	require.NotNil(t, sell)
	require.Equal(t, ExecuteSell, sell.Action)
	assert.InDelta(t, 1.1020, *sell.StopLoss, 1e-9)
	assert.InDelta(t, 1.0960, *sell.TakeProfit, 1e-9)
}

func TestEMACrossSignalsOnCross(t *testing.T) {
	s := NewEMACross(Params{Pair: "EURUSD", Fast: 2, Slow: 3, StopPips: 20, RR: 2, RiskPct: 0.01})

	// Warmup plus the first ready diff: no decisions yet.
	closes := []float64{1.1000, 1.1000, 1.1000, 1.1000}
	for i, c := range closes {
		dec, err := s.Invoke(context.Background(), snapAt(i, c))
		require.NoError(t, err)
		assert.Nil(t, dec, "bar %d is warmup", i)
	}

	// A strong up move pulls the fast EMA over the slow one.
	dec, err := s.Invoke(context.Background(), snapAt(len(closes), 1.1100))
	require.NoError(t, err)
	require.NotNil(t, dec)
	assert.Equal(t, ExecuteBuy, dec.Action)
	assert.Equal(t, 0.01, dec.RiskPct)
	assert.Zero(t, dec.Size, "sizing is delegated to the risk budget")
	require.NotNil(t, dec.StopLoss)
	assert.InDelta(t, 1.1100-0.0020, *dec.StopLoss, 1e-9)

	// Continued rally keeps the diff positive: no new cross, no signal.
	dec, err = s.Invoke(context.Background(), snapAt(len(closes)+1, 1.1200))
	require.NoError(t, err)
	assert.Nil(t, dec)
}

func TestEMACrossHoldsWhilePositionOpen(t *testing.T) {
	s := NewEMACross(Params{Pair: "EURUSD", Fast: 2, Slow: 3, StopPips: 20})

	for i, c := range []float64{1.1000, 1.1000, 1.1000, 1.1000} {
		_, err := s.Invoke(context.Background(), snapAt(i, c))
		require.NoError(t, err)
	}

	snap := snapAt(4, 1.1100)
	snap.Positions = []broker.Position{{ID: "P1", Pair: "EURUSD", Side: broker.Buy, Size: 0.1}}
	dec, err := s.Invoke(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, dec)
	assert.Equal(t, Hold, dec.Action, "cross while a trade is open only flags the signal")
}
