package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
	"github.com/quantfx/backtester/strategy"
)

// scriptedBroker records the call sequence and every order request the
// engine forwards. All queries return empty state.
type scriptedBroker struct {
	calls    []string
	requests []broker.OrderRequest
	acct     broker.AccountInfo
}

func newScriptedBroker() *scriptedBroker {
	return &scriptedBroker{acct: broker.AccountInfo{Currency: "USD", Balance: 100_000, Equity: 100_000}}
}

func (b *scriptedBroker) UpdateCurrentTime(t time.Time) { b.calls = append(b.calls, "clock") }

func (b *scriptedBroker) UpdateMarketData(pair string, bar market.Candlestick) error {
	b.calls = append(b.calls, "market:"+pair)
	return nil
}

func (b *scriptedBroker) PlaceOrder(req broker.OrderRequest) broker.OrderResult {
	b.calls = append(b.calls, "place")
	b.requests = append(b.requests, req)
	return broker.OrderResult{Status: broker.StatusFilled, Pair: req.Pair, Side: req.Side, Size: req.Size}
}

func (b *scriptedBroker) ProcessPendingOrders() []broker.OrderResult {
	b.calls = append(b.calls, "pending")
	return nil
}

func (b *scriptedBroker) CheckSLTPTriggers() []broker.Closure {
	b.calls = append(b.calls, "sltp")
	return nil
}

func (b *scriptedBroker) CheckMarginCall() []broker.Closure {
	b.calls = append(b.calls, "margin")
	return nil
}

func (b *scriptedBroker) ModifyPosition(string, *float64, *float64) error { return nil }

func (b *scriptedBroker) ClosePosition(string, float64, string) (broker.Closure, error) {
	return broker.Closure{}, nil
}

func (b *scriptedBroker) CancelPendingOrder(string) error { return nil }

func (b *scriptedBroker) CloseAll(string) []broker.Closure { return nil }

func (b *scriptedBroker) AccountInfo() broker.AccountInfo { return b.acct }

func (b *scriptedBroker) OpenPositions() []broker.Position { return nil }

func (b *scriptedBroker) PendingOrders() []broker.PendingOrder { return nil }

func (b *scriptedBroker) TradeHistory() []broker.TradeEvent { return nil }

var _ broker.Broker = (*scriptedBroker)(nil)

// stepOrder keeps only the calls that define the per-tick invariant.
func stepOrder(calls []string) []string {
	keep := map[string]bool{"clock": true, "pending": true, "sltp": true, "margin": true, "place": true, "invoke": true}
	var out []string
	for _, c := range calls {
		if keep[c] || c == "market:EURUSD" {
			out = append(out, c)
		}
	}
	return out
}

func TestTickStepOrder(t *testing.T) {
	bars := []market.Candlestick{
		eurusdBar(day0, 1.1000, 1.1010, 1.0995, 1.1005, 1.1004, 1.1006),
		eurusdBar(day0.Add(time.Hour), 1.1005, 1.1008, 1.0995, 1.1003, 1.1002, 1.1004),
	}
	brk := newScriptedBroker()
	strat := &captureStrategy{
		onSnap: func(strategy.Snapshot) { brk.calls = append(brk.calls, "invoke") },
		decide: func(snap strategy.Snapshot) *strategy.Decision {
			return &strategy.Decision{Action: strategy.ExecuteBuy, Size: 0.1, Time: snap.Time}
		},
	}
	e, err := New(strat, brk, map[string][]market.Candlestick{"EURUSD": bars}, "EURUSD")
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	tick := []string{"clock", "market:EURUSD", "pending", "sltp", "margin", "invoke", "place"}
	want := append(append([]string{}, tick...), tick...)
	assert.Equal(t, want, stepOrder(brk.calls))
}

func TestDecisionTranslation(t *testing.T) {
	// The bar pins the reference mid at 1.1000.
	bar := eurusdBar(day0, 1.1000, 1.1010, 1.0990, 1.1000, 1.0999, 1.1001)

	tests := []struct {
		name     string
		dec      strategy.Decision
		wantType broker.OrderType
		wantSide broker.Side
	}{
		{
			name:     "market buy",
			dec:      strategy.Decision{Action: strategy.ExecuteBuy, Size: 0.1},
			wantType: broker.Market,
			wantSide: broker.Buy,
		},
		{
			name:     "buy below market rests as a limit",
			dec:      strategy.Decision{Action: strategy.ExecuteBuy, Size: 0.1, EntryPrice: 1.0990},
			wantType: broker.Limit,
			wantSide: broker.Buy,
		},
		{
			name:     "buy above market rests as a stop",
			dec:      strategy.Decision{Action: strategy.ExecuteBuy, Size: 0.1, EntryPrice: 1.1010},
			wantType: broker.Stop,
			wantSide: broker.Buy,
		},
		{
			name:     "sell above market rests as a limit",
			dec:      strategy.Decision{Action: strategy.ExecuteSell, Size: 0.1, EntryPrice: 1.1010},
			wantType: broker.Limit,
			wantSide: broker.Sell,
		},
		{
			name:     "sell below market rests as a stop",
			dec:      strategy.Decision{Action: strategy.ExecuteSell, Size: 0.1, EntryPrice: 1.0990},
			wantType: broker.Stop,
			wantSide: broker.Sell,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brk := newScriptedBroker()
			dec := tt.dec
			strat := &captureStrategy{decide: func(strategy.Snapshot) *strategy.Decision { return &dec }}
			e, err := New(strat, brk, map[string][]market.Candlestick{"EURUSD": {bar}}, "EURUSD")
			require.NoError(t, err)
			require.NoError(t, e.Run(context.Background()))

			require.Len(t, brk.requests, 1)
			req := brk.requests[0]
			assert.Equal(t, tt.wantType, req.Type)
			assert.Equal(t, tt.wantSide, req.Side)
			assert.Equal(t, "EURUSD", req.Pair)
			if tt.wantType != broker.Market {
				assert.Equal(t, tt.dec.EntryPrice, req.TriggerPrice)
			}
		})
	}
}

func TestNonTradingDecisionsPlaceNothing(t *testing.T) {
	bar := eurusdBar(day0, 1.1000, 1.1010, 1.0990, 1.1000, 1.0999, 1.1001)

	for _, action := range []strategy.Action{strategy.Hold, strategy.StandAside} {
		brk := newScriptedBroker()
		strat := &captureStrategy{decide: func(snap strategy.Snapshot) *strategy.Decision {
			return &strategy.Decision{Action: action, Time: snap.Time}
		}}
		e, err := New(strat, brk, map[string][]market.Candlestick{"EURUSD": {bar}}, "EURUSD")
		require.NoError(t, err)
		require.NoError(t, e.Run(context.Background()))

		assert.Empty(t, brk.requests, "%s must not trade", action)
		assert.Len(t, e.Decisions(), 1, "%s is still recorded", action)
	}
}

func TestDecisionForOtherPairIgnored(t *testing.T) {
	bar := eurusdBar(day0, 1.1000, 1.1010, 1.0990, 1.1000, 1.0999, 1.1001)
	brk := newScriptedBroker()
	strat := &captureStrategy{decide: func(snap strategy.Snapshot) *strategy.Decision {
		return &strategy.Decision{Pair: "USDJPY", Action: strategy.ExecuteBuy, Size: 0.1}
	}}
	e, err := New(strat, brk, map[string][]market.Candlestick{"EURUSD": {bar}}, "EURUSD")
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	assert.Empty(t, brk.requests)
}

func TestRiskPctDrivesSizingWhenSizeOmitted(t *testing.T) {
	bar := eurusdBar(day0, 1.1000, 1.1010, 1.0990, 1.1000, 1.0999, 1.1001)
	brk := newScriptedBroker()

	sl := 1.0950 // 50 pips under the 1.1000 reference mid
	strat := &captureStrategy{decide: func(snap strategy.Snapshot) *strategy.Decision {
		return &strategy.Decision{Action: strategy.ExecuteBuy, RiskPct: 0.01, StopLoss: &sl}
	}}
	e, err := New(strat, brk, map[string][]market.Candlestick{"EURUSD": {bar}}, "EURUSD")
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	require.Len(t, brk.requests, 1)
	// Risking 1% of 100k over a 50 pip stop: 1000 / (50 * 10) = 2 lots.
	assert.InDelta(t, 2.0, brk.requests[0].Size, 1e-9)
}
