package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
)

// Action is the decision verb a strategy emits.
type Action string

const (
	ExecuteBuy  Action = "EXECUTE_BUY"
	ExecuteSell Action = "EXECUTE_SELL"
	Hold        Action = "HOLD"
	StandAside  Action = "STAND_ASIDE"
)

// Trades reports whether the action implies placing an order.
func (a Action) Trades() bool {
	return a == ExecuteBuy || a == ExecuteSell
}

// Side maps a trading action to an order side.
func (a Action) Side() broker.Side {
	if a == ExecuteSell {
		return broker.Sell
	}
	return broker.Buy
}

// Decision is a strategy's verdict for one tick. The engine treats it as
// opaque input: it translates trading actions into order requests and
// otherwise neither mutates nor keeps it beyond the run's record.
type Decision struct {
	ID         string
	Pair       string
	Action     Action
	Size       float64 // lots; 0 lets RiskPct drive sizing
	RiskPct    float64 // fraction of equity to risk, used when Size is 0
	EntryPrice float64 // 0 requests a market fill
	StopLoss   *float64
	TakeProfit *float64
	Confidence float64
	Rationale  string
	Time       time.Time
}

// Snapshot is the engine state handed to a strategy each tick: the
// current bar for the primary pair, the latest bar for every tracked
// pair, and read-only account/portfolio state. Strategies return a new
// Decision (or nil for no action) instead of writing into shared state.
type Snapshot struct {
	Pair      string
	Time      time.Time
	Bar       market.Candlestick
	Market    map[string]market.Candlestick
	Account   broker.AccountInfo
	Positions []broker.Position
	Pending   []broker.PendingOrder
	Decisions []Decision // decisions already emitted this run
}

// Strategy is invoked once per simulated tick. Invoke must be
// synchronous: the run loop's step ordering depends on the decision being
// complete before order placement. A nil decision means no action.
type Strategy interface {
	Name() string
	Invoke(ctx context.Context, snap Snapshot) (*Decision, error)
}

// Params carries the knobs shared by the built-in strategies.
type Params struct {
	Pair     string
	Size     float64 // lots
	RiskPct  float64 // fraction of equity risked per trade (ema-cross)
	StopPips float64
	RR       float64 // take profit as a multiple of the stop distance
	Interval int     // bars between trades (alternating strategy)
	Fast     int     // fast EMA period (ema-cross)
	Slow     int     // slow EMA period (ema-cross)
}

// ByName builds one of the built-in strategies.
func ByName(name string, p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil
	case "open-once":
		return NewOpenOnce(p), nil
	case "alternating":
		return NewAlternating(p), nil
	case "ema-cross", "emacross":
		return NewEMACross(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, open-once, alternating, ema-cross)", name)
	}
}
