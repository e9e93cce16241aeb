package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/journal"
	"github.com/quantfx/backtester/market"
	"github.com/quantfx/backtester/strategy"
)

// EquityPoint is one sample of the account equity, taken once per tick
// after all broker maintenance has run.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Engine replays historical bars through a broker and a strategy. One
// run, single-threaded, deterministic: the primary pair's series defines
// the tick cadence.
type Engine struct {
	strat   strategy.Strategy
	brk     broker.Broker
	data    map[string][]market.Candlestick
	primary string
	pairs   []string

	cursors map[string]int
	latest  map[string]market.Candlestick

	curve     []EquityPoint
	decisions []strategy.Decision
	rejected  []broker.OrderResult

	startEquity float64
	journal     journal.Journal
	log         *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a structured logger for rejections, liquidations
// and run progress.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithJournal records one equity snapshot per tick.
func WithJournal(j journal.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// New validates the run configuration. The primary pair must be present
// in the data mapping with a non-empty series; without its timeline
// there is no tick cadence and the run cannot start.
func New(strat strategy.Strategy, brk broker.Broker, data map[string][]market.Candlestick, primary string, opts ...Option) (*Engine, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}
	if brk == nil {
		return nil, fmt.Errorf("backtest: broker is required")
	}

	primary = strings.ToUpper(primary)
	series, ok := data[primary]
	if !ok {
		return nil, fmt.Errorf("backtest: primary pair %s not in data set", primary)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("backtest: no bars for primary pair %s", primary)
	}

	pairs := make([]string, 0, len(data))
	for pair := range data {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	e := &Engine{
		strat:   strat,
		brk:     brk,
		data:    data,
		primary: primary,
		pairs:   pairs,
		cursors: make(map[string]int, len(data)),
		latest:  make(map[string]market.Candlestick, len(data)),
		journal: journal.Nop{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run replays the primary pair's bars in order. The per-tick step order
// is an invariant: clock, market data for every pair, pending orders,
// SL/TP, margin call, strategy decision, order placement, equity sample.
// Maintenance must see the current bar before the strategy does, and the
// equity sample must reflect that same tick's maintenance and fills.
func (e *Engine) Run(ctx context.Context) error {
	series := e.data[e.primary]

	e.startEquity = e.brk.AccountInfo().Equity
	e.log.Info("backtest starting",
		zap.String("primary", e.primary),
		zap.Int("bars", len(series)),
		zap.Float64("equity", e.startEquity),
	)

	for i, bar := range series {
		e.brk.UpdateCurrentTime(bar.Time)

		// Advance every pair to its latest bar at or before this
		// timestamp, then push the snapshot into the broker before any
		// maintenance or decision step.
		for _, pair := range e.pairs {
			if err := e.syncPair(pair, bar.Time); err != nil {
				return fmt.Errorf("backtest: bar %d: %w", i, err)
			}
		}

		for _, res := range e.brk.ProcessPendingOrders() {
			e.log.Info("pending order processed",
				zap.String("order", res.OrderID),
				zap.String("status", string(res.Status)),
				zap.Float64("price", res.FillPrice),
			)
		}
		for _, c := range e.brk.CheckSLTPTriggers() {
			e.log.Info("position closed",
				zap.String("position", c.PositionID),
				zap.String("reason", c.Reason),
				zap.Float64("realized_pl", c.RealizedPL),
			)
		}
		e.brk.CheckMarginCall()

		dec, err := e.strat.Invoke(ctx, e.snapshot(bar))
		if err != nil {
			return fmt.Errorf("backtest: strategy %s at bar %d: %w", e.strat.Name(), i, err)
		}
		if dec != nil {
			e.decisions = append(e.decisions, *dec)
			e.placeDecision(*dec)
		}

		acct := e.brk.AccountInfo()
		e.curve = append(e.curve, EquityPoint{Time: bar.Time, Equity: acct.Equity})
		if err := e.journal.RecordEquity(journal.EquitySnapshot{
			Time:        bar.Time,
			Balance:     acct.Balance,
			Equity:      acct.Equity,
			Margin:      acct.Margin,
			FreeMargin:  acct.FreeMargin,
			MarginLevel: acct.MarginLevel,
		}); err != nil {
			return fmt.Errorf("backtest: record equity: %w", err)
		}
	}

	final := e.brk.AccountInfo()
	e.log.Info("backtest finished",
		zap.Int("ticks", len(e.curve)),
		zap.Float64("balance", final.Balance),
		zap.Float64("equity", final.Equity),
	)
	return nil
}

// syncPair pushes a pair's newest bar at or before ts into the broker.
// Pairs with no bar yet (e.g. series starting later than the primary's)
// are skipped until their first bar is due.
func (e *Engine) syncPair(pair string, ts time.Time) error {
	series := e.data[pair]
	cur := e.cursors[pair]

	advanced := false
	for cur < len(series) && !series[cur].Time.After(ts) {
		e.latest[pair] = series[cur]
		cur++
		advanced = true
	}
	e.cursors[pair] = cur

	if !advanced {
		if _, seen := e.latest[pair]; !seen {
			return nil
		}
	}
	return e.brk.UpdateMarketData(pair, e.latest[pair])
}

func (e *Engine) snapshot(bar market.Candlestick) strategy.Snapshot {
	mkt := make(map[string]market.Candlestick, len(e.latest))
	for pair, b := range e.latest {
		mkt[pair] = b
	}
	return strategy.Snapshot{
		Pair:      e.primary,
		Time:      bar.Time,
		Bar:       bar,
		Market:    mkt,
		Account:   e.brk.AccountInfo(),
		Positions: e.brk.OpenPositions(),
		Pending:   e.brk.PendingOrders(),
		Decisions: e.decisions,
	}
}

// LatestMid satisfies market.PriceSource from the engine's own bar
// cursor state, for sizing conversions.
func (e *Engine) LatestMid(pair string) (float64, error) {
	bar, ok := e.latest[pair]
	if !ok {
		return 0, fmt.Errorf("backtest: no market data for %s", pair)
	}
	return bar.Mid(), nil
}

// EquityCurve returns the per-tick equity samples in timestamp order.
func (e *Engine) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, len(e.curve))
	copy(out, e.curve)
	return out
}

// Decisions returns every non-nil decision the strategy emitted.
func (e *Engine) Decisions() []strategy.Decision {
	out := make([]strategy.Decision, len(e.decisions))
	copy(out, e.decisions)
	return out
}

// RejectedOrders returns the order results the broker refused.
func (e *Engine) RejectedOrders() []broker.OrderResult {
	out := make([]broker.OrderResult, len(e.rejected))
	copy(out, e.rejected)
	return out
}

// TradeHistory exposes the broker's fill/close events for reporting.
func (e *Engine) TradeHistory() []broker.TradeEvent {
	return e.brk.TradeHistory()
}
