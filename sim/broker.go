package sim

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/journal"
	"github.com/quantfx/backtester/market"
)

// Config tunes the simulated execution model.
type Config struct {
	// MarginCallLevel is the margin level (percent) below which open
	// positions are force-closed. Defaults to 100.
	MarginCallLevel float64

	// SlippagePips is applied against the trader on market and stop
	// fills. Deterministic, no randomness.
	SlippagePips float64
}

// Broker is the in-memory simulated broker. It owns the trading account,
// the open position and pending order books, and its own notion of
// current time and current prices. State evolves only through time
// advancement and market data, never wall-clock time.
type Broker struct {
	mu   sync.Mutex
	cfg  Config
	acct broker.AccountInfo
	now  time.Time

	bars      map[string]market.Candlestick
	positions map[string]*broker.Position
	pending   map[string]*broker.PendingOrder
	history   []broker.TradeEvent

	journal journal.Journal
	log     *zap.Logger
}

var _ broker.Broker = (*Broker)(nil)

func New(acct broker.AccountInfo, cfg Config, j journal.Journal, log *zap.Logger) *Broker {
	if cfg.MarginCallLevel <= 0 {
		cfg.MarginCallLevel = 100
	}
	if j == nil {
		j = journal.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if acct.Equity == 0 {
		acct.Equity = acct.Balance
	}
	acct.FreeMargin = acct.Equity
	acct.MarginLevel = math.Inf(1)

	return &Broker{
		cfg:       cfg,
		acct:      acct,
		bars:      make(map[string]market.Candlestick),
		positions: make(map[string]*broker.Position),
		pending:   make(map[string]*broker.PendingOrder),
		journal:   j,
		log:       log,
	}
}

// UpdateCurrentTime advances the simulation clock. The clock is monotonic:
// the run loop replays bars forward only, so a decreasing timestamp means
// the caller is broken, not the market.
func (b *Broker) UpdateCurrentTime(t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.Before(b.now) {
		panic(fmt.Sprintf("sim: clock moved backward: %s -> %s",
			b.now.Format(time.RFC3339), t.Format(time.RFC3339)))
	}
	b.now = t
}

// UpdateMarketData records the latest bar for a pair, then marks every
// open position to market and recomputes margin so subsequent checks see
// a consistent snapshot.
func (b *Broker) UpdateMarketData(pair string, bar market.Candlestick) error {
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("sim: update market data: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if bar.Pair == "" {
		bar.Pair = pair
	}
	b.bars[pair] = bar

	if err := b.revalueLocked(); err != nil {
		return err
	}
	return b.recomputeMarginLocked()
}

// LatestMid satisfies market.PriceSource for quote conversion.
func (b *Broker) LatestMid(pair string) (float64, error) {
	bar, ok := b.bars[pair]
	if !ok {
		return 0, fmt.Errorf("sim: no market data for %s", pair)
	}
	return bar.Mid(), nil
}

// AccountInfo returns a snapshot of the account. Pure read.
func (b *Broker) AccountInfo() broker.AccountInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acct
}

// OpenPositions returns copies of the open positions ordered by ID
// (ULIDs, so effectively by open time).
func (b *Broker) OpenPositions() []broker.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]broker.Position, 0, len(b.positions))
	for _, id := range b.positionIDsLocked() {
		out = append(out, *b.positions[id])
	}
	return out
}

// PendingOrders returns copies of the booked pending orders ordered by ID.
func (b *Broker) PendingOrders() []broker.PendingOrder {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]broker.PendingOrder, 0, len(b.pending))
	for _, id := range b.pendingIDsLocked() {
		out = append(out, *b.pending[id])
	}
	return out
}

// TradeHistory returns the fill and closure events in occurrence order.
func (b *Broker) TradeHistory() []broker.TradeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]broker.TradeEvent, len(b.history))
	copy(out, b.history)
	return out
}

// positionIDsLocked returns open position IDs sorted ascending. Sorted
// iteration keeps liquidation and trigger order reproducible run to run.
func (b *Broker) positionIDsLocked() []string {
	ids := make([]string, 0, len(b.positions))
	for id := range b.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *Broker) pendingIDsLocked() []string {
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// closeSide returns the price a position exits at: longs close on bid,
// shorts on ask.
func closeSide(bar market.Candlestick, side broker.Side) float64 {
	if side == broker.Buy {
		return bar.BidClose
	}
	return bar.AskClose
}
