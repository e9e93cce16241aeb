package sim

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
)

// revalueLocked recomputes each position's unrealized P/L and the account
// equity from the latest bars.
func (b *Broker) revalueLocked() error {
	equity := b.acct.Balance

	for _, id := range b.positionIDsLocked() {
		p := b.positions[id]
		bar, ok := b.bars[p.Pair]
		if !ok {
			return fmt.Errorf("sim: revalue: no market data for %s", p.Pair)
		}

		rate, err := market.QuoteToAccountRate(p.Pair, b.acct.Currency, b)
		if err != nil {
			return err
		}

		p.UnrealizedPL = UnrealizedPL(*p, closeSide(bar, p.Side), rate)
		equity += p.UnrealizedPL
	}

	b.acct.Equity = equity
	return nil
}

// recomputeMarginLocked rebuilds margin used, free margin and margin
// level. Margin is valued at mid.
func (b *Broker) recomputeMarginLocked() error {
	var used float64

	for _, id := range b.positionIDsLocked() {
		p := b.positions[id]
		bar, ok := b.bars[p.Pair]
		if !ok {
			return fmt.Errorf("sim: margin: no market data for %s", p.Pair)
		}

		rate, err := market.QuoteToAccountRate(p.Pair, b.acct.Currency, b)
		if err != nil {
			return err
		}

		used += RequiredMargin(p.Pair, p.Size, bar.Mid(), rate)
	}

	b.acct.Margin = used
	b.acct.FreeMargin = b.acct.Equity - used

	if used > 0 {
		b.acct.MarginLevel = b.acct.Equity / used * 100
	} else {
		b.acct.MarginLevel = math.Inf(1)
	}
	return nil
}

// CheckMarginCall force-closes the position with the worst unrealized
// loss, repeatedly, until the margin level recovers above the configured
// threshold or no positions remain. This is a hard liquidation.
func (b *Broker) CheckMarginCall() []broker.Closure {
	b.mu.Lock()
	defer b.mu.Unlock()

	var closures []broker.Closure

	for {
		if b.acct.Margin <= 0 || b.acct.MarginLevel >= b.cfg.MarginCallLevel {
			return closures
		}

		var worst *broker.Position
		var worstPL float64
		for _, id := range b.positionIDsLocked() {
			p := b.positions[id]
			if worst == nil || p.UnrealizedPL < worstPL {
				worst = p
				worstPL = p.UnrealizedPL
			}
		}
		if worst == nil {
			return closures
		}

		bar := b.bars[worst.Pair]
		c, err := b.closeLocked(worst, worst.Size, closeSide(bar, worst.Side), broker.ReasonMarginCall)
		if err != nil {
			b.log.Error("margin call close failed", zap.String("position", worst.ID), zap.Error(err))
			return closures
		}

		b.log.Warn("margin call liquidation",
			zap.String("position", c.PositionID),
			zap.String("pair", c.Pair),
			zap.Float64("realized_pl", c.RealizedPL),
			zap.Float64("margin_level", b.acct.MarginLevel),
		)
		closures = append(closures, c)
	}
}
