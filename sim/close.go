package sim

import (
	"fmt"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/journal"
	"github.com/quantfx/backtester/market"
)

func errNotFound(kind, id string) error {
	return fmt.Errorf("sim: %s %q not found", kind, id)
}

// closeLocked realizes size lots of a position at price. A full close
// removes the position from the open set; a partial close shrinks it in
// place. Balance, equity and margin are all consistent on return.
func (b *Broker) closeLocked(p *broker.Position, size, price float64, reason string) (broker.Closure, error) {
	if size <= 0 || size > p.Size {
		size = p.Size
	}

	rate, err := market.QuoteToAccountRate(p.Pair, b.acct.Currency, b)
	if err != nil {
		return broker.Closure{}, err
	}

	units := size * market.Meta(p.Pair).ContractSize
	pl := p.Side.Sign() * units * (price - p.OpenPrice) * rate
	b.acct.Balance += pl

	if size >= p.Size {
		delete(b.positions, p.ID)
	} else {
		p.Size -= size
	}

	c := broker.Closure{
		PositionID: p.ID,
		Pair:       p.Pair,
		Side:       p.Side,
		Size:       size,
		ClosePrice: price,
		Time:       b.now,
		RealizedPL: pl,
		Reason:     reason,
	}

	b.history = append(b.history, broker.TradeEvent{
		Kind:       broker.EventClose,
		PositionID: p.ID,
		Pair:       p.Pair,
		Side:       p.Side,
		Size:       size,
		Price:      price,
		Time:       b.now,
		RealizedPL: pl,
		Reason:     reason,
	})

	if err := b.journal.RecordTrade(journal.TradeRecord{
		TradeID:    p.ID,
		Pair:       p.Pair,
		Side:       p.Side.String(),
		Size:       size,
		EntryPrice: p.OpenPrice,
		ExitPrice:  price,
		OpenTime:   p.OpenTime,
		CloseTime:  b.now,
		RealizedPL: pl,
		Reason:     reason,
	}); err != nil {
		return c, err
	}

	if err := b.revalueLocked(); err != nil {
		return c, err
	}
	return c, b.recomputeMarginLocked()
}

// ClosePosition closes size lots of an open position at the current
// market price. size <= 0 closes the whole position.
func (b *Broker) ClosePosition(positionID string, size float64, reason string) (broker.Closure, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[positionID]
	if !ok {
		return broker.Closure{}, errNotFound("position", positionID)
	}
	bar, ok := b.bars[p.Pair]
	if !ok {
		return broker.Closure{}, fmt.Errorf("sim: close: no market data for %s", p.Pair)
	}
	if reason == "" {
		reason = broker.ReasonManual
	}

	return b.closeLocked(p, size, closeSide(bar, p.Side), reason)
}

// CloseAll closes every open position at current market prices.
func (b *Broker) CloseAll(reason string) []broker.Closure {
	b.mu.Lock()
	defer b.mu.Unlock()

	if reason == "" {
		reason = broker.ReasonManual
	}

	var closures []broker.Closure
	for _, pid := range b.positionIDsLocked() {
		p, ok := b.positions[pid]
		if !ok {
			continue
		}
		bar, ok := b.bars[p.Pair]
		if !ok {
			continue
		}
		c, err := b.closeLocked(p, p.Size, closeSide(bar, p.Side), reason)
		if err != nil {
			continue
		}
		closures = append(closures, c)
	}
	return closures
}

// ModifyPosition replaces a position's stop-loss and take-profit. A nil
// pointer clears the corresponding level.
func (b *Broker) ModifyPosition(positionID string, stopLoss, takeProfit *float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[positionID]
	if !ok {
		return errNotFound("position", positionID)
	}
	p.StopLoss = stopLoss
	p.TakeProfit = takeProfit
	return nil
}
