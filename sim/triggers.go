package sim

import (
	"go.uber.org/zap"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
)

// CheckSLTPTriggers closes every open position whose stop-loss or
// take-profit was crossed by the latest bar's range. The close executes
// at the triggered level itself and realizes P/L into the balance.
//
// When one bar crosses both levels the stop-loss wins: a bar gives no
// intra-bar ordering, so assume the worse outcome.
func (b *Broker) CheckSLTPTriggers() []broker.Closure {
	b.mu.Lock()
	defer b.mu.Unlock()

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

		level, reason, hit := exitLevel(*p, bar)
		if !hit {
			continue
		}

		c, err := b.closeLocked(p, p.Size, level, reason)
		if err != nil {
			b.log.Error("sl/tp close failed", zap.String("position", pid), zap.Error(err))
			continue
		}
		closures = append(closures, c)
	}
	return closures
}

// exitLevel evaluates stop/take against a bar's high/low range.
func exitLevel(p broker.Position, bar market.Candlestick) (level float64, reason string, hit bool) {
	var stopHit, takeHit bool

	if p.Side == broker.Buy {
		stopHit = p.StopLoss != nil && bar.Low <= *p.StopLoss
		takeHit = p.TakeProfit != nil && bar.High >= *p.TakeProfit
	} else {
		stopHit = p.StopLoss != nil && bar.High >= *p.StopLoss
		takeHit = p.TakeProfit != nil && bar.Low <= *p.TakeProfit
	}

	switch {
	case stopHit:
		return *p.StopLoss, broker.ReasonStopLoss, true
	case takeHit:
		return *p.TakeProfit, broker.ReasonTakeProfit, true
	}
	return 0, "", false
}
