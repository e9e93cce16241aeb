package strategy

import (
	"context"

	"github.com/quantfx/backtester/indicators"
	"github.com/quantfx/backtester/market"
	"github.com/quantfx/backtester/pkg/id"
)

// EMACross trades fast/slow EMA crossovers on the primary pair: buy on a
// bull cross, sell on a bear cross. Sizing is risk-based via the
// decision's RiskPct; the stop is a fixed pip distance, the take-profit
// an R multiple of it.
type EMACross struct {
	p    Params
	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(p Params) *EMACross {
	if p.Fast <= 0 {
		p.Fast = 20
	}
	if p.Slow <= 0 {
		p.Slow = 50
	}
	if p.RR <= 0 {
		p.RR = 2
	}
	if p.RiskPct <= 0 {
		p.RiskPct = 0.005
	}
	return &EMACross{
		p:    p,
		fast: indicators.NewEMA(p.Fast),
		slow: indicators.NewEMA(p.Slow),
	}
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) Invoke(ctx context.Context, snap Snapshot) (*Decision, error) {
	if snap.Pair != s.p.Pair {
		return nil, nil
	}

	s.fast.Update(snap.Bar)
	s.slow.Update(snap.Bar)
	if !s.fast.Ready() || !s.slow.Ready() {
		return nil, nil
	}

	diff := s.fast.Value() - s.slow.Value()
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return nil, nil
	}

	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	var action Action
	switch {
	case bullCross:
		action = ExecuteBuy
	case bearCross:
		action = ExecuteSell
	default:
		return nil, nil
	}

	// One position at a time: crosses while a trade is open only flag the
	// signal, the open trade rides its stop/take.
	if len(snap.Positions) > 0 {
		return &Decision{
			ID:        id.New(),
			Pair:      snap.Pair,
			Action:    Hold,
			Rationale: "cross while position open",
			Time:      snap.Time,
		}, nil
	}

	pip := market.Meta(snap.Pair).PipSize()
	sign := action.Side().Sign()
	price := snap.Bar.Close
	sl := price - sign*s.p.StopPips*pip
	tp := price + sign*s.p.StopPips*pip*s.p.RR

	return &Decision{
		ID:         id.New(),
		Pair:       snap.Pair,
		Action:     action,
		RiskPct:    s.p.RiskPct,
		StopLoss:   &sl,
		TakeProfit: &tp,
		Confidence: 0.6,
		Rationale:  "ema crossover",
		Time:       snap.Time,
	}, nil
}
