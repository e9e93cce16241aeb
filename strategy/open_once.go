package strategy

import (
	"context"

	"github.com/quantfx/backtester/market"
	"github.com/quantfx/backtester/pkg/id"
)

// OpenOnce emits a single buy on the first bar it sees, with stop/take
// levels derived from the bar's open. Useful as the simplest strategy
// that exercises the whole order lifecycle.
type OpenOnce struct {
	p      Params
	opened bool
}

func NewOpenOnce(p Params) *OpenOnce {
	if p.RR <= 0 {
		p.RR = 2
	}
	return &OpenOnce{p: p}
}

func (s *OpenOnce) Name() string { return "open-once" }

func (s *OpenOnce) Invoke(ctx context.Context, snap Snapshot) (*Decision, error) {
	if s.opened || snap.Pair != s.p.Pair {
		return nil, nil
	}

	pip := market.Meta(snap.Pair).PipSize()
	stopDist := s.p.StopPips * pip

	var sl, tp *float64
	if stopDist > 0 {
		slv := snap.Bar.Open - stopDist
		tpv := snap.Bar.Open + stopDist*s.p.RR
		sl, tp = &slv, &tpv
	}

	s.opened = true
	return &Decision{
		ID:         id.New(),
		Pair:       snap.Pair,
		Action:     ExecuteBuy,
		Size:       s.p.Size,
		StopLoss:   sl,
		TakeProfit: tp,
		Confidence: 1,
		Rationale:  "open once at first bar",
		Time:       snap.Time,
	}, nil
}
