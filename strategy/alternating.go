package strategy

import (
	"context"

	"github.com/quantfx/backtester/market"
	"github.com/quantfx/backtester/pkg/id"
)

// Alternating trades every Interval bars, flipping direction each time.
// It is the deterministic stand-in for a real decision pipeline: enough
// churn to exercise fills, stops and margin over a long replay.
type Alternating struct {
	p        Params
	lastSide Action
	cooldown int
}

func NewAlternating(p Params) *Alternating {
	if p.Interval <= 0 {
		p.Interval = 20
	}
	if p.RR <= 0 {
		p.RR = 2
	}
	return &Alternating{p: p, lastSide: ExecuteSell}
}

func (s *Alternating) Name() string { return "alternating" }

func (s *Alternating) Invoke(ctx context.Context, snap Snapshot) (*Decision, error) {
	if snap.Pair != s.p.Pair {
		return nil, nil
	}

	s.cooldown--
	if s.cooldown > 0 {
		return nil, nil
	}
	s.cooldown = s.p.Interval

	action := ExecuteBuy
	if s.lastSide == ExecuteBuy {
		action = ExecuteSell
	}
	s.lastSide = action

	pip := market.Meta(snap.Pair).PipSize()
	stopDist := s.p.StopPips * pip
	price := snap.Bar.Close

	var sl, tp *float64
	if stopDist > 0 {
		sign := action.Side().Sign()
		slv := price - sign*stopDist
		tpv := price + sign*stopDist*s.p.RR
		sl, tp = &slv, &tpv
	}

	return &Decision{
		ID:         id.New(),
		Pair:       snap.Pair,
		Action:     action,
		Size:       s.p.Size,
		StopLoss:   sl,
		TakeProfit: tp,
		Confidence: 0.5,
		Rationale:  "periodic alternating entry",
		Time:       snap.Time,
	}, nil
}
