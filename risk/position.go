package risk

import (
	"math"

	"github.com/quantfx/backtester/market"
)

// Inputs for risk-based position sizing.
type Inputs struct {
	Equity         float64
	RiskPct        float64 // fraction of equity to risk, e.g. 0.005
	EntryPrice     float64
	StopPrice      float64
	Pair           string
	QuoteToAccount float64 // 1.0 for USD quotes in a USD account
}

// Result of a sizing calculation.
type Result struct {
	Size       float64 // lots
	StopPips   float64
	RiskAmount float64 // account currency
}

// Size converts a risk budget and stop distance into lots: the position
// that loses exactly Equity*RiskPct if the stop is hit. Returns a zero
// Result when the stop distance is zero.
func Size(in Inputs) Result {
	meta := market.Meta(in.Pair)
	pip := meta.PipSize()

	stopPips := math.Abs(in.EntryPrice-in.StopPrice) / pip
	if stopPips == 0 {
		return Result{}
	}

	riskAmt := in.Equity * in.RiskPct
	pipValuePerUnit := pip * in.QuoteToAccount
	units := riskAmt / (stopPips * pipValuePerUnit)

	lots := units / meta.ContractSize
	if lots < meta.MinTradeSize {
		lots = 0
	}

	return Result{
		Size:       lots,
		StopPips:   stopPips,
		RiskAmount: riskAmt,
	}
}
