package backtest

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
	"github.com/quantfx/backtester/risk"
	"github.com/quantfx/backtester/strategy"
)

// placeDecision translates a trading decision into an order request and
// forwards it to the broker. A rejected order is recorded and logged; it
// never ends the run.
func (e *Engine) placeDecision(dec strategy.Decision) {
	if !dec.Action.Trades() {
		return
	}
	if dec.Pair != "" && dec.Pair != e.primary {
		e.log.Debug("decision ignored for non-primary pair",
			zap.String("decision", dec.ID),
			zap.String("pair", dec.Pair),
		)
		return
	}

	side := dec.Action.Side()
	ref, err := e.LatestMid(e.primary)
	if err != nil {
		e.log.Warn("decision dropped", zap.String("decision", dec.ID), zap.Error(err))
		return
	}

	req := broker.OrderRequest{
		Pair:       e.primary,
		Side:       side,
		Type:       broker.Market,
		Size:       dec.Size,
		StopLoss:   dec.StopLoss,
		TakeProfit: dec.TakeProfit,
		Comment:    fmt.Sprintf("decision %s: %s", dec.ID, dec.Action),
	}

	// An explicit entry away from the current market becomes a resting
	// order: below-market buys (and above-market sells) wait as limits,
	// the opposite side as stops.
	if dec.EntryPrice > 0 && dec.EntryPrice != ref {
		req.TriggerPrice = dec.EntryPrice
		if (side == broker.Buy) == (dec.EntryPrice < ref) {
			req.Type = broker.Limit
		} else {
			req.Type = broker.Stop
		}
	}

	if req.Size <= 0 && dec.RiskPct > 0 && dec.StopLoss != nil {
		acct := e.brk.AccountInfo()
		rate, err := market.QuoteToAccountRate(e.primary, acct.Currency, e)
		if err != nil {
			rate = 1.0
		}
		entry := ref
		if req.TriggerPrice > 0 {
			entry = req.TriggerPrice
		}
		req.Size = risk.Size(risk.Inputs{
			Equity:         acct.Equity,
			RiskPct:        dec.RiskPct,
			EntryPrice:     entry,
			StopPrice:      *dec.StopLoss,
			Pair:           e.primary,
			QuoteToAccount: rate,
		}).Size
	}

	res := e.brk.PlaceOrder(req)
	switch res.Status {
	case broker.StatusRejected:
		e.rejected = append(e.rejected, res)
		e.log.Info("order rejected",
			zap.String("decision", dec.ID),
			zap.String("reason", res.Reason),
		)
	case broker.StatusFilled:
		e.log.Info("order filled",
			zap.String("decision", dec.ID),
			zap.String("position", res.PositionID),
			zap.Float64("price", res.FillPrice),
		)
	case broker.StatusPending:
		e.log.Info("order resting",
			zap.String("decision", dec.ID),
			zap.String("order", res.OrderID),
			zap.String("type", string(req.Type)),
		)
	}
}
