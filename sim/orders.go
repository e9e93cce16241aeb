package sim

import (
	"go.uber.org/zap"

	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/market"
	"github.com/quantfx/backtester/pkg/id"
)

// PlaceOrder executes a market order against the latest bar or books a
// limit/stop order. Expected business failures (bad size, unknown pair,
// insufficient margin) come back as a rejected result, never an error.
func (b *Broker) PlaceOrder(req broker.OrderRequest) broker.OrderResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	orderID := id.New()
	reject := func(reason string) broker.OrderResult {
		b.log.Info("order rejected",
			zap.String("order", orderID),
			zap.String("pair", req.Pair),
			zap.String("reason", reason),
		)
		return broker.OrderResult{
			OrderID: orderID,
			Status:  broker.StatusRejected,
			Reason:  reason,
			Pair:    req.Pair,
			Side:    req.Side,
			Size:    req.Size,
			Time:    b.now,
		}
	}

	if req.Size <= 0 {
		return reject(broker.ReasonInvalidSize)
	}
	bar, ok := b.bars[req.Pair]
	if !ok {
		return reject(broker.ReasonNoMarketData)
	}

	switch req.Type {
	case broker.Limit, broker.Stop:
		if req.TriggerPrice <= 0 {
			return reject(broker.ReasonNoTriggerPrice)
		}
		po := &broker.PendingOrder{
			ID:           orderID,
			Pair:         req.Pair,
			Side:         req.Side,
			Type:         req.Type,
			TriggerPrice: req.TriggerPrice,
			Size:         req.Size,
			StopLoss:     req.StopLoss,
			TakeProfit:   req.TakeProfit,
			Created:      b.now,
		}
		b.pending[po.ID] = po
		return broker.OrderResult{
			OrderID: po.ID,
			Status:  broker.StatusPending,
			Pair:    req.Pair,
			Side:    req.Side,
			Size:    req.Size,
			Time:    b.now,
		}

	default: // market
		price := b.marketFillPrice(bar, req.Side)
		return b.fillLocked(orderID, req, price)
	}
}

// marketFillPrice is the immediate execution price: buys lift the ask,
// sells hit the bid, both worsened by the configured slippage.
func (b *Broker) marketFillPrice(bar market.Candlestick, side broker.Side) float64 {
	slip := b.cfg.SlippagePips * market.Meta(bar.Pair).PipSize()
	if side == broker.Buy {
		return bar.AskClose + slip
	}
	return bar.BidClose - slip
}

// fillLocked runs the shared margin check and opens a position. Pending
// order conversions reuse this path so a triggered order that no longer
// fits in free margin is refused the same way a fresh market order is.
func (b *Broker) fillLocked(orderID string, req broker.OrderRequest, price float64) broker.OrderResult {
	rejected := broker.OrderResult{
		OrderID: orderID,
		Status:  broker.StatusRejected,
		Pair:    req.Pair,
		Side:    req.Side,
		Size:    req.Size,
		Time:    b.now,
	}

	rate, err := market.QuoteToAccountRate(req.Pair, b.acct.Currency, b)
	if err != nil {
		rejected.Reason = broker.ReasonNoMarketData
		b.log.Info("order rejected", zap.String("order", orderID), zap.Error(err))
		return rejected
	}

	required := RequiredMargin(req.Pair, req.Size, price, rate)
	if required > b.acct.FreeMargin {
		rejected.Reason = broker.ReasonInsufficientMargin
		b.log.Info("order rejected",
			zap.String("order", orderID),
			zap.String("pair", req.Pair),
			zap.Float64("required_margin", required),
			zap.Float64("free_margin", b.acct.FreeMargin),
		)
		return rejected
	}

	pos := &broker.Position{
		ID:         id.New(),
		Pair:       req.Pair,
		Side:       req.Side,
		Size:       req.Size,
		OpenPrice:  price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenTime:   b.now,
	}
	b.positions[pos.ID] = pos

	b.history = append(b.history, broker.TradeEvent{
		Kind:       broker.EventFill,
		OrderID:    orderID,
		PositionID: pos.ID,
		Pair:       pos.Pair,
		Side:       pos.Side,
		Size:       pos.Size,
		Price:      price,
		Time:       b.now,
		Reason:     req.Comment,
	})

	// Revalue so equity and margin reflect the new position immediately.
	if err := b.revalueLocked(); err != nil {
		b.log.Error("revalue after fill", zap.Error(err))
	}
	if err := b.recomputeMarginLocked(); err != nil {
		b.log.Error("margin after fill", zap.Error(err))
	}

	return broker.OrderResult{
		OrderID:    orderID,
		PositionID: pos.ID,
		Status:     broker.StatusFilled,
		Pair:       pos.Pair,
		Side:       pos.Side,
		Size:       pos.Size,
		FillPrice:  price,
		Time:       b.now,
	}
}

// ProcessPendingOrders converts every pending order whose trigger is
// crossed by the latest bar into a position. A triggered order that no
// longer fits in free margin is cancelled outright, never part-filled.
func (b *Broker) ProcessPendingOrders() []broker.OrderResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	var results []broker.OrderResult

	for _, oid := range b.pendingIDsLocked() {
		po := b.pending[oid]
		bar, ok := b.bars[po.Pair]
		if !ok {
			continue
		}
		if !triggered(*po, bar) {
			continue
		}

		delete(b.pending, oid)

		price := po.TriggerPrice
		if po.Type == broker.Stop {
			// Stop orders chase the market; slippage works against the
			// trader. Limits fill at their price exactly.
			slip := b.cfg.SlippagePips * market.Meta(po.Pair).PipSize()
			price += po.Side.Sign() * slip
		}

		res := b.fillLocked(po.ID, broker.OrderRequest{
			Pair:       po.Pair,
			Side:       po.Side,
			Type:       po.Type,
			Size:       po.Size,
			StopLoss:   po.StopLoss,
			TakeProfit: po.TakeProfit,
		}, price)

		if res.Status == broker.StatusRejected {
			res.Status = broker.StatusCancelled
			b.log.Info("pending order cancelled at trigger",
				zap.String("order", po.ID),
				zap.String("reason", res.Reason),
			)
		}
		results = append(results, res)
	}
	return results
}

// triggered reports whether the latest bar crossed a pending order's
// trigger. Limits fill on touch-or-better, stops on touch-or-worse.
func triggered(po broker.PendingOrder, bar market.Candlestick) bool {
	switch {
	case po.Side == broker.Buy && po.Type == broker.Limit:
		return bar.Low <= po.TriggerPrice
	case po.Side == broker.Buy && po.Type == broker.Stop:
		return bar.High >= po.TriggerPrice
	case po.Side == broker.Sell && po.Type == broker.Limit:
		return bar.High >= po.TriggerPrice
	case po.Side == broker.Sell && po.Type == broker.Stop:
		return bar.Low <= po.TriggerPrice
	}
	return false
}

// CancelPendingOrder discards a booked order without execution.
func (b *Broker) CancelPendingOrder(orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.pending[orderID]; !ok {
		return errNotFound("pending order", orderID)
	}
	delete(b.pending, orderID)
	return nil
}
