package broker

import (
	"time"

	"github.com/quantfx/backtester/market"
)

// Broker is the execution contract the backtesting engine drives. The
// simulated implementation lives in the sim package; a live binding would
// satisfy the same interface and the engine never inspects which one it
// holds.
type Broker interface {
	// UpdateCurrentTime advances the broker clock. Callers must feed
	// non-decreasing timestamps; moving the clock backward is a contract
	// violation and panics.
	UpdateCurrentTime(t time.Time)

	// UpdateMarketData records the latest bar for a pair and marks open
	// positions to market. All tracked pairs are updated before any
	// maintenance pass runs so every check sees one consistent snapshot.
	UpdateMarketData(pair string, bar market.Candlestick) error

	// PlaceOrder attempts a fill (market) or books a pending order
	// (limit/stop). Business rejections come back as a result status, not
	// an error.
	PlaceOrder(req OrderRequest) OrderResult

	// ProcessPendingOrders fills every pending order whose trigger is
	// crossed by the latest bar and returns the resulting fills.
	ProcessPendingOrders() []OrderResult

	// CheckSLTPTriggers closes positions whose stop-loss or take-profit
	// is crossed by the latest bar range. Stop-loss wins a same-bar tie.
	CheckSLTPTriggers() []Closure

	// CheckMarginCall force-closes the worst-losing positions until the
	// margin level recovers above the configured threshold.
	CheckMarginCall() []Closure

	// ModifyPosition replaces a position's stop-loss and/or take-profit.
	ModifyPosition(positionID string, stopLoss, takeProfit *float64) error

	// ClosePosition closes size lots of a position at the current market
	// price; size <= 0 closes the whole position.
	ClosePosition(positionID string, size float64, reason string) (Closure, error)

	// CancelPendingOrder discards a pending order without execution.
	CancelPendingOrder(orderID string) error

	// CloseAll closes every open position at current market prices.
	CloseAll(reason string) []Closure

	AccountInfo() AccountInfo
	OpenPositions() []Position
	PendingOrders() []PendingOrder
	TradeHistory() []TradeEvent
}

// Side of an order or position.
type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) Sign() float64 {
	return float64(s)
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

// OrderType selects the execution style.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
	Stop   OrderType = "STOP"
)

// OrderRequest is a broker-agnostic order. Size is in lots. TriggerPrice
// applies to limit and stop orders only.
type OrderRequest struct {
	Pair         string
	Side         Side
	Type         OrderType
	Size         float64
	TriggerPrice float64
	StopLoss     *float64
	TakeProfit   *float64
	Comment      string
}

// Status of an order outcome.
type Status string

const (
	StatusFilled    Status = "FILLED"
	StatusPending   Status = "PENDING"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Rejection reasons returned in OrderResult.Reason.
const (
	ReasonInvalidSize        = "invalid size"
	ReasonNoMarketData       = "no market data for pair"
	ReasonInsufficientMargin = "insufficient free margin"
	ReasonNoTriggerPrice     = "limit/stop order needs a trigger price"
)

// OrderResult is the typed outcome of PlaceOrder and of pending-order
// processing. Rejected orders carry a Reason and no position.
type OrderResult struct {
	OrderID    string
	PositionID string
	Status     Status
	Reason     string
	Pair       string
	Side       Side
	Size       float64
	FillPrice  float64
	Time       time.Time
}

// AccountInfo is a read-only snapshot of the trading account. MarginLevel
// is Equity/Margin*100 when margin is in use, +Inf otherwise.
type AccountInfo struct {
	AccountID   string
	Currency    string
	Balance     float64
	Equity      float64
	Margin      float64
	FreeMargin  float64
	MarginLevel float64
}

// Position is one open trade. Size is in lots and shrinks in place on
// partial closes.
type Position struct {
	ID           string
	Pair         string
	Side         Side
	Size         float64
	OpenPrice    float64
	StopLoss     *float64
	TakeProfit   *float64
	OpenTime     time.Time
	UnrealizedPL float64
}

// Units returns the signed position size in base-currency units.
func (p Position) Units() float64 {
	return p.Side.Sign() * p.Size * market.Meta(p.Pair).ContractSize
}

// PendingOrder is a booked limit or stop order awaiting its trigger.
type PendingOrder struct {
	ID           string
	Pair         string
	Side         Side
	Type         OrderType
	TriggerPrice float64
	Size         float64
	StopLoss     *float64
	TakeProfit   *float64
	Created      time.Time
}

// Closure records a position (fully or partially) leaving the open set.
type Closure struct {
	PositionID string
	Pair       string
	Side       Side
	Size       float64
	ClosePrice float64
	Time       time.Time
	RealizedPL float64
	Reason     string
}

// Close reasons used by the simulated broker.
const (
	ReasonStopLoss   = "StopLoss"
	ReasonTakeProfit = "TakeProfit"
	ReasonMarginCall = "MarginCall"
	ReasonManual     = "ManualClose"
	ReasonEndOfRun   = "EndOfRun"
)

// TradeEventKind distinguishes history entries.
type TradeEventKind string

const (
	EventFill  TradeEventKind = "FILL"
	EventClose TradeEventKind = "CLOSE"
)

// TradeEvent is one entry in the broker's trade history: every fill and
// every closure, in occurrence order.
type TradeEvent struct {
	Kind       TradeEventKind
	OrderID    string
	PositionID string
	Pair       string
	Side       Side
	Size       float64
	Price      float64
	Time       time.Time
	RealizedPL float64
	Reason     string
}
