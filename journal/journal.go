package journal

import "time"

// TradeRecord is one realized (fully or partially closed) trade.
type TradeRecord struct {
	TradeID    string
	Pair       string
	Side       string
	Size       float64 // lots
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// EquitySnapshot is the account state at one point in simulated time.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	Margin      float64
	FreeMargin  float64
	MarginLevel float64
}

// Journal persists trade records and equity snapshots produced by a run.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. Used in tests and when journaling is disabled.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error    { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
