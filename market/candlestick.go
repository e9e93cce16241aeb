package market

import (
	"fmt"
	"time"
)

// Candlestick is one OHLCV bar with the bid/ask close for the period.
// Close is the mid; when a data source carries no bid/ask the spread is
// derived from the instrument metadata. Values are never mutated after
// construction.
type Candlestick struct {
	Pair     string
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	BidClose float64
	AskClose float64
}

// New builds a Candlestick, deriving BidClose/AskClose from the
// instrument's configured spread around the close.
func New(pair string, t time.Time, open, high, low, close, volume float64) Candlestick {
	half := SpreadPrice(pair) / 2
	return Candlestick{
		Pair:     pair,
		Time:     t,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		Volume:   volume,
		BidClose: close - half,
		AskClose: close + half,
	}
}

// NewWithBidAsk builds a Candlestick from a source that carries its own
// historical bid/ask closes.
func NewWithBidAsk(pair string, t time.Time, open, high, low, close, volume, bid, ask float64) Candlestick {
	return Candlestick{
		Pair:     pair,
		Time:     t,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		Volume:   volume,
		BidClose: bid,
		AskClose: ask,
	}
}

// Mid returns the bid/ask midpoint.
func (c Candlestick) Mid() float64 {
	return (c.BidClose + c.AskClose) / 2
}

// Spread returns the bid/ask spread in price terms.
func (c Candlestick) Spread() float64 {
	return c.AskClose - c.BidClose
}

// Validate enforces the bar invariants: low <= {open, close} <= high and
// bid_close <= close <= ask_close.
func (c Candlestick) Validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("candlestick %s @ %s: non-positive price", c.Pair, c.Time.Format(time.RFC3339))
	}
	if c.Low > c.High {
		return fmt.Errorf("candlestick %s @ %s: low %v above high %v", c.Pair, c.Time.Format(time.RFC3339), c.Low, c.High)
	}
	if c.Open < c.Low || c.Open > c.High {
		return fmt.Errorf("candlestick %s @ %s: open %v outside [%v, %v]", c.Pair, c.Time.Format(time.RFC3339), c.Open, c.Low, c.High)
	}
	if c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("candlestick %s @ %s: close %v outside [%v, %v]", c.Pair, c.Time.Format(time.RFC3339), c.Close, c.Low, c.High)
	}
	if c.BidClose > c.Close || c.AskClose < c.Close {
		return fmt.Errorf("candlestick %s @ %s: close %v outside bid/ask [%v, %v]", c.Pair, c.Time.Format(time.RFC3339), c.Close, c.BidClose, c.AskClose)
	}
	return nil
}
