// Package feed loads historical candle data for the engine. The data
// source contract is simple: per pair, a finite, time-ordered slice of
// bars consumed by index.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quantfx/backtester/market"
)

// LoadCandlesCSV reads bars from a CSV file with rows of
//
//	time,open,high,low,close,volume[,bid_close,ask_close]
//
// where time is RFC3339 or RFC3339Nano. A header row starting with
// "time" is tolerated. When bid/ask columns are absent they are derived
// from the instrument's default spread. Bars must be in ascending time
// order; each bar is validated on load.
func LoadCandlesCSV(path, pair string) ([]market.Candlestick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCandles(f, pair)
}

// ReadCandles parses candle CSV rows from r.
func ReadCandles(r io.Reader, pair string) ([]market.Candlestick, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		out      []market.Candlestick
		sawFirst bool
		line     int
	)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 {
			continue
		}

		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		bar, err := parseRow(row, pair)
		if err != nil {
			return nil, fmt.Errorf("feed: %s line %d: %w", pair, line, err)
		}
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("feed: %s line %d: %w", pair, line, err)
		}
		if n := len(out); n > 0 && bar.Time.Before(out[n-1].Time) {
			return nil, fmt.Errorf("feed: %s line %d: bars out of order (%s after %s)",
				pair, line, bar.Time.Format(time.RFC3339), out[n-1].Time.Format(time.RFC3339))
		}
		out = append(out, bar)
	}
}

func parseRow(row []string, pair string) (market.Candlestick, error) {
	if len(row) < 5 {
		return market.Candlestick{}, fmt.Errorf("need at least 5 columns time,open,high,low,close, got %d", len(row))
	}

	ts := strings.TrimSpace(row[0])
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return market.Candlestick{}, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	vals := make([]float64, 0, 7)
	for i := 1; i < len(row) && i < 8; i++ {
		s := strings.TrimSpace(row[i])
		if s == "" {
			break
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Candlestick{}, fmt.Errorf("bad value %q in column %d: %w", row[i], i, err)
		}
		vals = append(vals, v)
	}
	if len(vals) < 4 {
		return market.Candlestick{}, fmt.Errorf("need open,high,low,close values")
	}

	open, high, low, close := vals[0], vals[1], vals[2], vals[3]
	volume := 0.0
	if len(vals) >= 5 {
		volume = vals[4]
	}

	if len(vals) >= 7 {
		return market.NewWithBidAsk(pair, t, open, high, low, close, volume, vals[5], vals[6]), nil
	}
	return market.New(pair, t, open, high, low, close, volume), nil
}
