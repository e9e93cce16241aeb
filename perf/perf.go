// Package perf turns an equity curve into a return series and hands it
// to a reporting sink. It owns the degenerate-input guards: an empty
// curve produces no report, and a sink that chokes on flat statistics
// never fails the run.
package perf

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfx/backtester/backtest"
)

// Reporter renders a performance report from a percentage-return series.
// Fire-and-forget from the engine's perspective.
type Reporter interface {
	Render(title string, returns []float64) error
}

// Returns converts an equity curve into consecutive percentage changes.
// A curve of n points yields n-1 returns.
func Returns(curve []backtest.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

// Report forwards the curve's return series to the sink.
//
// An empty curve generates no report and the sink is not invoked. A
// degenerate series (no returns, or all zero) is still offered to the
// sink, but a sink failure on such input is logged and swallowed — flat
// statistics must never surface as a run failure.
func Report(r Reporter, title string, curve []backtest.EquityPoint, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if len(curve) == 0 {
		log.Debug("empty equity curve, skipping report", zap.String("title", title))
		return nil
	}

	returns := Returns(curve)

	if err := r.Render(title, returns); err != nil {
		if degenerate(returns) {
			log.Warn("report sink failed on degenerate returns",
				zap.String("title", title),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("perf: render %q: %w", title, err)
	}
	return nil
}

func degenerate(returns []float64) bool {
	for _, r := range returns {
		if r != 0 {
			return false
		}
	}
	return true
}
