package perf

import (
	"fmt"
	"io"
	"math"
)

// TextReporter writes a plain-text statistics report. Zero-volatility
// series render with a zero Sharpe ratio rather than dividing by zero.
type TextReporter struct {
	W io.Writer
}

func (t TextReporter) Render(title string, returns []float64) error {
	if len(returns) == 0 {
		return fmt.Errorf("perf: no returns to report for %q", title)
	}

	var (
		total = 1.0
		sum   float64
		best  = math.Inf(-1)
		worst = math.Inf(1)
	)
	for _, r := range returns {
		total *= 1 + r
		sum += r
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	vol := math.Sqrt(variance)

	sharpe := 0.0
	if vol > 0 {
		sharpe = mean / vol
	}

	// Max drawdown over the compounded curve.
	var peak, dd float64
	peak = 1.0
	acc := 1.0
	for _, r := range returns {
		acc *= 1 + r
		if acc > peak {
			peak = acc
		}
		if d := (peak - acc) / peak; d > dd {
			dd = d
		}
	}

	fmt.Fprintln(t.W, "==================================================")
	fmt.Fprintf(t.W, " %s\n", title)
	fmt.Fprintln(t.W, "==================================================")
	fmt.Fprintf(t.W, "Periods:        %d\n", len(returns))
	fmt.Fprintf(t.W, "Total Return:   %.2f%%\n", (total-1)*100)
	fmt.Fprintf(t.W, "Mean Return:    %.4f%%\n", mean*100)
	fmt.Fprintf(t.W, "Volatility:     %.4f%%\n", vol*100)
	fmt.Fprintf(t.W, "Sharpe (per-period): %.2f\n", sharpe)
	fmt.Fprintf(t.W, "Max Drawdown:   %.2f%%\n", dd*100)
	fmt.Fprintf(t.W, "Best Period:    %.4f%%\n", best*100)
	fmt.Fprintf(t.W, "Worst Period:   %.4f%%\n", worst*100)
	return nil
}
