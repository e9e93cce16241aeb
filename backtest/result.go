package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/quantfx/backtester/broker"
)

// Result summarizes a finished run.
type Result struct {
	StartEquity float64
	Balance     float64
	Equity      float64

	Trades   int // realized closures
	Wins     int
	Losses   int
	Rejected int

	Start time.Time
	End   time.Time
}

// Result computes the run summary from the final account state and the
// broker's trade history.
func (e *Engine) Result() Result {
	acct := e.brk.AccountInfo()

	r := Result{
		StartEquity: e.startEquity,
		Balance:     acct.Balance,
		Equity:      acct.Equity,
		Rejected:    len(e.rejected),
	}
	if len(e.curve) > 0 {
		r.Start = e.curve[0].Time
		r.End = e.curve[len(e.curve)-1].Time
	}

	for _, ev := range e.brk.TradeHistory() {
		if ev.Kind != broker.EventClose {
			continue
		}
		r.Trades++
		switch {
		case ev.RealizedPL > 0:
			r.Wins++
		case ev.RealizedPL < 0:
			r.Losses++
		}
	}
	return r
}

// Print writes a plain-text summary of the run.
func (r Result) Print(w io.Writer) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Rejected:      %d\n", r.Rejected)
	fmt.Fprintf(w, "Start Equity:  %.2f\n", r.StartEquity)
	fmt.Fprintf(w, "End Balance:   %.2f\n", r.Balance)
	fmt.Fprintf(w, "End Equity:    %.2f\n", r.Equity)
	if r.StartEquity > 0 {
		fmt.Fprintf(w, "Return:        %.2f%%\n", (r.Equity-r.StartEquity)/r.StartEquity*100)
	}
}
