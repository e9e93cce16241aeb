package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fxbt",
	Short: "A deterministic FX backtesting engine with a simulated broker",
	Long: `fxbt replays historical candle data bar by bar through a trading
strategy and a simulated broker, tracking the full order lifecycle:
market and pending orders, stop-loss/take-profit triggers, margin calls
and the resulting equity curve.

Runs are exactly reproducible: the simulation advances only on bar
timestamps, never wall-clock time.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}
