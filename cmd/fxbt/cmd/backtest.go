package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfx/backtester/backtest"
	"github.com/quantfx/backtester/broker"
	"github.com/quantfx/backtester/config"
	"github.com/quantfx/backtester/feed"
	"github.com/quantfx/backtester/journal"
	"github.com/quantfx/backtester/market"
	"github.com/quantfx/backtester/perf"
	"github.com/quantfx/backtester/sim"
	"github.com/quantfx/backtester/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy against historical candle data",
	Long: `Backtest replays per-pair candle CSVs through the simulated broker.

Supported strategies:
  - noop:        does nothing (baseline)
  - open-once:   opens a single position on the first bar
  - alternating: flips direction every N bars
  - ema-cross:   fast/slow EMA crossover with risk-based sizing

Example:
  fxbt backtest -c backtest.yaml
  fxbt backtest --data EURUSD=data/eurusd.csv --primary EURUSD -s ema-cross`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btDataSpecs  []string
	btPrimary    string
	btBalance    float64
	btAccountID  string
	btStrategy   string
	btSize       float64
	btStopPips   float64
	btRR         float64
	btInterval   int
	btFast       int
	btSlow       int
	btRiskPct    float64
	btDBPath     string
	btCloseEnd   bool
	btVerbose    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to YAML/JSON config (flags override data/strategy defaults)")
	backtestCmd.Flags().StringArrayVar(&btDataSpecs, "data", nil, "pair=csv-path candle data (repeatable)")
	backtestCmd.Flags().StringVarP(&btPrimary, "primary", "p", "EURUSD", "primary pair whose bars drive the run")
	backtestCmd.Flags().Float64VarP(&btBalance, "balance", "b", 100_000, "starting account balance")
	backtestCmd.Flags().StringVar(&btAccountID, "account", "SIM-BACKTEST", "account ID for journaling")

	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "noop", "strategy name (noop, open-once, alternating, ema-cross)")
	backtestCmd.Flags().Float64VarP(&btSize, "size", "u", 0.1, "order size in lots")
	backtestCmd.Flags().Float64Var(&btStopPips, "stop-pips", 20, "stop loss distance in pips")
	backtestCmd.Flags().Float64Var(&btRR, "rr", 2.0, "take profit as an R multiple")
	backtestCmd.Flags().IntVar(&btInterval, "interval", 20, "alternating: bars between trades")
	backtestCmd.Flags().IntVar(&btFast, "fast", 20, "ema-cross: fast EMA period")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 50, "ema-cross: slow EMA period")
	backtestCmd.Flags().Float64Var(&btRiskPct, "risk", 0.005, "ema-cross: risk per trade (0.005 = 0.5%)")

	backtestCmd.Flags().StringVarP(&btDBPath, "db", "d", "", "SQLite journal path (empty disables journaling)")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "close all open positions at end of run")
	backtestCmd.Flags().BoolVarP(&btVerbose, "verbose", "v", false, "log per-tick events")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if btConfigPath != "" {
		loaded, err := config.LoadFromFile(btConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.Account.ID = btAccountID
		cfg.Account.Balance = btBalance
		cfg.Data.Primary = btPrimary
		cfg.Data.Pairs = map[string]string{}
		for _, spec := range btDataSpecs {
			pair, path, ok := strings.Cut(spec, "=")
			if !ok {
				return fmt.Errorf("bad --data %q, want pair=path", spec)
			}
			cfg.Data.Pairs[strings.ToUpper(strings.TrimSpace(pair))] = strings.TrimSpace(path)
		}
		cfg.Strategy = config.StrategyConfig{
			Name:     btStrategy,
			Size:     btSize,
			StopPips: btStopPips,
			RR:       btRR,
			Interval: btInterval,
		}
		if btDBPath != "" {
			cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: btDBPath}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log := zap.NewNop()
	if btVerbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer l.Sync()
		log = l
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	data := make(map[string][]market.Candlestick, len(cfg.Data.Pairs))
	for pair, path := range cfg.Data.Pairs {
		pair = strings.ToUpper(pair)
		bars, err := feed.LoadCandlesCSV(path, pair)
		if err != nil {
			return fmt.Errorf("load %s: %w", pair, err)
		}
		data[pair] = bars
	}

	brk := sim.New(broker.AccountInfo{
		AccountID: cfg.Account.ID,
		Currency:  cfg.Account.Currency,
		Balance:   cfg.Account.Balance,
	}, sim.Config{
		MarginCallLevel: cfg.Sim.MarginCallLevel,
		SlippagePips:    cfg.Sim.SlippagePips,
	}, j, log)

	strat, err := strategy.ByName(cfg.Strategy.Name, strategy.Params{
		Pair:     strings.ToUpper(cfg.Data.Primary),
		Size:     cfg.Strategy.Size,
		RiskPct:  btRiskPct,
		StopPips: cfg.Strategy.StopPips,
		RR:       cfg.Strategy.RR,
		Interval: cfg.Strategy.Interval,
		Fast:     btFast,
		Slow:     btSlow,
	})
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	engine, err := backtest.New(strat, brk, data, cfg.Data.Primary,
		backtest.WithLogger(log), backtest.WithJournal(j))
	if err != nil {
		return err
	}

	fmt.Printf("Running backtest: strategy=%s primary=%s bars=%d\n",
		strat.Name(), strings.ToUpper(cfg.Data.Primary), len(data[strings.ToUpper(cfg.Data.Primary)]))

	if err := engine.Run(context.Background()); err != nil {
		return err
	}

	if btCloseEnd {
		brk.CloseAll(broker.ReasonEndOfRun)
	}

	engine.Result().Print(os.Stdout)
	fmt.Println()

	title := fmt.Sprintf("%s %s backtest", strings.ToUpper(cfg.Data.Primary), strat.Name())
	return perf.Report(perf.TextReporter{W: os.Stdout}, title, engine.EquityCurve(), log)
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}
