package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete backtest run configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Sim      SimConfig      `json:"sim" yaml:"sim"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// AccountConfig initializes the simulated trading account.
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// SimConfig tunes the simulated execution model.
type SimConfig struct {
	MarginCallLevel float64 `json:"margin_call_level" yaml:"margin_call_level"` // percent
	SlippagePips    float64 `json:"slippage_pips" yaml:"slippage_pips"`
}

// DataConfig maps pairs to candle CSV files. Primary's timeline drives
// the run.
type DataConfig struct {
	Primary string            `json:"primary" yaml:"primary"`
	Pairs   map[string]string `json:"pairs" yaml:"pairs"`
}

// StrategyConfig selects and parameterizes the strategy.
type StrategyConfig struct {
	Name     string  `json:"name" yaml:"name"`
	Size     float64 `json:"size" yaml:"size"` // lots
	StopPips float64 `json:"stop_pips" yaml:"stop_pips"`
	RR       float64 `json:"rr" yaml:"rr"`
	Interval int     `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// JournalConfig selects run-artifact persistence.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads YAML (or JSON) configuration and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Sim.MarginCallLevel < 0 {
		return fmt.Errorf("sim.margin_call_level must not be negative")
	}
	if c.Sim.SlippagePips < 0 {
		return fmt.Errorf("sim.slippage_pips must not be negative")
	}
	if c.Data.Primary == "" {
		return fmt.Errorf("data.primary is required")
	}
	if len(c.Data.Pairs) == 0 {
		return fmt.Errorf("data.pairs must name at least one pair")
	}
	primary := strings.ToUpper(c.Data.Primary)
	found := false
	for pair := range c.Data.Pairs {
		if strings.ToUpper(pair) == primary {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("data.primary %s has no entry in data.pairs", c.Data.Primary)
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if c.Strategy.Size < 0 {
		return fmt.Errorf("strategy.size must not be negative")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for csv type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "SIM-BACKTEST",
			Currency: "USD",
			Balance:  100_000,
		},
		Sim: SimConfig{
			MarginCallLevel: 100,
			SlippagePips:    0,
		},
		Data: DataConfig{
			Primary: "EURUSD",
			Pairs:   map[string]string{"EURUSD": "./eurusd.csv"},
		},
		Strategy: StrategyConfig{
			Name:     "noop",
			Size:     0.1,
			StopPips: 20,
			RR:       2,
		},
		Journal: JournalConfig{
			Type: "none",
		},
	}
}
