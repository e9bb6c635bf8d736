package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/paperbroker/internal/logging"
	"github.com/rustyeddy/paperbroker/sim"
)

// Config is the complete paper broker configuration
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	History HistoryConfig `json:"history" yaml:"history"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Feed    FeedConfig    `json:"feed" yaml:"feed"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	Balance    float64 `json:"balance" yaml:"balance"`
	MarginMode string  `json:"margin_mode" yaml:"margin_mode"`
}

type HistoryConfig struct {
	MaxTrades int `json:"max_trades" yaml:"max_trades"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// FeedConfig selects the tick source for serve
type FeedConfig struct {
	Type    string   `json:"type" yaml:"type"` // "none", "csv" or "binance"
	CSVFile string   `json:"csv_file,omitempty" yaml:"csv_file,omitempty"`
	Symbols []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	// File, when set, receives a copy of every log line.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON).
// Missing fields keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Balance < 0 {
		return fmt.Errorf("account.balance must not be negative")
	}
	if _, err := sim.ParseMarginMode(c.Account.MarginMode); err != nil {
		return fmt.Errorf("account.margin_mode: %w", err)
	}
	if c.History.MaxTrades < 0 {
		return fmt.Errorf("history.max_trades must not be negative")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Feed.Type {
	case "", "none":
	case "csv":
		if c.Feed.CSVFile == "" {
			return fmt.Errorf("feed csv_file required for CSV type")
		}
	case "binance":
		if len(c.Feed.Symbols) == 0 {
			return fmt.Errorf("feed symbols required for binance type")
		}
	default:
		return fmt.Errorf("feed.type must be 'none', 'csv' or 'binance'")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Balance:    10000,
			MarginMode: string(sim.Isolated),
		},
		History: HistoryConfig{
			MaxTrades: sim.DefaultMaxTrades,
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Feed: FeedConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyEnv overlays PAPER_* environment variables onto c. The .env file at
// envPath (or ./.env when empty) is loaded first if it exists; variables
// already set in the environment win over the file.
func (c *Config) ApplyEnv(envPath string) error {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("PAPER_BALANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PAPER_BALANCE: %w", err)
		}
		c.Account.Balance = f
	}
	if v := os.Getenv("PAPER_MARGIN_MODE"); v != "" {
		c.Account.MarginMode = v
	}
	if v := os.Getenv("PAPER_MAX_TRADES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PAPER_MAX_TRADES: %w", err)
		}
		c.History.MaxTrades = n
	}
	if v := os.Getenv("PAPER_JOURNAL_TYPE"); v != "" {
		c.Journal.Type = v
	}
	if v := os.Getenv("PAPER_JOURNAL_DB"); v != "" {
		c.Journal.DBPath = v
	}
	if v := os.Getenv("PAPER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PAPER_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("PAPER_FEED_TYPE"); v != "" {
		c.Feed.Type = v
	}
	if v := os.Getenv("PAPER_FEED_SYMBOLS"); v != "" {
		c.Feed.Symbols = splitList(v)
	}
	if v := os.Getenv("PAPER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PAPER_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
