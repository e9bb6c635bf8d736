package cmd

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/paperbroker/bus"
	"github.com/rustyeddy/paperbroker/config"
	"github.com/rustyeddy/paperbroker/internal/logging"
	"github.com/rustyeddy/paperbroker/journal"
	"github.com/rustyeddy/paperbroker/market"
	"github.com/rustyeddy/paperbroker/sim"
)

// app is the wired process: one bus, one broker, and an optional journal
// listening on the bus.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	events  *bus.Bus
	broker  *sim.Broker
	journal journal.Journal
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(envPath); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	mode, err := sim.ParseMarginMode(cfg.Account.MarginMode)
	if err != nil {
		return nil, err
	}

	events := bus.New(log.Named("bus"))
	b := sim.NewBroker(cfg.Account.Balance, events,
		sim.WithLogger(log.Named("broker")),
		sim.WithMaxTrades(cfg.History.MaxTrades),
		sim.WithMarginMode(mode),
	)
	events.Subscribe(market.TopicTick, b.OnTick)

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	journal.NewRecorder(j, log.Named("journal")).Attach(events)

	return &app{cfg: cfg, log: log, events: events, broker: b, journal: j}, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.File != "" {
		return logging.NewWithFile(cfg.Level, cfg.File)
	}
	return logging.New(cfg.Level)
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(cfg.TradesFile, cfg.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}

func (a *app) Close() error {
	return errors.Join(a.journal.Close(), a.log.Sync())
}
