package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/paperbroker/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.csv>",
	Short: "Replay a CSV script of ticks and orders",
	Long: `Replay ticks and scripted commands through a fresh paper account.

Rows are time,symbol,price[,event,args...]. Events are PLACE, CANCEL,
START, STOP and RESET. The account starts stopped unless --start is set.

Examples:
  paperbroker replay data/btc.csv --start
  paperbroker replay data/btc.csv -c paper.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayStart       bool
	replayEventFirst  bool
	replayJournalType string
	replayDBPath      string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&replayStart, "start", false, "start the account before the first row")
	replayCmd.Flags().BoolVar(&replayEventFirst, "event-first", false, "run a row's command before its tick")
	replayCmd.Flags().StringVar(&replayJournalType, "journal", "", "journal type override (none|csv|sqlite)")
	replayCmd.Flags().StringVarP(&replayDBPath, "db", "d", "", "SQLite journal path (implies --journal sqlite)")
}

func runReplay(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if replayJournalType != "" {
		cfg.Journal.Type = replayJournalType
	}
	if replayDBPath != "" {
		cfg.Journal.Type = "sqlite"
		cfg.Journal.DBPath = replayDBPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if replayStart {
		a.broker.Start()
	}

	a.log.Info("replay starting", zap.String("file", args[0]))
	stats, err := replay.CSV(ctx, args[0], a.events, a.broker, replay.Options{
		TickThenEvent: !replayEventFirst,
		ResetBalance:  cfg.Account.Balance,
		Log:           a.log.Named("replay"),
	})
	if err != nil {
		return fmt.Errorf("replay error: %w", err)
	}

	st := a.broker.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nReplay complete!\n")
	fmt.Fprintf(out, "  Rows: %d (ticks %d, commands %d, rejected %d)\n", stats.Rows, stats.Ticks, stats.Commands, stats.Rejected)
	fmt.Fprintf(out, "  Balance: %.2f (start %.2f)\n", st.Balance, cfg.Account.Balance)
	fmt.Fprintf(out, "  Open orders: %d\n", len(st.OpenOrders))
	symbols := make([]string, 0, len(st.Positions))
	for sym := range st.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		if last, ok := a.broker.LastPrice(sym); ok {
			fmt.Fprintf(out, "  Last %s: %.2f\n", sym, last)
		}
		p := st.Positions[sym]
		if p.Qty == 0 {
			continue
		}
		line := fmt.Sprintf("  Position %s: %g @ %.2f", sym, p.Qty, p.AvgPrice)
		if p.UnrealizedPnL != nil {
			line += fmt.Sprintf(" (unrealized %.2f)", *p.UnrealizedPnL)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  Trades: %d\n", len(st.TradeHistory))

	switch cfg.Journal.Type {
	case "csv":
		fmt.Fprintf(out, "\nResults saved to:\n  - %s\n  - %s\n", cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	case "sqlite":
		fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.Journal.DBPath)
	}
	return nil
}
