package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/paperbroker/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite journal",
	Long: `Query and display fills recorded in a SQLite journal.

Subcommands:
  order   - Show the fill for an order id
  today   - List fills from today
  day     - List fills from a specific day
  pnl     - Total realized PnL
  balance - Balance snapshots for a day (today by default)

Examples:
  paperbroker journal order 01HN2Z3K4M5PQRSTVWXYZ01234
  paperbroker journal day 2024-01-15 -d paper.sqlite`,
}

var journalOrderCmd = &cobra.Command{
	Use:   "order <order-id>",
	Short: "Show the fill for an order",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrder,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List fills from today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJournalDay(cmd, time.Now().In(time.Local).Format("2006-01-02"))
	},
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List fills from a specific day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJournalDay(cmd, args[0])
	},
}

var journalPnLCmd = &cobra.Command{
	Use:   "pnl",
	Short: "Total realized PnL across all fills",
	Args:  cobra.NoArgs,
	RunE:  runJournalPnL,
}

var journalBalanceCmd = &cobra.Command{
	Use:   "balance [YYYY-MM-DD]",
	Short: "List balance snapshots from a day",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalBalance,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalOrderCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalPnLCmd)
	journalCmd.AddCommand(journalBalanceCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./paper.sqlite", "path to SQLite journal DB")
}

func runJournalOrder(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func listJournalDay(cmd *cobra.Command, day string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalPnL(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	total, err := j.RealizedPnL()
	if err != nil {
		return fmt.Errorf("sum pnl: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Realized PnL: %.2f\n", total)
	return nil
}

func runJournalBalance(cmd *cobra.Command, args []string) error {
	day := time.Now().In(time.Local).Format("2006-01-02")
	if len(args) == 1 {
		day = args[0]
	}

	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	snaps, err := j.ListBalanceBetween(start, end)
	if err != nil {
		return fmt.Errorf("query balance: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), journal.FormatBalancesOrg(snaps))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
