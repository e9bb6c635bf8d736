package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "paperbroker",
	Short: "A paper trading broker that fills orders against live or replayed ticks",
	Long: `Paperbroker simulates a brokerage account without touching a real exchange.

It provides tools for:
  - Filling limit and market orders against a tick stream
  - Tracking cash, positions and realized PnL
  - Replaying scripted tick and order CSV files
  - Serving the account over HTTP and a websocket state stream
  - Journaling fills and balance snapshots to CSV or SQLite`,
	SilenceUsage: true,
}

var (
	configPath string
	envPath    string
	logLevel   string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", ".env file with PAPER_* overrides (default ./.env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides config)")
}
