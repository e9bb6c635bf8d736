package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/paperbroker/feed"
	"github.com/rustyeddy/paperbroker/replay"
	"github.com/rustyeddy/paperbroker/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the paper broker HTTP and websocket server",
	Long: `Serve a paper account over HTTP. Ticks come from the configured feed
(binance or a csv script) and from POST /api/v1/ticks.

Examples:
  paperbroker serve --addr :8080
  paperbroker serve -c paper.yaml --start`,
	RunE: runServe,
}

var (
	serveAddr  string
	serveStart bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveStart, "start", false, "start the account immediately")
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close()) }()

	if serveStart {
		a.broker.Start()
	}

	srv := server.New(a.broker, a.events, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            a.log.Named("server"),
	})
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe(ctx, cfg.Server.Addr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	switch cfg.Feed.Type {
	case "binance":
		f := feed.NewBinance(cfg.Feed.Symbols, a.events, a.log.Named("feed"))
		g.Go(func() error { return ignoreCanceled(f.Run(ctx)) })
	case "csv":
		g.Go(func() error {
			_, err := replay.CSV(ctx, cfg.Feed.CSVFile, a.events, a.broker, replay.Options{
				TickThenEvent: true,
				ResetBalance:  cfg.Account.Balance,
				Log:           a.log.Named("feed"),
			})
			if err != nil {
				return ignoreCanceled(fmt.Errorf("csv feed: %w", err))
			}
			a.log.Info("csv feed finished", zap.String("file", cfg.Feed.CSVFile))
			return nil
		})
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
