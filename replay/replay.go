// Package replay drives a broker from a CSV script of ticks and commands.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/paperbroker/internal/logging"
	"github.com/rustyeddy/paperbroker/market"
	"github.com/rustyeddy/paperbroker/sim"
)

// Broker is the command surface a script can reach.
type Broker interface {
	Start()
	Stop()
	ResetBalance(amount float64)
	PlaceOrder(req sim.OrderRequest) (string, error)
	CancelOrder(orderID string) bool
}

// Options controls how replay behaves.
type Options struct {
	// If true: publish the row's tick first, then run its command. Most
	// scripts want this so a market PLACE sees that tick's price.
	TickThenEvent bool
	// ResetBalance is used by RESET rows that carry no amount.
	ResetBalance float64
	// Delay pauses between rows; zero replays as fast as possible.
	Delay time.Duration
	Log   *zap.Logger
}

// Stats counts what a replay did.
type Stats struct {
	Rows      int
	Ticks     int
	Commands  int
	Rejected  int
	LastError error
}

// CSV replays a script file. See Run for the format.
func CSV(ctx context.Context, csvPath string, pub sim.Publisher, b Broker, opts Options) (Stats, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()
	return Run(ctx, f, pub, b, opts)
}

// Run replays ticks from r and applies optional scripted commands.
//
// Row format:
//
//	time,symbol,price[,event,arg1,arg2,...]
//
// time is RFC3339 or unix seconds (fractional allowed) and may be empty.
// If price is empty the row carries a command only. Ticks are published on
// market.TopicTick through pub, so whatever is subscribed there (normally
// the broker) sees them exactly as it would a live feed.
//
// Commands (case-insensitive):
//
//	PLACE:   arg1=ref  arg2=side  arg3=qty  arg4=price  arg5=type  arg6=reduce_only
//	CANCEL:  arg1=ref
//	START, STOP
//	RESET:   arg1=balance (optional, defaults to Options.ResetBalance)
//
// ref is a script-local name for the order so CANCEL can refer to it. A
// PLACE the broker rejects is counted in Stats.Rejected; it does not stop
// the replay. Malformed rows do.
func Run(ctx context.Context, r io.Reader, pub sim.Publisher, b Broker, opts Options) (Stats, error) {
	rp := &replayer{
		pub:  pub,
		b:    b,
		opts: opts,
		log:  logging.OrNop(opts.Log),
		refs: make(map[string]string),
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return rp.stats, nil
		}
		if err != nil {
			return rp.stats, err
		}
		if len(row) == 0 {
			continue
		}
		line, _ := cr.FieldPos(0)
		header := first && strings.EqualFold(strings.TrimSpace(row[0]), "time")
		first = false
		if header {
			continue
		}

		if err := ctx.Err(); err != nil {
			return rp.stats, err
		}
		if err := rp.row(row); err != nil {
			return rp.stats, fmt.Errorf("line %d: %w", line, err)
		}

		if opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return rp.stats, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}
}

type replayer struct {
	pub   sim.Publisher
	b     Broker
	opts  Options
	log   *zap.Logger
	refs  map[string]string
	stats Stats
}

func (rp *replayer) row(row []string) error {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	if len(row) < 3 {
		return fmt.Errorf("bad row (need at least 3 cols time,symbol,price): %v", row)
	}
	rp.stats.Rows++

	tick, hasTick, err := parseTick(row[0], row[1], row[2])
	if err != nil {
		return err
	}

	event := ""
	var args []string
	if len(row) >= 4 {
		event = row[3]
	}
	if len(row) >= 5 {
		args = row[4:]
	}

	if hasTick && rp.opts.TickThenEvent {
		rp.publish(tick)
	}
	if event != "" {
		if err := rp.command(event, row[1], args); err != nil {
			return err
		}
	}
	if hasTick && !rp.opts.TickThenEvent {
		rp.publish(tick)
	}
	return nil
}

func (rp *replayer) publish(t market.Tick) {
	rp.stats.Ticks++
	rp.pub.Publish(market.TopicTick, t)
}

func (rp *replayer) command(event, symbol string, args []string) error {
	rp.stats.Commands++

	switch strings.ToUpper(event) {
	case "PLACE":
		// PLACE,o1,buy,1,95,limit,false
		ref, req, err := parsePlaceArgs(symbol, args)
		if err != nil {
			return fmt.Errorf("PLACE: %w", err)
		}
		id, err := rp.b.PlaceOrder(req)
		if err != nil {
			if errors.Is(err, sim.ErrNotRunning) || errors.Is(err, sim.ErrNoPrice) || errors.Is(err, sim.ErrInvalidOrder) {
				rp.stats.Rejected++
				rp.stats.LastError = err
				rp.log.Info("replay order rejected", zap.String("ref", ref), zap.Error(err))
				return nil
			}
			return fmt.Errorf("PLACE %s: %w", ref, err)
		}
		if ref != "" {
			rp.refs[ref] = id
		}
		return nil

	case "CANCEL":
		// CANCEL,o1
		if len(args) < 1 || args[0] == "" {
			return fmt.Errorf("CANCEL: missing order ref")
		}
		id, ok := rp.refs[args[0]]
		if !ok {
			id = args[0]
		}
		if !rp.b.CancelOrder(id) {
			rp.stats.Rejected++
			rp.log.Info("replay cancel rejected", zap.String("ref", args[0]))
		}
		return nil

	case "START":
		rp.b.Start()
		return nil

	case "STOP":
		rp.b.Stop()
		return nil

	case "RESET":
		// RESET,10000
		amount := rp.opts.ResetBalance
		if len(args) >= 1 && args[0] != "" {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("RESET: bad balance %q: %w", args[0], err)
			}
			amount = v
		}
		rp.b.ResetBalance(amount)
		clear(rp.refs)
		return nil

	default:
		return fmt.Errorf("unknown event %q", event)
	}
}

func parseTick(ts, symbol, price string) (market.Tick, bool, error) {
	if price == "" {
		return market.Tick{}, false, nil
	}
	if symbol == "" {
		return market.Tick{}, false, fmt.Errorf("tick row has a price but no symbol")
	}
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return market.Tick{}, false, fmt.Errorf("bad price %q: %w", price, err)
	}
	t, err := parseTime(ts)
	if err != nil {
		return market.Tick{}, false, err
	}
	return market.Tick{Symbol: symbol, Price: p, Time: t}, true, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q (want RFC3339 or unix seconds)", s)
	}
	return market.FromUnixSeconds(secs), nil
}

func parsePlaceArgs(symbol string, args []string) (string, sim.OrderRequest, error) {
	if len(args) < 3 {
		return "", sim.OrderRequest{}, fmt.Errorf("need arg1=ref arg2=side arg3=qty [arg4=price arg5=type arg6=reduce_only]")
	}
	if symbol == "" {
		return "", sim.OrderRequest{}, fmt.Errorf("symbol column is empty")
	}
	ref := args[0]

	side, err := sim.ParseSide(args[1])
	if err != nil {
		return "", sim.OrderRequest{}, err
	}
	qty, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return "", sim.OrderRequest{}, fmt.Errorf("bad qty %q: %w", args[2], err)
	}

	req := sim.OrderRequest{Symbol: symbol, Side: side, Qty: qty}

	if len(args) >= 4 && args[3] != "" {
		req.Price, err = strconv.ParseFloat(args[3], 64)
		if err != nil {
			return "", sim.OrderRequest{}, fmt.Errorf("bad price %q: %w", args[3], err)
		}
	}
	if len(args) >= 5 {
		req.Kind, err = sim.ParseOrderKind(args[4])
		if err != nil {
			return "", sim.OrderRequest{}, err
		}
	}
	if len(args) >= 6 && args[5] != "" {
		req.ReduceOnly, err = strconv.ParseBool(args[5])
		if err != nil {
			return "", sim.OrderRequest{}, fmt.Errorf("bad reduce_only %q: %w", args[5], err)
		}
	}
	return ref, req, nil
}
