package journal

import (
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/paperbroker/bus"
	"github.com/rustyeddy/paperbroker/internal/logging"
	"github.com/rustyeddy/paperbroker/sim"
)

// Recorder copies broker fills and state snapshots from the bus into a
// Journal. Write failures are logged and dropped.
type Recorder struct {
	j    Journal
	log  *zap.Logger
	subs []bus.Subscription

	mu   sync.Mutex
	last uint64
}

func NewRecorder(j Journal, log *zap.Logger) *Recorder {
	return &Recorder{j: j, log: logging.OrNop(log)}
}

// Attach subscribes the recorder to the broker topics on b.
func (r *Recorder) Attach(b *bus.Bus) {
	r.subs = append(r.subs,
		b.Subscribe(sim.TopicFill, r.OnFill),
		b.Subscribe(sim.TopicState, r.OnState),
	)
}

// Detach removes the recorder's subscriptions from b.
func (r *Recorder) Detach(b *bus.Bus) {
	for _, s := range r.subs {
		b.Unsubscribe(s)
	}
	r.subs = nil
}

func (r *Recorder) OnFill(payload any) {
	t, ok := payload.(sim.Trade)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.j.RecordTrade(TradeFromSim(t)); err != nil {
		r.log.Warn("journal trade", zap.String("order_id", t.OrderID), zap.Error(err))
	}
}

func (r *Recorder) OnState(payload any) {
	st, ok := payload.(sim.State)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Snapshots published out of order are skipped.
	if st.Seq != 0 && st.Seq <= r.last {
		return
	}
	r.last = st.Seq
	if err := r.j.RecordBalance(BalanceFromState(st)); err != nil {
		r.log.Warn("journal balance", zap.Uint64("seq", st.Seq), zap.Error(err))
	}
}

func TradeFromSim(t sim.Trade) TradeRecord {
	return TradeRecord{
		OrderID:     t.OrderID,
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		Qty:         t.Qty,
		Price:       t.Price,
		RealizedPnL: t.RealizedPnL,
		Time:        t.Time,
	}
}

func BalanceFromState(st sim.State) BalanceSnapshot {
	open := 0
	for _, p := range st.Positions {
		if p.Qty != 0 {
			open++
		}
	}
	return BalanceSnapshot{
		Seq:        st.Seq,
		Time:       st.Time,
		Running:    st.Running,
		Balance:    st.Balance,
		OpenOrders: len(st.OpenOrders),
		Positions:  open,
	}
}
