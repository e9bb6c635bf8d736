package market

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"
)

// TopicTick is the event channel topic carrying price updates.
const TopicTick = "market.tick"

// Tick is a single price update for one symbol.
type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Valid reports whether the tick carries enough to drive order matching.
func (t Tick) Valid() bool {
	return t.Symbol != "" && t.Price >= 0 && !math.IsInf(t.Price, 0)
}

// wireTick is the {symbol, price, timestamp?} payload. Pointers tell a
// missing field apart from a zero one.
type wireTick struct {
	Symbol    *string  `json:"symbol"`
	Price     *float64 `json:"price"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

func (t Tick) MarshalJSON() ([]byte, error) {
	w := wireTick{Symbol: &t.Symbol, Price: &t.Price}
	if !t.Time.IsZero() {
		ts := float64(t.Time.UnixNano()) / 1e9
		w.Timestamp = &ts
	}
	return json.Marshal(w)
}

// ErrMalformedTick is returned when a payload lacks symbol or price.
var ErrMalformedTick = errors.New("tick requires symbol and price")

func (t *Tick) UnmarshalJSON(data []byte) error {
	var w wireTick
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Symbol == nil || w.Price == nil {
		return ErrMalformedTick
	}
	t.Symbol = *w.Symbol
	t.Price = *w.Price
	t.Time = time.Time{}
	if w.Timestamp != nil {
		t.Time = FromUnixSeconds(*w.Timestamp)
	}
	return nil
}

// FromUnixSeconds converts fractional unix seconds to a UTC time.
func FromUnixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// DecodeTick accepts the payload shapes that travel on TopicTick: Tick,
// *Tick, a generic map (as produced by decoding JSON into any) or raw JSON.
// ok is false for anything missing a symbol or price.
func DecodeTick(payload any) (Tick, bool) {
	var t Tick
	switch p := payload.(type) {
	case Tick:
		t = p
	case *Tick:
		if p == nil {
			return Tick{}, false
		}
		t = *p
	case map[string]any:
		sym, ok := p["symbol"].(string)
		if !ok {
			return Tick{}, false
		}
		price, ok := number(p["price"])
		if !ok {
			return Tick{}, false
		}
		t = Tick{Symbol: sym, Price: price}
		if ts, ok := number(p["timestamp"]); ok {
			t.Time = FromUnixSeconds(ts)
		}
	case []byte:
		if err := json.Unmarshal(p, &t); err != nil {
			return Tick{}, false
		}
	case json.RawMessage:
		if err := json.Unmarshal(p, &t); err != nil {
			return Tick{}, false
		}
	default:
		return Tick{}, false
	}
	return t, t.Valid()
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// TickStore keeps the last tick seen per symbol.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks[t.Symbol] = t
}

// Get returns the last tick for symbol.
func (ts *TickStore) Get(symbol string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[symbol]
	if !ok {
		return Tick{}, errors.New("price not found")
	}
	return t, nil
}

// Reset forgets every stored tick.
func (ts *TickStore) Reset() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks = make(map[string]Tick)
}
