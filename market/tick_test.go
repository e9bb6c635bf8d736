package market

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickStore_SetGet(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	tk := Tick{Symbol: "BTCUSDT", Price: 95}
	ts.Set(tk)

	got, err := ts.Get("BTCUSDT")
	assert.NoError(t, err)
	assert.Equal(t, tk, got)

	ts.Reset()
	_, err = ts.Get("BTCUSDT")
	assert.Error(t, err)
}

func TestTickStore_GetMissing(t *testing.T) {
	t.Parallel()

	got, err := NewTickStore().Get("NO_SUCH")
	assert.Error(t, err)
	assert.Equal(t, Tick{}, got)
}

func TestDecodeTick(t *testing.T) {
	t.Parallel()

	ts := time.Unix(1700000000, 500_000_000).UTC()
	tk := Tick{Symbol: "BTCUSDT", Price: 95, Time: ts}

	tests := []struct {
		name    string
		payload any
		want    Tick
		ok      bool
	}{
		{"value", tk, tk, true},
		{"pointer", &tk, tk, true},
		{"nil pointer", (*Tick)(nil), Tick{}, false},
		{"map", map[string]any{"symbol": "BTCUSDT", "price": 95.0, "timestamp": 1700000000.5}, tk, true},
		{"map without timestamp", map[string]any{"symbol": "BTCUSDT", "price": 95}, Tick{Symbol: "BTCUSDT", Price: 95}, true},
		{"map missing price", map[string]any{"symbol": "BTCUSDT"}, Tick{}, false},
		{"map missing symbol", map[string]any{"price": 95.0}, Tick{}, false},
		{"json", []byte(`{"symbol":"BTCUSDT","price":95,"timestamp":1700000000.5}`), tk, true},
		{"json missing price", []byte(`{"symbol":"BTCUSDT"}`), Tick{}, false},
		{"raw json", json.RawMessage(`{"symbol":"ETHUSDT","price":3000}`), Tick{Symbol: "ETHUSDT", Price: 3000}, true},
		{"empty symbol", Tick{Symbol: "", Price: 1}, Tick{Symbol: "", Price: 1}, false},
		{"nan price", Tick{Symbol: "X", Price: math.NaN()}, Tick{}, false},
		{"negative price", Tick{Symbol: "X", Price: -5}, Tick{}, false},
		{"map negative price", map[string]any{"symbol": "BTCUSDT", "price": -5.0}, Tick{}, false},
		{"unsupported", 42, Tick{}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := DecodeTick(tt.payload)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want.Symbol, got.Symbol)
				assert.Equal(t, tt.want.Price, got.Price)
				assert.True(t, tt.want.Time.Equal(got.Time), "time %v != %v", got.Time, tt.want.Time)
			}
		})
	}
}

func TestTickJSONRoundTripKeepsTimestamp(t *testing.T) {
	t.Parallel()

	in := Tick{Symbol: "BTCUSDT", Price: 101.5, Time: time.Unix(1700000000, 0).UTC()}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"BTCUSDT","price":101.5,"timestamp":1700000000}`, string(data))

	var out Tick
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Symbol, out.Symbol)
	assert.True(t, in.Time.Equal(out.Time))
}
