package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRequestValidate(t *testing.T) {
	t.Parallel()

	ok := OrderRequest{Symbol: "BTCUSDT", Side: Buy, Qty: 1, Price: 100, Kind: Limit}

	tests := []struct {
		name   string
		mutate func(r *OrderRequest)
		errMsg string
	}{
		{"valid", func(r *OrderRequest) {}, ""},
		{"zero_price_ok", func(r *OrderRequest) { r.Price = 0 }, ""},
		{"missing_symbol", func(r *OrderRequest) { r.Symbol = " " }, "symbol is required"},
		{"bad_side", func(r *OrderRequest) { r.Side = "long" }, "unknown side"},
		{"bad_kind", func(r *OrderRequest) { r.Kind = "stop" }, "unknown order type"},
		{"zero_qty", func(r *OrderRequest) { r.Qty = 0 }, "qty must be positive"},
		{"nan_qty", func(r *OrderRequest) { r.Qty = math.NaN() }, "qty must be positive"},
		{"negative_price", func(r *OrderRequest) { r.Price = -1 }, "price must be"},
		{"inf_price", func(r *OrderRequest) { r.Price = math.Inf(1) }, "price must be"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := ok
			tt.mutate(&r)
			err := r.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOrder)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	s, err := ParseSide(" BUY ")
	require.NoError(t, err)
	assert.Equal(t, Buy, s)
	_, err = ParseSide("hold")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	k, err := ParseOrderKind("")
	require.NoError(t, err)
	assert.Equal(t, Limit, k)
	k, err = ParseOrderKind("Market")
	require.NoError(t, err)
	assert.Equal(t, Market, k)
	_, err = ParseOrderKind("stop")
	assert.Error(t, err)

	m, err := ParseMarginMode("cross")
	require.NoError(t, err)
	assert.Equal(t, Cross, m)
	m, err = ParseMarginMode("")
	require.NoError(t, err)
	assert.Equal(t, Isolated, m)
	_, err = ParseMarginMode("portfolio")
	assert.Error(t, err)
}
