package sim

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrNotRunning rejects placement and cancellation while the account is
	// stopped. It stands for the "no order id" result.
	ErrNotRunning = errors.New("paper broker is not running")

	// ErrInvalidOrder wraps every order validation failure.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNoPrice is returned for a market order without a caller price when
	// no tick has been seen for the symbol.
	ErrNoPrice = errors.New("no price available")

	// ErrInvalidFill reports a fill that should never have reached the
	// ledger. It is a programming error in the caller, not a user error.
	ErrInvalidFill = errors.New("invalid fill")
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide is case-insensitive.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
}

// sign is +1 for buys and -1 for sells.
func (s Side) sign() float64 {
	if s == Buy {
		return 1
	}
	return -1
}

type OrderKind string

const (
	Limit  OrderKind = "limit"
	Market OrderKind = "market"
)

// ParseOrderKind is case-insensitive; an empty string means limit.
func ParseOrderKind(s string) (OrderKind, error) {
	switch OrderKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", Limit:
		return Limit, nil
	case Market:
		return Market, nil
	}
	return "", fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, s)
}

type OrderStatus string

const (
	StatusOpen     OrderStatus = "open"
	StatusFilled   OrderStatus = "filled"
	StatusCanceled OrderStatus = "canceled"
)

// MarginMode is carried on the account for display. It does not change
// accounting.
type MarginMode string

const (
	Isolated MarginMode = "isolated"
	Cross    MarginMode = "cross"
)

func ParseMarginMode(s string) (MarginMode, error) {
	switch MarginMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Isolated:
		return Isolated, nil
	case Cross:
		return Cross, nil
	}
	return "", fmt.Errorf("unknown margin mode %q (want isolated|cross)", s)
}

// OrderRequest is what a caller asks for. Price is the limit price for limit
// orders and the execution price for market orders; a market order with
// Price 0 executes at the last tick seen for Symbol.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Qty        float64
	Price      float64
	Kind       OrderKind
	ReduceOnly bool
}

// Validate checks the request before an Order is created from it.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if r.Side != Buy && r.Side != Sell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, r.Side)
	}
	if r.Kind != Limit && r.Kind != Market {
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, r.Kind)
	}
	if math.IsNaN(r.Qty) || math.IsInf(r.Qty, 0) || r.Qty <= 0 {
		return fmt.Errorf("%w: qty must be positive, got %v", ErrInvalidOrder, r.Qty)
	}
	if math.IsNaN(r.Price) || math.IsInf(r.Price, 0) || r.Price < 0 {
		return fmt.Errorf("%w: price must be a non-negative number, got %v", ErrInvalidOrder, r.Price)
	}
	return nil
}

// Order is an accepted request. Everything but Status is fixed at placement.
type Order struct {
	ID         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	Qty        float64     `json:"qty"`
	Price      float64     `json:"price"`
	Kind       OrderKind   `json:"type"`
	ReduceOnly bool        `json:"reduce_only"`
	Status     OrderStatus `json:"status"`
	Time       time.Time   `json:"timestamp"`
}

// triggeredBy reports whether a tick at price satisfies the limit: buys at
// or below the limit, sells at or above it.
func (o Order) triggeredBy(price float64) bool {
	if o.Side == Buy {
		return price <= o.Price
	}
	return price >= o.Price
}
