package model

import "time"

// Order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order represents a broker order as returned by the brokerage capability.
type Order struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Qty    int64  `json:"qty"`
	Status string `json:"status"`
}

// TradeUpdate is an asynchronous order lifecycle notification from the
// broker. Price is only meaningful for fill events.
type TradeUpdate struct {
	Symbol    string    `json:"symbol"`
	OrderID   string    `json:"order_id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price,omitempty"`
	Side      string    `json:"side"`
}

// Trade-update events that complete an order.
const EventFill = "fill"

// benignOrderEvents are lifecycle notifications that require no action.
var benignOrderEvents = map[string]bool{
	"new":                    true,
	"partial_fill":           true,
	"pending_new":            true,
	"stopped":                true,
	"pending_cancel":         true,
	"pending_replace":        true,
	"calculated":             true,
	"order_replace_rejected": true,
	"order_cancel_rejected":  true,
	"done_for_day":           true,
}

// terminalOrderEvents kill an order without filling it. The trader treats
// these as unrecoverable state drift.
var terminalOrderEvents = map[string]bool{
	"cancelled": true,
	"rejected":  true,
	"suspended": true,
	"replaced":  true,
	"expired":   true,
}

// IsBenignOrderEvent reports whether the event requires no action.
func IsBenignOrderEvent(event string) bool { return benignOrderEvents[event] }

// IsTerminalOrderEvent reports whether the event killed the order.
func IsTerminalOrderEvent(event string) bool { return terminalOrderEvents[event] }
