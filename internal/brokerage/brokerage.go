// Package brokerage defines the brokerage capability: order execution and
// account/clock state. Live broker clients sit behind this interface;
// the deterministic in-memory Sim is the implementation used for paper
// trading and backtesting.
package brokerage

import (
	"errors"
	"time"

	"algotrader/internal/model"
)

// Constraint-violation error kinds surfaced to the decision loop. The loop
// matches on these with errors.Is: NotEnoughCash is a routine skip; the
// others indicate state drift and trigger account resynchronization.
var (
	ErrMissingPosition  = errors.New("position does not exist")
	ErrPositionExists   = errors.New("position already exists")
	ErrTooManyPositions = errors.New("too many positions open")
	ErrNotEnoughCash    = errors.New("not enough cash to buy stock")

	// ErrNotSupported is returned by brokerages that cannot serve an
	// optional operation (e.g. position listing for resynchronization).
	ErrNotSupported = errors.New("operation not supported by brokerage")
)

// Clock is the broker's view of the market session.
type Clock struct {
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// Brokerage executes buy/sell requests and reports account state.
type Brokerage interface {
	// GetPosition returns the open position for symbol, or nil when none
	// exists.
	GetPosition(symbol string) (*model.Position, error)

	// BuyStock opens a market buy sized by available cash. Fails with
	// ErrPositionExists, ErrTooManyPositions or ErrNotEnoughCash.
	BuyStock(symbol string) (model.Order, error)

	// SellStock closes the full position. Fails with ErrMissingPosition.
	SellStock(symbol string) (model.Order, error)

	// GetClock returns the market session clock.
	GetClock() (Clock, error)

	// LiquidateAndCancelAll closes all positions and cancels open orders,
	// best-effort. Used only during the end-of-day cleanup window.
	LiquidateAndCancelAll() error

	// ListPositions returns the broker's authoritative open positions.
	// Resynchronization source; may return ErrNotSupported.
	ListPositions() ([]model.Position, error)
}
