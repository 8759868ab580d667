// Package strategy provides per-symbol trading strategies driven by
// analyzer values.
//
// A strategy is a three-state machine: Tracking (not yet eligible to trade),
// Buy (eligible to open a position) and Sell (holding, eligible to close).
// GenerateSignal is a pure function of the current analyzer values. Applying
// a signal, including the matching state flip, is the caller's job, so the
// same strategies serve both the live signal-queue path and the embedded
// simulation path.
package strategy

import (
	"algotrader/internal/analyzer"
	"algotrader/internal/brokerage"
	"algotrader/internal/marketdata/agg"
)

// State is the strategy state machine position.
type State string

const (
	StateTracking State = "tracking"
	StateBuy      State = "buy"
	StateSell     State = "sell"
)

// Action is the outcome of a strategy evaluation.
type Action string

const (
	ActionNone Action = ""
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Strategy evaluates analyzer values into trading actions.
type Strategy interface {
	// Name returns the parameterized strategy name.
	Name() string

	// UpdateAnalyzerVals delegates a newly closed period to the owned
	// analyzers.
	UpdateAnalyzerVals(a *agg.Aggregator)

	// GenerateSignal evaluates the current analyzer values. Pure: it does
	// not mutate strategy state. Returns ActionNone while the strategy has
	// fewer than two valid values across its analyzers.
	GenerateSignal() Action

	// State returns the current machine state.
	State() State

	// SetState forces the machine state. Used by the orchestrator for the
	// external Tracking->Buy clock-boundary transition.
	SetState(State)
}

// stateMachine is the embedded state holder shared by all variants.
type stateMachine struct {
	state State
}

func newStateMachine() stateMachine { return stateMachine{state: StateTracking} }

func (m *stateMachine) State() State     { return m.state }
func (m *stateMachine) SetState(s State) { m.state = s }

// haveSlope reports whether a value sequence has at least two defined
// values, the minimum history for slope/crossover comparisons.
func haveSlope(vals []float64) bool {
	return len(vals) >= 2 && !analyzer.IsUnavailable(vals[len(vals)-2])
}

// MakeDecision evaluates the strategy and directly drives the brokerage,
// flipping the strategy state on a successful order. This is the embedded
// mode used by the simulation/backtest execution path; the live path routes
// signals through the decision loop instead.
func MakeDecision(s Strategy, b brokerage.Brokerage, symbol string) error {
	action := s.GenerateSignal()

	switch {
	case s.State() == StateBuy && action == ActionBuy:
		if _, err := b.BuyStock(symbol); err != nil {
			return err
		}
		s.SetState(StateSell)
	case s.State() == StateSell && action == ActionSell:
		if _, err := b.SellStock(symbol); err != nil {
			return err
		}
		s.SetState(StateBuy)
	}
	return nil
}
