package strategy

import "algotrader/internal/marketdata/agg"

// Trivial buys unconditionally on the first opportunity and never sells.
// Used as a buy-and-hold baseline for simulations.
type Trivial struct {
	stateMachine
}

// NewTrivial creates the buy-and-hold baseline strategy.
func NewTrivial() *Trivial {
	return &Trivial{stateMachine: newStateMachine()}
}

func (s *Trivial) Name() string { return "trivial" }

func (s *Trivial) UpdateAnalyzerVals(a *agg.Aggregator) {}

func (s *Trivial) GenerateSignal() Action { return ActionBuy }
