package strategy

import (
	"fmt"

	"algotrader/internal/analyzer"
	"algotrader/internal/marketdata/agg"
)

// PSAROnly signals purely on the trend-reversal stop's direction: buy while
// the trend is rising, sell while falling.
type PSAROnly struct {
	stateMachine
	psar *analyzer.PSAR
}

// NewPSAROnly creates a trend-reversal-only strategy.
func NewPSAROnly(psar *analyzer.PSAR) *PSAROnly {
	return &PSAROnly{stateMachine: newStateMachine(), psar: psar}
}

func (s *PSAROnly) Name() string { return fmt.Sprintf("%s_only", s.psar.Name()) }

func (s *PSAROnly) UpdateAnalyzerVals(a *agg.Aggregator) {
	s.psar.UpdateValues(a)
}

func (s *PSAROnly) GenerateSignal() Action {
	if len(s.psar.Values()) == 0 {
		return ActionNone
	}
	if s.psar.IsRising() {
		return ActionBuy
	}
	return ActionSell
}
