package strategy

import (
	"fmt"

	"algotrader/internal/analyzer"
	"algotrader/internal/marketdata/agg"
)

// MACross signals on the relation between a short and a long moving
// average: buy while short > long, sell while short < long. State gating by
// the caller turns the continuous relation into alternating signals.
type MACross struct {
	stateMachine
	short analyzer.MovingAverage
	long  analyzer.MovingAverage
}

// NewMACross creates a two-average crossover strategy.
func NewMACross(short, long analyzer.MovingAverage) *MACross {
	return &MACross{stateMachine: newStateMachine(), short: short, long: long}
}

func (s *MACross) Name() string {
	return fmt.Sprintf("ma_cross_%s_%s", s.short.Name(), s.long.Name())
}

func (s *MACross) UpdateAnalyzerVals(a *agg.Aggregator) {
	s.short.UpdateValues(a)
	s.long.UpdateValues(a)
}

func (s *MACross) GenerateSignal() Action {
	if !haveSlope(s.short.Averages()) || !haveSlope(s.long.Averages()) {
		return ActionNone
	}

	shortVal := last(s.short.Averages())
	longVal := last(s.long.Averages())

	switch {
	case shortVal > longVal:
		return ActionBuy
	case shortVal < longVal:
		return ActionSell
	default:
		return ActionNone
	}
}

func last(vals []float64) float64 { return vals[len(vals)-1] }
