package strategy

import (
	"fmt"

	"algotrader/internal/analyzer"
	"algotrader/internal/marketdata/agg"
)

// PSARCross combines the trend-reversal stop's direction with a two-average
// comparison: buy requires trend rising AND short > long; sell requires
// trend falling AND short < long. The buy side is a conjunction rather than
// a pure crossover; the asymmetry is intentional.
type PSARCross struct {
	stateMachine
	psar  *analyzer.PSAR
	short analyzer.MovingAverage
	long  analyzer.MovingAverage
}

// NewPSARCross creates a trend-reversal crossover strategy.
func NewPSARCross(psar *analyzer.PSAR, short, long analyzer.MovingAverage) *PSARCross {
	return &PSARCross{
		stateMachine: newStateMachine(),
		psar:         psar,
		short:        short,
		long:         long,
	}
}

func (s *PSARCross) Name() string {
	return fmt.Sprintf("psar_cross_%s_%s", s.short.Name(), s.long.Name())
}

func (s *PSARCross) UpdateAnalyzerVals(a *agg.Aggregator) {
	s.psar.UpdateValues(a)
	s.short.UpdateValues(a)
	s.long.UpdateValues(a)
}

func (s *PSARCross) haveEnoughInfo() bool {
	if len(s.psar.Values()) == 0 {
		return false
	}
	return haveSlope(s.short.Averages()) && haveSlope(s.long.Averages())
}

func (s *PSARCross) GenerateSignal() Action {
	if !s.haveEnoughInfo() {
		return ActionNone
	}

	shortVal := last(s.short.Averages())
	longVal := last(s.long.Averages())

	switch {
	case s.psar.IsRising() && shortVal > longVal:
		return ActionBuy
	case !s.psar.IsRising() && shortVal < longVal:
		return ActionSell
	default:
		return ActionNone
	}
}
