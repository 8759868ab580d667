package strategy

import (
	"fmt"

	"algotrader/internal/analyzer"
	"algotrader/internal/marketdata/agg"
)

// MASlope signals on the sign of a single moving average's slope: buy while
// the average is rising, sell while it is falling.
type MASlope struct {
	stateMachine
	ma analyzer.MovingAverage
}

// NewMASlope creates a slope-sign strategy over one moving average.
func NewMASlope(ma analyzer.MovingAverage) *MASlope {
	return &MASlope{stateMachine: newStateMachine(), ma: ma}
}

func (s *MASlope) Name() string { return fmt.Sprintf("ma_slope_%s", s.ma.Name()) }

func (s *MASlope) UpdateAnalyzerVals(a *agg.Aggregator) {
	s.ma.UpdateValues(a)
}

func (s *MASlope) GenerateSignal() Action {
	avgs := s.ma.Averages()
	if !haveSlope(avgs) {
		return ActionNone
	}

	slope := avgs[len(avgs)-1] - avgs[len(avgs)-2]
	switch {
	case slope > 0:
		return ActionBuy
	case slope < 0:
		return ActionSell
	default:
		return ActionNone
	}
}
