package strategy

import (
	"fmt"

	"algotrader/internal/analyzer"
	"algotrader/internal/marketdata/agg"
)

// MACDCross signals on the oscillator crossing its signal line: buy while
// the oscillator is above the signal line, sell while below.
type MACDCross struct {
	stateMachine
	macd *analyzer.MACD
}

// NewMACDCross creates an oscillator-crossover strategy.
func NewMACDCross(macd *analyzer.MACD) *MACDCross {
	return &MACDCross{stateMachine: newStateMachine(), macd: macd}
}

func (s *MACDCross) Name() string { return fmt.Sprintf("%s_cross", s.macd.Name()) }

func (s *MACDCross) UpdateAnalyzerVals(a *agg.Aggregator) {
	s.macd.UpdateValues(a)
}

func (s *MACDCross) GenerateSignal() Action {
	signals := s.macd.SignalValues()
	if len(signals) < 2 || analyzer.IsUnavailable(last(signals)) {
		return ActionNone
	}

	macdVal := last(s.macd.MACDValues())
	signalVal := last(signals)

	switch {
	case macdVal > signalVal:
		return ActionBuy
	case macdVal < signalVal:
		return ActionSell
	default:
		return ActionNone
	}
}
