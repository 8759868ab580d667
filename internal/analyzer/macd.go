package analyzer

import (
	"fmt"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
)

// Default MACD lengths.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// MACD is the two-average convergence/divergence oscillator. It maintains
// fast and slow exponential averages of closing price; the oscillator value
// is fast-slow once both are available; a third exponential average smooths
// the oscillator itself (the signal line).
//
// The fast, slow and signal sequences each follow the unavailable-until-
// enough-history rule independently, using NaN markers to stay
// index-aligned with their own inputs. The oscillator sequence holds only
// defined values.
type MACD struct {
	fastLength   int
	slowLength   int
	signalLength int

	fastMult   float64
	slowMult   float64
	signalMult float64

	fastAverages []float64
	slowAverages []float64
	macdValues   []float64
	signalValues []float64

	guard seenGuard
}

// NewMACD creates a MACD analyzer with the conventional 12/26/9 lengths.
func NewMACD() *MACD {
	return NewMACDWithLengths(DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
}

// NewMACDWithLengths creates a MACD analyzer with explicit lengths.
func NewMACDWithLengths(fast, slow, signal int) *MACD {
	return &MACD{
		fastLength:   fast,
		slowLength:   slow,
		signalLength: signal,
		fastMult:     DefaultSmoothing / (1 + float64(fast)),
		slowMult:     DefaultSmoothing / (1 + float64(slow)),
		signalMult:   DefaultSmoothing / (1 + float64(signal)),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("macd_%d_%d_%d", m.fastLength, m.slowLength, m.signalLength)
}

// updateEMA appends the next value of an EMA chain over source: NaN until
// the chain has length inputs, then an SMA seed, then the recurrence.
func updateEMA(source, averages []float64, multiplier float64, length int) []float64 {
	if len(source) < length {
		return append(averages, Unavailable)
	}
	if len(averages) == 0 || IsUnavailable(averages[len(averages)-1]) {
		return append(averages, mean(source[len(source)-length:]))
	}
	prev := averages[len(averages)-1]
	cur := source[len(source)-1]*multiplier + prev*(1-multiplier)
	return append(averages, cur)
}

func (m *MACD) UpdateValues(a *agg.Aggregator) {
	if !m.guard.newPeriod(a) {
		return
	}

	closes := a.LastValues(model.SourceClose, m.slowLength)
	m.fastAverages = updateEMA(closes, m.fastAverages, m.fastMult, m.fastLength)
	m.slowAverages = updateEMA(closes, m.slowAverages, m.slowMult, m.slowLength)

	fast := m.fastAverages[len(m.fastAverages)-1]
	slow := m.slowAverages[len(m.slowAverages)-1]
	if !IsUnavailable(fast) && !IsUnavailable(slow) {
		m.macdValues = append(m.macdValues, fast-slow)
	}

	m.signalValues = updateEMA(m.macdValues, m.signalValues, m.signalMult, m.signalLength)
}

// MACDValues returns the oscillator sequence (fast minus slow).
func (m *MACD) MACDValues() []float64 { return m.macdValues }

// SignalValues returns the signal-line sequence; leading entries are NaN
// until enough oscillator history exists.
func (m *MACD) SignalValues() []float64 { return m.signalValues }
