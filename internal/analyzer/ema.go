package analyzer

import (
	"fmt"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
)

// DefaultSmoothing is the conventional EMA smoothing constant; it yields the
// familiar multiplier 2/(1+N).
const DefaultSmoothing = 2.0

// EMA computes an exponential moving average of closing prices. The first
// value is seeded with the simple mean of the first N closes; subsequent
// values are close*multiplier + previous*(1-multiplier).
type EMA struct {
	length     int
	multiplier float64
	averages   []float64
	guard      seenGuard
}

// NewEMA creates an exponential moving average analyzer over length periods
// with the default smoothing constant.
func NewEMA(length int) *EMA {
	return NewEMAWithSmoothing(length, DefaultSmoothing)
}

// NewEMAWithSmoothing creates an EMA with an explicit smoothing constant.
func NewEMAWithSmoothing(length int, smoothing float64) *EMA {
	return &EMA{
		length:     length,
		multiplier: smoothing / (1 + float64(length)),
	}
}

func (e *EMA) Name() string { return fmt.Sprintf("ema_%d", e.length) }

func (e *EMA) UpdateValues(a *agg.Aggregator) {
	if !e.guard.newPeriod(a) {
		return
	}
	if a.NumPeriods() < e.length {
		return
	}

	var avg float64
	if len(e.averages) == 0 {
		avg = mean(a.LastValues(model.SourceClose, e.length))
	} else {
		prev := e.averages[len(e.averages)-1]
		avg = a.LastValue(model.SourceClose)*e.multiplier + prev*(1-e.multiplier)
	}
	e.averages = append(e.averages, avg)
}

// Averages returns the append-only value sequence.
func (e *EMA) Averages() []float64 { return e.averages }
