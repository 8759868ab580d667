package analyzer

import (
	"fmt"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
)

// VWMA computes a volume-weighted moving average:
// Σ(price*volume) / Σ(volume) over the last N periods. The price source is
// configurable (close, any composite price, etc).
type VWMA struct {
	length   int
	source   string
	averages []float64
	guard    seenGuard
}

// NewVWMA creates a volume-weighted moving average over closing prices.
func NewVWMA(length int) *VWMA {
	return NewVWMAWithSource(length, model.SourceClose)
}

// NewVWMAWithSource creates a VWMA weighting the named price source.
func NewVWMAWithSource(length int, source string) *VWMA {
	return &VWMA{length: length, source: source}
}

func (v *VWMA) Name() string { return fmt.Sprintf("vwma_%d_%s", v.length, v.source) }

func (v *VWMA) UpdateValues(a *agg.Aggregator) {
	if !v.guard.newPeriod(a) {
		return
	}
	if a.NumPeriods() < v.length {
		return
	}

	var priceVolSum, volSum float64
	for _, p := range a.LastPeriods(v.length) {
		priceVolSum += p.Value(v.source) * float64(p.Volume)
		volSum += float64(p.Volume)
	}

	v.averages = append(v.averages, priceVolSum/volSum)
}

// Averages returns the append-only value sequence.
func (v *VWMA) Averages() []float64 { return v.averages }
