package analyzer

import (
	"fmt"
	"math"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
)

// Default ALMA shape parameters.
const (
	DefaultALMASigma  = 6.0
	DefaultALMAOffset = 0.85
)

// ALMA computes a Gaussian-weighted moving average of closing prices
// (Arnaud Legoux style). For window position k in [0,N) the weight is
// exp(-(k-m)²/(2s²)) with m = offset*(N-1) and s = N/sigma; the output is
// the weighted sum of the last N closes divided by the weight sum, so the
// normalization divides out exactly.
type ALMA struct {
	length   int
	sigma    float64
	offset   float64 // in [0,1]; shifts the weight peak toward recent closes
	averages []float64
	guard    seenGuard
}

// NewALMA creates a Gaussian-weighted moving average analyzer with the
// default sigma and offset.
func NewALMA(length int) *ALMA {
	return NewALMAWithShape(length, DefaultALMASigma, DefaultALMAOffset)
}

// NewALMAWithShape creates an ALMA with explicit spread and offset.
func NewALMAWithShape(length int, sigma, offset float64) *ALMA {
	return &ALMA{length: length, sigma: sigma, offset: offset}
}

func (m *ALMA) Name() string { return fmt.Sprintf("alma_%d", m.length) }

func (m *ALMA) UpdateValues(a *agg.Aggregator) {
	if !m.guard.newPeriod(a) {
		return
	}
	if a.NumPeriods() < m.length {
		return
	}

	closes := a.LastValues(model.SourceClose, m.length) // oldest first

	peak := m.offset * float64(m.length-1)
	spread := float64(m.length) / m.sigma

	var weightedSum, weightSum float64
	for k := 0; k < m.length; k++ {
		d := float64(k) - peak
		w := math.Exp(-(d * d) / (2 * spread * spread))
		weightedSum += w * closes[k]
		weightSum += w
	}

	m.averages = append(m.averages, weightedSum/weightSum)
}

// Averages returns the append-only value sequence.
func (m *ALMA) Averages() []float64 { return m.averages }
