// Package analyzer provides technical indicator calculations over aggregated
// periods.
//
// Every analyzer implements the Analyzer interface. UpdateValues inspects the
// aggregator's closed-period count and appends exactly one value to the
// analyzer's own sequence per newly closed period; when insufficient history
// exists it appends nothing (or a NaN marker for multi-sequence analyzers).
// Value sequences are append-only and never rewritten, so index i of a fully
// aligned sequence corresponds to closed period index i.
package analyzer

import (
	"math"

	"algotrader/internal/marketdata/agg"
)

// Unavailable is the sentinel for "not enough history yet" inside value
// sequences that must stay index-aligned.
var Unavailable = math.NaN()

// IsUnavailable reports whether v is the unavailable marker.
func IsUnavailable(v float64) bool { return math.IsNaN(v) }

// Analyzer incrementally computes indicator values from aggregated periods.
type Analyzer interface {
	// Name returns the parameterized analyzer name, e.g. "sma_20".
	Name() string

	// UpdateValues appends at most one new value from the aggregator's
	// latest closed period. Calling it again before another period closes
	// appends nothing.
	UpdateValues(a *agg.Aggregator)
}

// MovingAverage is implemented by analyzers whose output is a single
// appendable average sequence, which is what the generic crossover and
// slope strategies compare.
type MovingAverage interface {
	Analyzer
	Averages() []float64
}

// seenGuard records the closed-period count already consumed so that a
// redundant UpdateValues call appends nothing.
type seenGuard struct {
	seen int
}

func (g *seenGuard) newPeriod(a *agg.Aggregator) bool {
	if a.NumPeriods() == g.seen {
		return false
	}
	g.seen = a.NumPeriods()
	return true
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
