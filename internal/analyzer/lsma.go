package analyzer

import (
	"fmt"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
)

// LSMA fits a least-squares line to the last N closing prices and appends
// the regression-line intercept as the smoothed estimate.
//
// Closes are indexed x=1..N oldest first. Solving the two-variable normal
// equations for slope a and intercept b:
//
//	a = (N*Σxy - Σx*Σy) / (N*Σx² - (Σx)²)
//	b = (Σy - a*Σx) / N
type LSMA struct {
	length   int
	averages []float64
	guard    seenGuard
}

// NewLSMA creates a least-squares moving average analyzer over length periods.
func NewLSMA(length int) *LSMA {
	return &LSMA{length: length}
}

func (l *LSMA) Name() string { return fmt.Sprintf("lsma_%d", l.length) }

func (l *LSMA) UpdateValues(a *agg.Aggregator) {
	if !l.guard.newPeriod(a) {
		return
	}
	if a.NumPeriods() < l.length {
		return
	}

	closes := a.LastValues(model.SourceClose, l.length)

	var sumX, sumY, sumXX, sumXY float64
	for i, y := range closes {
		x := float64(i + 1)
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	n := float64(l.length)
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / n

	l.averages = append(l.averages, intercept)
}

// Averages returns the append-only value sequence.
func (l *LSMA) Averages() []float64 { return l.averages }
