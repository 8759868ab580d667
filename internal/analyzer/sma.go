package analyzer

import (
	"fmt"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
)

// SMA computes the arithmetic mean of the last N closing prices.
type SMA struct {
	length   int
	averages []float64
	guard    seenGuard
}

// NewSMA creates a simple moving average analyzer over length periods.
func NewSMA(length int) *SMA {
	return &SMA{length: length}
}

func (s *SMA) Name() string { return fmt.Sprintf("sma_%d", s.length) }

func (s *SMA) UpdateValues(a *agg.Aggregator) {
	if !s.guard.newPeriod(a) {
		return
	}
	if a.NumPeriods() < s.length {
		return
	}
	closes := a.LastValues(model.SourceClose, s.length)
	s.averages = append(s.averages, mean(closes))
}

// Averages returns the append-only value sequence.
func (s *SMA) Averages() []float64 { return s.averages }
