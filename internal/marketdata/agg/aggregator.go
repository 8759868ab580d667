// Package agg provides the period aggregator that buckets a quote stream
// into fixed-duration OHLCV periods.
//
// One Aggregator owns the period sequence for a single (symbol, timeframe)
// pair. Exactly one period is open at any time; closed periods are appended
// to an ordered sequence and never mutated afterwards.
package agg

import (
	"time"

	"algotrader/internal/model"
)

// Aggregator builds fixed-duration periods from a stream of quotes.
// Not goroutine-safe: designed for a single producer per symbol.
type Aggregator struct {
	timeframe int // seconds
	periods   []model.Period
	current   *model.Period
}

// New creates an Aggregator for the given timeframe in seconds.
func New(timeframe int) *Aggregator {
	return &Aggregator{timeframe: timeframe}
}

// Timeframe returns the configured period duration in seconds.
func (a *Aggregator) Timeframe() int { return a.timeframe }

// ProcessQuote folds a quote into the current period. Returns true when the
// quote's timestamp is at or past the current period's end time, in which
// case the current period is finalized and appended to the closed sequence
// and a new period anchored at the quote is opened.
//
// Out-of-order or duplicate timestamps within the open window are folded
// first-writer-wins; no reordering buffer is kept. This mirrors the ordering
// guarantee of the real-time feed.
func (a *Aggregator) ProcessQuote(q model.Quote) bool {
	if a.current == nil {
		a.current = a.newPeriod(q)
		return false
	}

	if !q.Timestamp.Before(a.current.EndTime) {
		a.current.Finalize()
		a.periods = append(a.periods, *a.current)
		a.current = a.newPeriod(q)
		return true
	}

	a.fold(q)
	return false
}

// ProcessPeriod appends an externally supplied, already-complete period
// (precomputed/offline bars), bypassing quote folding. The period is
// finalized through the same code path as the quote path so derived prices
// are identical for the same inputs.
func (a *Aggregator) ProcessPeriod(p model.Period) {
	p.Finalize()
	a.periods = append(a.periods, p)
}

func (a *Aggregator) newPeriod(q model.Quote) *model.Period {
	return &model.Period{
		Timeframe: a.timeframe,
		StartTime: q.Timestamp,
		EndTime:   q.Timestamp.Add(time.Duration(a.timeframe) * time.Second),
		Open:      q.BidPrice,
		Close:     q.BidPrice,
		High:      q.High(),
		Low:       q.Low(),
		Volume:    q.BidSize,
	}
}

func (a *Aggregator) fold(q model.Quote) {
	c := a.current
	c.Close = q.BidPrice
	if h := q.High(); h > c.High {
		c.High = h
	}
	if l := q.Low(); l < c.Low {
		c.Low = l
	}
	c.Volume += q.BidSize
}

// NumPeriods returns the number of closed periods.
func (a *Aggregator) NumPeriods() int { return len(a.periods) }

// Periods returns the closed period sequence. Callers must not mutate it.
func (a *Aggregator) Periods() []model.Period { return a.periods }

// Period returns the closed period at index i.
func (a *Aggregator) Period(i int) model.Period { return a.periods[i] }

// Current returns the open period, or nil before the first quote.
func (a *Aggregator) Current() *model.Period { return a.current }

// LastValue returns the named price source of the most recent closed period.
func (a *Aggregator) LastValue(source string) float64 {
	return a.periods[len(a.periods)-1].Value(source)
}

// LastValues returns the named price source of the last n closed periods,
// oldest first. Returns fewer values when less history exists.
func (a *Aggregator) LastValues(source string, n int) []float64 {
	if n > len(a.periods) {
		n = len(a.periods)
	}
	out := make([]float64, 0, n)
	for _, p := range a.periods[len(a.periods)-n:] {
		out = append(out, p.Value(source))
	}
	return out
}

// LastPeriods returns the last n closed periods, oldest first.
func (a *Aggregator) LastPeriods(n int) []model.Period {
	if n > len(a.periods) {
		n = len(a.periods)
	}
	return a.periods[len(a.periods)-n:]
}
