package stream

import (
	"context"
	"sort"

	"algotrader/internal/model"
)

// ReplayFeed drives subscribers from recorded quotes in global timestamp
// order, merging across symbols. Trade update callbacks are registered but
// never invoked; a replay has no broker. Run finishes when every quote has
// been delivered or ctx is cancelled.
type ReplayFeed struct {
	data      map[string][]model.Quote
	quoteSubs map[string][]func(model.Quote)
}

// NewReplayFeed creates a feed over recorded per-symbol quote series. Each
// series must already be in ascending timestamp order.
func NewReplayFeed(quotesBySymbol map[string][]model.Quote) *ReplayFeed {
	return &ReplayFeed{
		data:      quotesBySymbol,
		quoteSubs: make(map[string][]func(model.Quote)),
	}
}

func (r *ReplayFeed) SubscribeQuotes(symbol string, fn func(model.Quote)) {
	r.quoteSubs[symbol] = append(r.quoteSubs[symbol], fn)
}

func (r *ReplayFeed) SubscribeTradeUpdates(func(model.TradeUpdate)) {}

// Run delivers all quotes and returns.
func (r *ReplayFeed) Run(ctx context.Context) error {
	type cursor struct {
		symbol string
		quotes []model.Quote
		idx    int
	}

	cursors := make([]*cursor, 0, len(r.data))
	for symbol, quotes := range r.data {
		if len(quotes) > 0 && len(r.quoteSubs[symbol]) > 0 {
			cursors = append(cursors, &cursor{symbol: symbol, quotes: quotes})
		}
	}
	// Deterministic tie-breaking for equal timestamps.
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].symbol < cursors[j].symbol })

	for len(cursors) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		next := 0
		for i := 1; i < len(cursors); i++ {
			if cursors[i].quotes[cursors[i].idx].Timestamp.Before(cursors[next].quotes[cursors[next].idx].Timestamp) {
				next = i
			}
		}

		c := cursors[next]
		for _, fn := range r.quoteSubs[c.symbol] {
			fn(c.quotes[c.idx])
		}

		c.idx++
		if c.idx == len(c.quotes) {
			cursors = append(cursors[:next], cursors[next+1:]...)
		}
	}
	return nil
}
