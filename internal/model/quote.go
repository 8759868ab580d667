package model

import "time"

// Quote represents a single bid/ask quote from the market data feed.
// Immutable once constructed; consumed exactly once by one aggregator
// per symbol.
type Quote struct {
	Timestamp time.Time `json:"t"`
	AskPrice  float64   `json:"ap"`
	AskSize   int64     `json:"as"`
	BidPrice  float64   `json:"bp"`
	BidSize   int64     `json:"bs"`

	// BidHigh/BidLow are only populated by pre-aggregated data sets where
	// one row summarizes several raw quotes. Zero means not reported.
	BidHigh float64 `json:"max_bp,omitempty"`
	BidLow  float64 `json:"min_bp,omitempty"`
}

// QuoteMessage pairs a quote with its symbol on the ingestion channel.
type QuoteMessage struct {
	Symbol string `json:"symbol"`
	Quote  Quote  `json:"quote"`
}

// High returns the highest bid observed in this quote, falling back to the
// bid price when no high is reported.
func (q *Quote) High() float64 {
	if q.BidHigh > 0 {
		return q.BidHigh
	}
	return q.BidPrice
}

// Low returns the lowest bid observed in this quote, falling back to the
// bid price when no low is reported.
func (q *Quote) Low() float64 {
	if q.BidLow > 0 {
		return q.BidLow
	}
	return q.BidPrice
}
