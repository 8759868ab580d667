package model

import (
	"encoding/json"
	"math"
	"time"
)

// Price source names accepted by Period.Value.
const (
	SourceOpen  = "open"
	SourceClose = "close"
	SourceHigh  = "high"
	SourceLow   = "low"
	SourceHL2   = "hl2"
	SourceOC2   = "oc2"
	SourceHLC3  = "hlc3"
	SourceOHLC4 = "ohlc4"
	SourceHLCC4 = "hlcc4"
)

// Period represents a fixed-duration OHLCV bar aggregated from quotes.
// Timeframe is the bar duration in seconds. A period accumulates while
// open; Finalize computes the derived composite prices exactly once, after
// which the period is never mutated.
type Period struct {
	Timeframe int       `json:"timeframe"` // seconds
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"` // exclusive upper bound
	Open      float64   `json:"open"`
	Close     float64   `json:"close"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    int64     `json:"volume"`

	// Derived composite prices, computed at finalization.
	HL2   float64 `json:"hl2"`
	OC2   float64 `json:"oc2"`
	HLC3  float64 `json:"hlc3"`
	OHLC4 float64 `json:"ohlc4"`
	HLCC4 float64 `json:"hlcc4"` // close double-weighted
}

// Finalize computes the derived composite prices. Called exactly once, when
// the period closes. Both the quote-folding path and the precomputed-period
// path go through this function so derived prices are bit-identical.
func (p *Period) Finalize() {
	p.HL2 = (p.High + p.Low) / 2
	p.OC2 = (p.Open + p.Close) / 2
	p.HLC3 = (p.High + p.Low + p.Close) / 3
	p.OHLC4 = (p.Open + p.High + p.Low + p.Close) / 4
	p.HLCC4 = (p.High + p.Low + p.Close + p.Close) / 4
}

// Value returns the price for the named source. Unknown sources yield NaN.
func (p *Period) Value(source string) float64 {
	switch source {
	case SourceOpen:
		return p.Open
	case SourceClose:
		return p.Close
	case SourceHigh:
		return p.High
	case SourceLow:
		return p.Low
	case SourceHL2:
		return p.HL2
	case SourceOC2:
		return p.OC2
	case SourceHLC3:
		return p.HLC3
	case SourceOHLC4:
		return p.OHLC4
	case SourceHLCC4:
		return p.HLCC4
	default:
		return math.NaN()
	}
}

// JSON returns the JSON-encoded period (ignoring errors for hot-path usage).
func (p *Period) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}
