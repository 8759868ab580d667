package model

import (
	"encoding/json"
	"time"
)

// SignalType is the direction of a trading signal.
type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
)

// Signal is a discrete buy/sell recommendation for one symbol at one point
// in time. Transient; consumed at most once by the decision loop.
type Signal struct {
	Symbol    string     `json:"symbol"`
	Type      SignalType `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// PeriodMessage carries a finished period from the ingestion unit to the
// decision loop when the listener runs in period mode.
type PeriodMessage struct {
	Symbol string `json:"symbol"`
	Period Period `json:"period"`
}
