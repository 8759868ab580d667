package model

// Position represents an open position for one symbol. EntrancePrice is
// meaningless until Filled is true (the opening order's fill sets it).
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           int64   `json:"qty"`
	EntrancePrice float64 `json:"entrance_price"`
	Filled        bool    `json:"filled"`
}
