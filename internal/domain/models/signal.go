package models

import "time"

// Action is the direction of a trading signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is produced fresh on every evaluation and never persisted.
type Signal struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"` // [0,1]
	ShortSMA   float64 `json:"short_sma"`
	LongSMA    float64 `json:"long_sma"`
}

// PairSignal is the evaluation result for one pair. Signal is nil when history is too short.
type PairSignal struct {
	Pair      AssetPair `json:"pair"`
	Signal    *Signal   `json:"signal,omitempty"`
	Points    int       `json:"points"`
	Timestamp time.Time `json:"timestamp"`
}
