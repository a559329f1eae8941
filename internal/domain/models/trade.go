package models

import "time"

// TradeRequest is the semantic request sent to the execution service.
type TradeRequest struct {
	ID          string    `json:"id"`
	Base        string    `json:"base"`
	Quote       string    `json:"quote"`
	FeedID      string    `json:"feed_id"`
	Action      Action    `json:"action"`
	Amount      float64   `json:"amount"`
	Confidence  float64   `json:"confidence"`
	Price       float64   `json:"price,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// TradeResult is what the executor sent and what came back. Request is zero
// when the trade was rejected before submission.
type TradeResult struct {
	Request    TradeRequest
	Signatures []string
}

// TradeEvent records one attempted trade.
type TradeEvent struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	FeedID     string    `json:"feed_id"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
	Signatures []string  `json:"signatures,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// SessionStatus is a snapshot of the trading session.
type SessionStatus struct {
	Active           bool           `json:"active"`
	Pairs            []AssetPair    `json:"pairs"`
	Subscriptions    int            `json:"subscriptions"`
	Ticks            int64          `json:"ticks"`
	LastTickAt       *time.Time     `json:"last_tick_at,omitempty"`
	History          map[string]int `json:"history"`
	TotalTrades      int64          `json:"total_trades"`
	SuccessfulTrades int64          `json:"successful_trades"`
	FailedTrades     int64          `json:"failed_trades"`
}
