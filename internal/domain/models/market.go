package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AssetPair identifies one tradable instrument and its oracle feed.
type AssetPair struct {
	Base        string  `yaml:"base" json:"base" validate:"required"`
	Quote       string  `yaml:"quote" json:"quote" validate:"required"`
	FeedID      string  `yaml:"feed_id" json:"feed_id" validate:"required"`
	TradeAmount float64 `yaml:"trade_amount" json:"trade_amount" validate:"gte=0"`
}

// Symbol returns BASE/QUOTE.
func (p AssetPair) Symbol() string {
	return strings.ToUpper(p.Base) + "/" + strings.ToUpper(p.Quote)
}

// PricePoint is one observed sample.
type PricePoint struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}

// RawPriceUpdate is an oracle update before exponent scaling.
type RawPriceUpdate struct {
	FeedID       string
	Mantissa     int64
	ConfMantissa int64
	Expo         int32
	PublishTime  int64
}

// PriceUpdate is a decoded oracle update.
type PriceUpdate struct {
	FeedID     string  `json:"feed_id"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

// Decode scales mantissa and confidence by 10^Expo.
// The arithmetic is done in decimal so the result is the float64 nearest to the exact value.
func (r RawPriceUpdate) Decode() PriceUpdate {
	return PriceUpdate{
		FeedID:     r.FeedID,
		Price:      decimal.New(r.Mantissa, r.Expo).InexactFloat64(),
		Confidence: decimal.New(r.ConfMantissa, r.Expo).InexactFloat64(),
		Timestamp:  r.PublishTime,
	}
}

// Point converts the update into a history sample.
func (u PriceUpdate) Point() PricePoint {
	return PricePoint{Price: u.Price, Timestamp: u.Timestamp}
}
