package service

import (
	"context"

	"SonicTrader/internal/domain/models"
)

// SignalEvaluator derives a signal from a price window. Nil means no signal.
type SignalEvaluator interface {
	Evaluate(history []models.PricePoint) *models.Signal
}

// TradeRunner submits a trade for a pair. The result carries the submitted
// request even when the service call fails.
type TradeRunner interface {
	Execute(ctx context.Context, pair models.AssetPair, signal models.Signal) (models.TradeResult, error)
}

// Subscription is an open feed subscription.
type Subscription interface {
	Close() error
}

// FeedSubscriber opens push subscriptions for a set of feeds.
type FeedSubscriber interface {
	Subscribe(ctx context.Context, feedIDs []string, onUpdate func(models.PriceUpdate)) (Subscription, error)
}

// EventSink records trade attempts.
type EventSink interface {
	RecordTrade(ctx context.Context, e *models.TradeEvent) error
}

// HistoryStore holds bounded per-feed price history.
type HistoryStore interface {
	Append(feedID string, p models.PricePoint)
	Snapshot(feedID string) []models.PricePoint
	Len(feedID string) int
	Reset()
}
