package repository

import (
	"context"

	"SonicTrader/internal/domain/models"
)

// PriceOracle is the transport to the external price oracle.
// Stream may multiplex every requested feed over one connection.
type PriceOracle interface {
	Stream(ctx context.Context, feedIDs []string) (OracleStream, error)
	Latest(ctx context.Context, feedIDs []string) ([]byte, error)
}

// OracleStream delivers raw frames until closed. Close must be idempotent.
type OracleStream interface {
	Frames() <-chan []byte
	Errors() <-chan error
	Close() error
}

// FrameDecoder turns one raw oracle frame into zero or more updates.
// Frames that carry no price (acks, heartbeats) decode to an empty slice.
type FrameDecoder interface {
	Decode(frame []byte) ([]models.RawPriceUpdate, error)
}

// TradeService is the external execution service.
type TradeService interface {
	Submit(ctx context.Context, req models.TradeRequest) ([]string, error)
}

type EventPublisher interface {
	PublishTrade(ctx context.Context, e *models.TradeEvent) error
	Close() error
}

type EventStorage interface {
	StoreTrade(ctx context.Context, e *models.TradeEvent) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordUpdate(feedID string)
	RecordError(kind string)
	RecordLastPrice(feedID string, price float64)
	RecordLatency(op string, seconds float64)
	RecordSignal(feedID string, action string, confidence float64)
	RecordTrade(symbol string, action string, success bool)
}
