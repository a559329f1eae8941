package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"SonicTrader/internal/domain/models"
	"SonicTrader/internal/domain/repository"
	pkgkafka "SonicTrader/pkg/kafka"
)

// ClickHouseEventStorage implements EventStorage for ClickHouse.
type ClickHouseEventStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseEventStorage creates ClickHouse event storage.
func NewClickHouseEventStorage(db *sql.DB, table string) repository.EventStorage {
	return &ClickHouseEventStorage{db: db, table: table}
}

// TradeEventsSchema returns the DDL for the trade events table.
func TradeEventsSchema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		at DateTime64(3),
		event_id String,
		symbol String,
		feed_id String,
		action LowCardinality(String),
		confidence Float64,
		price Float64,
		amount Float64,
		signatures Array(String),
		success UInt8,
		error String
	) ENGINE = MergeTree ORDER BY (symbol, at)`, table)
}

func (s *ClickHouseEventStorage) StoreTrade(ctx context.Context, e *models.TradeEvent) error {
	if e == nil {
		return fmt.Errorf("trade event is nil")
	}
	q := fmt.Sprintf("INSERT INTO %s (at, event_id, symbol, feed_id, action, confidence, price, amount, signatures, success, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	sigs := e.Signatures
	if sigs == nil {
		sigs = []string{}
	}
	var success uint8
	if e.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		e.At,
		e.ID,
		e.Symbol,
		e.FeedID,
		string(e.Action),
		e.Confidence,
		e.Price,
		e.Amount,
		sigs,
		success,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert trade event: %w", err)
	}
	return nil
}

func (s *ClickHouseEventStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseEventStorage) Close() error {
	return nil // Managed by pkg
}

// KafkaEventPublisher implements EventPublisher for Kafka.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates Kafka event publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) repository.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// PublishTrade keys messages by symbol so events of one pair stay ordered.
func (p *KafkaEventPublisher) PublishTrade(ctx context.Context, e *models.TradeEvent) error {
	if e == nil {
		return fmt.Errorf("trade event is nil")
	}
	key := strings.ReplaceAll(e.Symbol, "/", "-")
	return p.producer.Publish(ctx, p.topic, []byte(key), e)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
