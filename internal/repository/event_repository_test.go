package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTradeEventsSchema(t *testing.T) {
	ddl := TradeEventsSchema("sonictrader.trade_events")
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS sonictrader.trade_events")
	assert.Contains(t, ddl, "signatures Array(String)")
	assert.Contains(t, ddl, "ORDER BY (symbol, at)")
}

func TestEventRepositories_RejectNil(t *testing.T) {
	store := NewClickHouseEventStorage(nil, "t")
	assert.Error(t, store.StoreTrade(context.Background(), nil))
	assert.NoError(t, store.Close())

	pub := NewKafkaEventPublisher(nil, "topic")
	assert.Error(t, pub.PublishTrade(context.Background(), nil))
	assert.NoError(t, pub.Close())
}
