package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SonicTrader/internal/domain/models"
	drepo "SonicTrader/internal/domain/repository"
	domsvc "SonicTrader/internal/domain/service"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"

	defaultJournalSize = 50
)

// EventRecorder routes trade events to the configured backend and keeps the
// most recent ones in memory for the API.
type EventRecorder struct {
	pub     drepo.EventPublisher
	store   drepo.EventStorage
	metrics drepo.Metrics
	backend string

	mu      sync.RWMutex
	recent  []models.TradeEvent
	journal int
}

// NewEventRecorder creates a recorder. pub and store may be nil unless their backend is selected.
func NewEventRecorder(pub drepo.EventPublisher, store drepo.EventStorage, metrics drepo.Metrics, backend string) *EventRecorder {
	if backend == "" {
		backend = BackendNone
	}
	return &EventRecorder{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		journal: defaultJournalSize,
	}
}

// RecordTrade journals e in memory and forwards it to the backend.
func (r *EventRecorder) RecordTrade(ctx context.Context, e *models.TradeEvent) error {
	if e == nil {
		return fmt.Errorf("trade event is nil")
	}
	r.remember(*e)

	start := time.Now()
	var err error
	switch r.backend {
	case BackendNone:
		return nil
	case BackendKafka:
		if r.pub == nil {
			err = fmt.Errorf("kafka publisher not configured")
		} else {
			err = r.pub.PublishTrade(ctx, e)
		}
	case BackendClickHouse:
		if r.store == nil {
			err = fmt.Errorf("clickhouse storage not configured")
		} else {
			err = r.store.StoreTrade(ctx, e)
		}
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("record_event")
		return fmt.Errorf("record trade event: %w", err)
	}
	r.metrics.RecordLatency("record_event", time.Since(start).Seconds())
	return nil
}

func (r *EventRecorder) remember(e models.TradeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append(r.recent, e)
	if over := len(r.recent) - r.journal; over > 0 {
		r.recent = append(r.recent[:0], r.recent[over:]...)
	}
}

// Recent returns up to limit events, newest first.
func (r *EventRecorder) Recent(limit int) []models.TradeEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.recent) {
		limit = len(r.recent)
	}
	out := make([]models.TradeEvent, 0, limit)
	for i := len(r.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.recent[i])
	}
	return out
}

// Backend reports where events are sent.
func (r *EventRecorder) Backend() string { return r.backend }

// Close closes underlying resources if available.
func (r *EventRecorder) Close() error {
	var firstErr error
	if r.pub != nil {
		if err := r.pub.Close(); err != nil {
			firstErr = err
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ domsvc.EventSink = (*EventRecorder)(nil)
