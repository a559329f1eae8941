package repository

import (
	"sort"
	"sync"

	"SonicTrader/internal/domain/models"
	domsvc "SonicTrader/internal/domain/service"
)

// DefaultHistoryCapacity is the number of samples kept per feed.
const DefaultHistoryCapacity = 100

// PriceHistoryStore keeps the latest samples per feed in memory.
// Each feed partition has its own lock; the map lock only guards partition creation.
type PriceHistoryStore struct {
	capacity int

	mu     sync.RWMutex
	series map[string]*priceSeries
}

type priceSeries struct {
	mu     sync.RWMutex
	points []models.PricePoint
}

// NewPriceHistoryStore creates a store. A non-positive capacity falls back to DefaultHistoryCapacity.
func NewPriceHistoryStore(capacity int) *PriceHistoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &PriceHistoryStore{
		capacity: capacity,
		series:   make(map[string]*priceSeries),
	}
}

// Capacity returns the per-feed bound.
func (s *PriceHistoryStore) Capacity() int { return s.capacity }

// Append inserts at the tail and evicts from the head once the bound is exceeded.
func (s *PriceHistoryStore) Append(feedID string, p models.PricePoint) {
	ps := s.partition(feedID)
	ps.mu.Lock()
	ps.points = append(ps.points, p)
	if over := len(ps.points) - s.capacity; over > 0 {
		n := copy(ps.points, ps.points[over:])
		clear(ps.points[n:])
		ps.points = ps.points[:n]
	}
	ps.mu.Unlock()
}

// Snapshot returns a copy of the current window, oldest first.
func (s *PriceHistoryStore) Snapshot(feedID string) []models.PricePoint {
	s.mu.RLock()
	ps, ok := s.series[feedID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]models.PricePoint, len(ps.points))
	copy(out, ps.points)
	return out
}

// Len returns the number of samples held for a feed.
func (s *PriceHistoryStore) Len(feedID string) int {
	s.mu.RLock()
	ps, ok := s.series[feedID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.points)
}

// Feeds lists feeds with at least one sample, sorted.
func (s *PriceHistoryStore) Feeds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for id := range s.series {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset discards all history.
func (s *PriceHistoryStore) Reset() {
	s.mu.Lock()
	s.series = make(map[string]*priceSeries)
	s.mu.Unlock()
}

func (s *PriceHistoryStore) partition(feedID string) *priceSeries {
	s.mu.RLock()
	ps, ok := s.series[feedID]
	s.mu.RUnlock()
	if ok {
		return ps
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ps, ok = s.series[feedID]; ok {
		return ps
	}
	ps = &priceSeries{points: make([]models.PricePoint, 0, s.capacity+1)}
	s.series[feedID] = ps
	return ps
}

var _ domsvc.HistoryStore = (*PriceHistoryStore)(nil)
