package repository

import (
	"fmt"
	"sync"
	"testing"

	"SonicTrader/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceHistoryStore_EvictsOldest(t *testing.T) {
	s := NewPriceHistoryStore(0)
	require.Equal(t, DefaultHistoryCapacity, s.Capacity())

	for i := 1; i <= 150; i++ {
		s.Append("sol", models.PricePoint{Price: float64(i), Timestamp: int64(i)})
	}

	got := s.Snapshot("sol")
	require.Len(t, got, 100)
	for i, p := range got {
		assert.Equal(t, float64(51+i), p.Price)
	}
	assert.Equal(t, 100, s.Len("sol"))
}

func TestPriceHistoryStore_SnapshotIsCopy(t *testing.T) {
	s := NewPriceHistoryStore(3)
	s.Append("eth", models.PricePoint{Price: 1, Timestamp: 1})

	snap := s.Snapshot("eth")
	snap[0].Price = 99
	assert.Equal(t, 1.0, s.Snapshot("eth")[0].Price)

	assert.Nil(t, s.Snapshot("unknown"))
	assert.Zero(t, s.Len("unknown"))
}

func TestPriceHistoryStore_KeepsDuplicatesAndReset(t *testing.T) {
	s := NewPriceHistoryStore(5)
	p := models.PricePoint{Price: 10, Timestamp: 7}
	s.Append("b", p)
	s.Append("b", p)
	s.Append("a", p)

	assert.Equal(t, 2, s.Len("b"))
	assert.Equal(t, []string{"a", "b"}, s.Feeds())

	s.Reset()
	assert.Empty(t, s.Feeds())
	assert.Zero(t, s.Len("b"))
}

func TestPriceHistoryStore_ConcurrentFeeds(t *testing.T) {
	s := NewPriceHistoryStore(50)
	var wg sync.WaitGroup
	for f := 0; f < 4; f++ {
		feed := fmt.Sprintf("feed-%d", f)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Append(feed, models.PricePoint{Price: float64(i), Timestamp: int64(i)})
				_ = s.Snapshot(feed)
			}
		}()
	}
	wg.Wait()

	for f := 0; f < 4; f++ {
		got := s.Snapshot(fmt.Sprintf("feed-%d", f))
		require.Len(t, got, 50)
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1].Timestamp, got[i].Timestamp)
		}
	}
}
