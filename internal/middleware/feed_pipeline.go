package middleware

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"SonicTrader/internal/domain/models"
	domrepo "SonicTrader/internal/domain/repository"
)

var (
	ErrPipelineStopped = errors.New("feed pipeline stopped")
	ErrQueueFull       = errors.New("feed queue full")
)

// Sink receives accepted samples. The price history store is the production sink.
type Sink interface {
	Append(feedID string, p models.PricePoint)
}

// FeedPipeline sits between the oracle transport and the history store.
// Each feed gets a bounded queue drained by a single writer goroutine, so
// samples of one feed are appended in arrival order.
type FeedPipeline struct {
	sink      Sink
	metrics   domrepo.Metrics
	queueSize int
	minGap    time.Duration

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	queues   map[string]chan models.PriceUpdate
	lastSeen map[string]time.Time
	wg       sync.WaitGroup
}

type PipelineOption func(*FeedPipeline)

// WithQueueSize sets the per-feed queue bound.
func WithQueueSize(n int) PipelineOption {
	return func(p *FeedPipeline) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithMaxRate drops samples of a feed arriving faster than n per second. Zero disables it.
func WithMaxRate(n int) PipelineOption {
	return func(p *FeedPipeline) {
		if n > 0 {
			p.minGap = time.Second / time.Duration(n)
		}
	}
}

func NewFeedPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *FeedPipeline {
	p := &FeedPipeline{
		sink:      sink,
		metrics:   metrics,
		queueSize: 256,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start makes the pipeline accept updates. Calling it on a running pipeline is a no-op.
func (p *FeedPipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.queues = make(map[string]chan models.PriceUpdate)
	p.lastSeen = make(map[string]time.Time)
}

// Stop rejects further updates and waits for every writer to exit.
// Queued samples that were not yet written are discarded.
func (p *FeedPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()
	p.wg.Wait()
}

// Push validates and enqueues an update without blocking.
func (p *FeedPipeline) Push(u models.PriceUpdate) error {
	if err := validateUpdate(u); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return ErrPipelineStopped
	}
	if !p.allow(u.FeedID, time.Now()) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	q := p.queueFor(u.FeedID)
	select {
	case q <- u:
		return nil
	default:
		p.metrics.RecordError("pipeline_queue_full")
		return fmt.Errorf("%w: %s", ErrQueueFull, u.FeedID)
	}
}

// queueFor must be called with p.mu held.
func (p *FeedPipeline) queueFor(feedID string) chan models.PriceUpdate {
	if q, ok := p.queues[feedID]; ok {
		return q
	}
	q := make(chan models.PriceUpdate, p.queueSize)
	p.queues[feedID] = q
	p.wg.Add(1)
	go p.writer(q, p.stopCh)
	return q
}

func (p *FeedPipeline) writer(q <-chan models.PriceUpdate, stop <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-stop:
			return
		case u := <-q:
			select {
			case <-stop:
				return
			default:
			}
			p.sink.Append(u.FeedID, u.Point())
			p.metrics.RecordUpdate(u.FeedID)
			p.metrics.RecordLastPrice(u.FeedID, u.Price)
		}
	}
}

func (p *FeedPipeline) allow(feedID string, now time.Time) bool {
	if p.minGap <= 0 {
		return true
	}
	if last, ok := p.lastSeen[feedID]; ok && now.Sub(last) < p.minGap {
		return false
	}
	p.lastSeen[feedID] = now
	return true
}

func validateUpdate(u models.PriceUpdate) error {
	switch {
	case u.FeedID == "":
		return fmt.Errorf("feed id empty")
	case u.Timestamp <= 0:
		return fmt.Errorf("feed %s: timestamp invalid", u.FeedID)
	case math.IsNaN(u.Price) || math.IsInf(u.Price, 0):
		return fmt.Errorf("feed %s: price invalid", u.FeedID)
	}
	return nil
}
