package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"SonicTrader/internal/domain/models"
	drepo "SonicTrader/internal/domain/repository"
	domsvc "SonicTrader/internal/domain/service"
)

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	trades map[bool]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[string]int), trades: make(map[bool]int)}
}

func (m *countingMetrics) RecordUpdate(string)                  {}
func (m *countingMetrics) RecordLastPrice(string, float64)      {}
func (m *countingMetrics) RecordLatency(string, float64)        {}
func (m *countingMetrics) RecordSignal(string, string, float64) {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordTrade(_ string, _ string, ok bool) {
	m.mu.Lock()
	m.trades[ok]++
	m.mu.Unlock()
}
func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// fakeStream is an OracleStream driven by the test.
type fakeStream struct {
	frames chan []byte
	errs   chan error
	closes atomic.Int32
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan []byte, 16), errs: make(chan error, 1)}
}

func (s *fakeStream) Frames() <-chan []byte { return s.frames }
func (s *fakeStream) Errors() <-chan error  { return s.errs }
func (s *fakeStream) Close() error {
	s.closes.Add(1)
	return nil
}

// fakeOracle hands out queued streams, or fails when none is queued.
type fakeOracle struct {
	mu      sync.Mutex
	streams []*fakeStream
	opens   int
	latest  []byte
	pulls   int
}

func (o *fakeOracle) queue(s ...*fakeStream) {
	o.mu.Lock()
	o.streams = append(o.streams, s...)
	o.mu.Unlock()
}

func (o *fakeOracle) Stream(ctx context.Context, _ []string) (drepo.OracleStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if len(o.streams) == 0 {
		return nil, errors.New("dial refused")
	}
	s := o.streams[0]
	o.streams = o.streams[1:]
	return s, nil
}

func (o *fakeOracle) Latest(context.Context, []string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pulls++
	return o.latest, nil
}

func (o *fakeOracle) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// fakeSubscriber counts opened and closed subscriptions and keeps each callback.
type fakeSubscriber struct {
	mu        sync.Mutex
	failFeed  string
	opened    int
	callbacks map[string]func(models.PriceUpdate)
	closed    atomic.Int32
}

type fakeSub struct {
	once   sync.Once
	parent *fakeSubscriber
}

func (s *fakeSub) Close() error {
	s.once.Do(func() { s.parent.closed.Add(1) })
	return nil
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{callbacks: make(map[string]func(models.PriceUpdate))}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, feedIDs []string, onUpdate func(models.PriceUpdate)) (domsvc.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if feedIDs[0] == f.failFeed {
		return nil, errors.New("subscribe refused")
	}
	f.opened++
	f.callbacks[feedIDs[0]] = onUpdate
	return &fakeSub{parent: f}, nil
}

func (f *fakeSubscriber) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *fakeSubscriber) push(u models.PriceUpdate) {
	f.mu.Lock()
	cb := f.callbacks[u.FeedID]
	f.mu.Unlock()
	cb(u)
}

type evaluatorFunc func([]models.PricePoint) *models.Signal

func (f evaluatorFunc) Evaluate(h []models.PricePoint) *models.Signal { return f(h) }

func fixedSignal(a models.Action, conf float64) evaluatorFunc {
	return func([]models.PricePoint) *models.Signal {
		return &models.Signal{Action: a, Confidence: conf}
	}
}

// fakeRunner records executions and can block or fail them.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	hook     func(pair models.AssetPair)
	inflight atomic.Int32
	peak     atomic.Int32
}

func (r *fakeRunner) Execute(ctx context.Context, pair models.AssetPair, _ models.Signal) (models.TradeResult, error) {
	n := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if r.hook != nil {
		r.hook(pair)
	}
	r.mu.Lock()
	r.calls = append(r.calls, pair.FeedID)
	err := r.fail[pair.FeedID]
	r.mu.Unlock()
	req := models.TradeRequest{ID: "req-" + pair.FeedID, FeedID: pair.FeedID, Amount: pair.TradeAmount}
	if err != nil {
		return models.TradeResult{Request: req}, err
	}
	return models.TradeResult{Request: req, Signatures: []string{"sig-" + pair.FeedID}}, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRunner) callsFor(feedID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == feedID {
			n++
		}
	}
	return n
}

type fakeTradeService struct {
	mu   sync.Mutex
	reqs []models.TradeRequest
	err  error
}

func (s *fakeTradeService) Submit(_ context.Context, req models.TradeRequest) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return []string{"sig-1"}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.TradeEvent
	err    error
	closed bool
}

func (p *fakePublisher) PublishTrade(_ context.Context, e *models.TradeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type fakeStorage struct {
	fakePublisher
}

func (s *fakeStorage) StoreTrade(ctx context.Context, e *models.TradeEvent) error {
	return s.PublishTrade(ctx, e)
}

func (s *fakeStorage) Health(context.Context) error { return nil }
