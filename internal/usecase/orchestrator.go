package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SonicTrader/internal/domain/models"
	drepo "SonicTrader/internal/domain/repository"
	domsvc "SonicTrader/internal/domain/service"
	mid "SonicTrader/internal/middleware"
	"SonicTrader/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"

	DefaultThreshold    = 0.7
	DefaultTickInterval = 30 * time.Second
)

// UpdateSink carries decoded updates from subscriptions into the history store.
type UpdateSink interface {
	Start()
	Stop()
	Push(u models.PriceUpdate) error
}

// Settings are the tunables of a trading session.
type Settings struct {
	Pairs          []models.AssetPair
	Threshold      float64
	Interval       time.Duration
	Mode           string
	MaxConcurrency int
	// MaxPriceAge skips pairs whose newest sample is older than this. Zero disables it.
	MaxPriceAge time.Duration
}

// Orchestrator owns the session lifecycle: it wires every pair's feed into the
// store and runs the evaluate-and-act loop while active.
type Orchestrator struct {
	settings  Settings
	feeds     domsvc.FeedSubscriber
	store     domsvc.HistoryStore
	sink      UpdateSink
	evaluator domsvc.SignalEvaluator
	runner    domsvc.TradeRunner
	guard     *TradeGuard
	events    domsvc.EventSink
	metrics   drepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	lifecycle sync.Mutex
	active    atomic.Bool
	stopCh    chan struct{}
	loopDone  chan struct{}
	subs      []domsvc.Subscription
	subCount  atomic.Int32

	ticks      atomic.Int64
	lastTickNs atomic.Int64
	trades     atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
}

type OrchestratorOption func(*Orchestrator)

func WithTradeGuard(g *TradeGuard) OrchestratorOption {
	return func(o *Orchestrator) { o.guard = g }
}

func WithEventSink(s domsvc.EventSink) OrchestratorOption {
	return func(o *Orchestrator) { o.events = s }
}

func WithOrchestratorLogger(l *logger.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

func NewOrchestrator(
	settings Settings,
	feeds domsvc.FeedSubscriber,
	store domsvc.HistoryStore,
	sink UpdateSink,
	evaluator domsvc.SignalEvaluator,
	runner domsvc.TradeRunner,
	metrics drepo.Metrics,
	opts ...OrchestratorOption,
) *Orchestrator {
	if settings.Interval <= 0 {
		settings.Interval = DefaultTickInterval
	}
	if settings.Mode == "" {
		settings.Mode = ModeSequential
	}
	if settings.MaxConcurrency < 1 {
		settings.MaxConcurrency = 1
	}
	settings.Pairs = append([]models.AssetPair(nil), settings.Pairs...)

	o := &Orchestrator{
		settings:  settings,
		feeds:     feeds,
		store:     store,
		sink:      sink,
		evaluator: evaluator,
		runner:    runner,
		metrics:   metrics,
		log:       logger.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start subscribes every pair and launches the loop. It is a no-op when the
// session is already running. A failed subscription aborts the start and
// closes the ones already opened.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	if o.active.Load() {
		return nil
	}

	// a previous Stop may have returned before its last tick finished
	if o.loopDone != nil {
		select {
		case <-o.loopDone:
		case <-ctx.Done():
			return fmt.Errorf("start: previous tick still running: %w", ctx.Err())
		}
	}

	o.sink.Start()
	subs := make([]domsvc.Subscription, 0, len(o.settings.Pairs))
	for _, pair := range o.settings.Pairs {
		sub, err := o.feeds.Subscribe(ctx, []string{pair.FeedID}, o.onUpdate)
		if err != nil {
			closeAll(subs)
			o.sink.Stop()
			o.store.Reset()
			return fmt.Errorf("start: subscribe %s: %w", pair.Symbol(), err)
		}
		subs = append(subs, sub)
	}
	o.subs = subs
	o.subCount.Store(int32(len(subs)))

	o.stopCh = make(chan struct{})
	o.loopDone = make(chan struct{})
	o.active.Store(true)
	go o.loop(o.stopCh, o.loopDone)

	o.log.Info("trading session started",
		logger.Int("pairs", len(o.settings.Pairs)),
		logger.Duration("interval_ms", o.settings.Interval),
		logger.String("mode", o.settings.Mode),
	)
	return nil
}

// Stop ends the session: no new tick or trade starts, every subscription is
// closed and history is discarded. It waits for an in-flight tick until ctx ends.
// Stopping an idle session is a no-op.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	if !o.active.Load() {
		return nil
	}
	o.active.Store(false)
	close(o.stopCh)

	var errs []error
	for _, sub := range o.subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	o.subs = nil
	o.subCount.Store(0)
	o.sink.Stop()

	select {
	case <-o.loopDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("stop: waiting for tick: %w", ctx.Err()))
	}

	o.store.Reset()
	if o.guard != nil {
		o.guard.Reset()
	}
	o.log.Info("trading session stopped", logger.Int64("ticks", o.ticks.Load()))
	return errors.Join(errs...)
}

// Active reports whether the session is running.
func (o *Orchestrator) Active() bool { return o.active.Load() }

func (o *Orchestrator) onUpdate(u models.PriceUpdate) {
	if err := o.sink.Push(u); err != nil && !errors.Is(err, mid.ErrPipelineStopped) {
		o.log.Debug("price update dropped", logger.String("feed_id", u.FeedID), logger.Error(err))
	}
}

func (o *Orchestrator) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		if !o.active.Load() {
			return
		}
		o.tick()
		if !o.active.Load() {
			return
		}
		delay := time.NewTimer(o.settings.Interval)
		select {
		case <-stop:
			delay.Stop()
			return
		case <-delay.C:
		}
	}
}

// tick is one pass over all pairs. Trades run on a context that Stop does not
// cancel so a submitted trade always gets its outcome.
func (o *Orchestrator) tick() {
	start := o.now()
	o.ticks.Add(1)
	o.lastTickNs.Store(start.UnixNano())
	ctx := context.Background()

	if o.settings.Mode == ModeConcurrent {
		var g errgroup.Group
		g.SetLimit(o.settings.MaxConcurrency)
		for _, pair := range o.settings.Pairs {
			if !o.active.Load() {
				break
			}
			pair := pair
			g.Go(func() error {
				o.evaluatePair(ctx, pair)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, pair := range o.settings.Pairs {
			if !o.active.Load() {
				break
			}
			o.evaluatePair(ctx, pair)
		}
	}
	o.metrics.RecordLatency("tick", time.Since(start).Seconds())
}

func (o *Orchestrator) evaluatePair(ctx context.Context, pair models.AssetPair) {
	points := o.store.Snapshot(pair.FeedID)
	if o.stale(points) {
		o.metrics.RecordError("stale_price")
		o.log.Debug("skipping stale pair", logger.String("pair", pair.Symbol()))
		return
	}

	sig := o.evaluator.Evaluate(points)
	if sig == nil {
		return
	}
	o.metrics.RecordSignal(pair.FeedID, string(sig.Action), sig.Confidence)
	if sig.Action == models.ActionHold || sig.Confidence <= o.settings.Threshold {
		return
	}

	if o.guard != nil {
		ok, reason, err := o.guard.Allow(ctx, pair)
		if err != nil {
			o.log.Warn("trade guard check failed", logger.String("pair", pair.Symbol()), logger.Error(err))
		}
		if !ok {
			o.log.Debug("trade suppressed", logger.String("pair", pair.Symbol()), logger.String("reason", reason))
			return
		}
	}
	if !o.active.Load() {
		return
	}

	res, err := o.runner.Execute(ctx, pair, *sig)
	o.trades.Add(1)
	event := &models.TradeEvent{
		ID:         res.Request.ID,
		Symbol:     pair.Symbol(),
		FeedID:     pair.FeedID,
		Action:     sig.Action,
		Confidence: sig.Confidence,
		Price:      res.Request.Price,
		Amount:     res.Request.Amount,
		Signatures: res.Signatures,
		Success:    err == nil,
		At:         o.now().UTC(),
	}
	// rejected before submission: no request id, price from the evaluated window
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Price == 0 {
		if n := len(points); n > 0 {
			event.Price = points[n-1].Price
		}
	}
	if err != nil {
		o.failed.Add(1)
		event.Error = err.Error()
		o.log.Error("trade execution failed",
			logger.String("pair", pair.Symbol()),
			logger.String("action", string(sig.Action)),
			logger.Float64("confidence", sig.Confidence),
			logger.Error(err),
		)
	} else {
		o.succeeded.Add(1)
		if o.guard != nil {
			if gerr := o.guard.Record(ctx, pair, event.At); gerr != nil {
				o.log.Warn("cooldown not recorded", logger.String("pair", pair.Symbol()), logger.Error(gerr))
			}
		}
	}
	o.metrics.RecordTrade(pair.Symbol(), string(sig.Action), err == nil)

	if o.events != nil {
		if rerr := o.events.RecordTrade(ctx, event); rerr != nil {
			o.log.Warn("trade event not recorded", logger.String("pair", pair.Symbol()), logger.Error(rerr))
		}
	}
}

func (o *Orchestrator) stale(points []models.PricePoint) bool {
	if o.settings.MaxPriceAge <= 0 || len(points) == 0 {
		return false
	}
	newest := time.Unix(points[len(points)-1].Timestamp, 0)
	return o.now().Sub(newest) > o.settings.MaxPriceAge
}

// Status returns a snapshot of the session.
func (o *Orchestrator) Status() models.SessionStatus {
	st := models.SessionStatus{
		Active:           o.active.Load(),
		Pairs:            o.Pairs(),
		Subscriptions:    int(o.subCount.Load()),
		Ticks:            o.ticks.Load(),
		History:          make(map[string]int, len(o.settings.Pairs)),
		TotalTrades:      o.trades.Load(),
		SuccessfulTrades: o.succeeded.Load(),
		FailedTrades:     o.failed.Load(),
	}
	if ns := o.lastTickNs.Load(); ns > 0 {
		t := time.Unix(0, ns).UTC()
		st.LastTickAt = &t
	}
	for _, p := range o.settings.Pairs {
		st.History[p.FeedID] = o.store.Len(p.FeedID)
	}
	return st
}

// Signals evaluates every pair on its current history without trading.
func (o *Orchestrator) Signals() []models.PairSignal {
	now := o.now().UTC()
	out := make([]models.PairSignal, 0, len(o.settings.Pairs))
	for _, p := range o.settings.Pairs {
		points := o.store.Snapshot(p.FeedID)
		out = append(out, models.PairSignal{
			Pair:      p,
			Signal:    o.evaluator.Evaluate(points),
			Points:    len(points),
			Timestamp: now,
		})
	}
	return out
}

// Pairs returns the configured pairs.
func (o *Orchestrator) Pairs() []models.AssetPair {
	return append([]models.AssetPair(nil), o.settings.Pairs...)
}

// Pair looks up a configured pair by feed id.
func (o *Orchestrator) Pair(feedID string) (models.AssetPair, bool) {
	for _, p := range o.settings.Pairs {
		if p.FeedID == feedID {
			return p, true
		}
	}
	return models.AssetPair{}, false
}

func closeAll(subs []domsvc.Subscription) {
	for _, s := range subs {
		_ = s.Close()
	}
}
