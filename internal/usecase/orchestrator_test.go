package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SonicTrader/internal/domain/models"
	mid "SonicTrader/internal/middleware"
	"SonicTrader/internal/repository"
	"SonicTrader/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPairs = []models.AssetPair{
	{Base: "SOL", Quote: "USD", FeedID: "sol", TradeAmount: 1},
	{Base: "ETH", Quote: "USD", FeedID: "eth", TradeAmount: 1},
	{Base: "BTC", Quote: "USD", FeedID: "btc", TradeAmount: 1},
}

type harness struct {
	orch   *Orchestrator
	feeds  *fakeSubscriber
	store  *repository.PriceHistoryStore
	runner *fakeRunner
}

func newHarness(t *testing.T, settings Settings, eval evaluatorFunc, opts ...OrchestratorOption) *harness {
	t.Helper()
	if settings.Pairs == nil {
		settings.Pairs = testPairs
	}
	if settings.Threshold == 0 {
		settings.Threshold = DefaultThreshold
	}
	if settings.Interval == 0 {
		settings.Interval = 5 * time.Millisecond
	}
	h := &harness{
		feeds:  newFakeSubscriber(),
		store:  repository.NewPriceHistoryStore(100),
		runner: &fakeRunner{fail: map[string]error{}},
	}
	pipe := mid.NewFeedPipeline(h.store, metrics.Nop{})
	h.orch = NewOrchestrator(settings, h.feeds, h.store, pipe, eval, h.runner, metrics.Nop{}, opts...)
	t.Cleanup(func() { _ = h.orch.Stop(context.Background()) })
	return h
}

func TestOrchestrator_StartStopIdempotent(t *testing.T) {
	h := newHarness(t, Settings{}, fixedSignal(models.ActionHold, 0.5))
	ctx := context.Background()

	require.NoError(t, h.orch.Stop(ctx), "stop while idle is a no-op")
	assert.False(t, h.orch.Active())

	require.NoError(t, h.orch.Start(ctx))
	require.NoError(t, h.orch.Start(ctx))
	assert.True(t, h.orch.Active())
	assert.Equal(t, len(testPairs), h.feeds.openCount())
	assert.Equal(t, len(testPairs), h.orch.Status().Subscriptions)

	require.NoError(t, h.orch.Stop(ctx))
	require.NoError(t, h.orch.Stop(ctx))
	assert.False(t, h.orch.Active())
	assert.Equal(t, int32(len(testPairs)), h.feeds.closed.Load(), "every subscription closed")
	assert.Equal(t, 0, h.orch.Status().Subscriptions)
}

func TestOrchestrator_SubscribeFailureClosesOpened(t *testing.T) {
	h := newHarness(t, Settings{}, fixedSignal(models.ActionHold, 0.5))
	h.feeds.failFeed = "btc"

	err := h.orch.Start(context.Background())
	require.Error(t, err)
	assert.False(t, h.orch.Active())
	assert.Equal(t, 2, h.feeds.openCount())
	assert.Equal(t, int32(2), h.feeds.closed.Load())
}

func TestOrchestrator_FeedUpdatesReachStoreAndResetOnStop(t *testing.T) {
	h := newHarness(t, Settings{Interval: time.Hour}, fixedSignal(models.ActionHold, 0.5))
	ctx := context.Background()
	require.NoError(t, h.orch.Start(ctx))

	for i := 1; i <= 3; i++ {
		h.feeds.push(models.PriceUpdate{FeedID: "sol", Price: float64(100 + i), Timestamp: int64(i)})
	}
	require.Eventually(t, func() bool { return h.store.Len("sol") == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, h.orch.Status().History["sol"])

	require.NoError(t, h.orch.Stop(ctx))
	assert.Equal(t, 0, h.store.Len("sol"))
}

func TestOrchestrator_TradesOnlyAboveThreshold(t *testing.T) {
	var conf atomic.Value
	conf.Store(0.7)
	eval := func([]models.PricePoint) *models.Signal {
		return &models.Signal{Action: models.ActionBuy, Confidence: conf.Load().(float64)}
	}
	h := newHarness(t, Settings{Pairs: testPairs[:1]}, eval)
	require.NoError(t, h.orch.Start(context.Background()))

	require.Eventually(t, func() bool { return h.orch.Status().Ticks >= 3 }, time.Second, time.Millisecond)
	assert.Zero(t, h.runner.callCount(), "confidence equal to the threshold does not trade")

	conf.Store(0.71)
	require.Eventually(t, func() bool { return h.runner.callCount() >= 1 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, h.orch.Status().SuccessfulTrades, int64(1))
}

func TestOrchestrator_NoSignalNoTrade(t *testing.T) {
	h := newHarness(t, Settings{}, func([]models.PricePoint) *models.Signal { return nil })
	require.NoError(t, h.orch.Start(context.Background()))
	require.Eventually(t, func() bool { return h.orch.Status().Ticks >= 2 }, time.Second, time.Millisecond)
	assert.Zero(t, h.runner.callCount())
}

func TestOrchestrator_TicksNeverOverlap(t *testing.T) {
	var active, peak, ticks atomic.Int32
	eval := func([]models.PricePoint) *models.Signal {
		n := active.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(15 * time.Millisecond)
		active.Add(-1)
		ticks.Add(1)
		return nil
	}
	// tick work (15ms) is longer than the interval (1ms)
	h := newHarness(t, Settings{Pairs: testPairs[:1], Interval: time.Millisecond}, eval)
	require.NoError(t, h.orch.Start(context.Background()))

	require.Eventually(t, func() bool { return ticks.Load() >= 5 }, 2*time.Second, time.Millisecond)
	require.NoError(t, h.orch.Stop(context.Background()))
	assert.Equal(t, int32(1), peak.Load())
}

func TestOrchestrator_StopMidTick(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	h := newHarness(t, Settings{Interval: time.Millisecond}, fixedSignal(models.ActionBuy, 0.9))
	h.runner.hook = func(pair models.AssetPair) {
		if pair.FeedID == "sol" {
			once.Do(func() { close(entered) })
			<-release
		}
	}
	require.NoError(t, h.orch.Start(context.Background()))
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- h.orch.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight trade finished")
	case <-time.After(20 * time.Millisecond):
	}
	assert.False(t, h.orch.Active())

	close(release)
	require.NoError(t, <-stopped)

	ticks := h.orch.Status().Ticks
	assert.Equal(t, int64(1), ticks)
	assert.Equal(t, 1, h.runner.callsFor("sol"), "in-flight trade completed")
	assert.Zero(t, h.runner.callsFor("eth"), "no pair submitted after stop")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ticks, h.orch.Status().Ticks, "no tick after stop")
	assert.Equal(t, int32(len(testPairs)), h.feeds.closed.Load())
}

func TestOrchestrator_StopBoundedByContext(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once

	h := newHarness(t, Settings{Pairs: testPairs[:1]}, fixedSignal(models.ActionBuy, 0.9))
	h.runner.hook = func(models.AssetPair) {
		once.Do(func() { close(entered) })
		<-release
	}
	require.NoError(t, h.orch.Start(context.Background()))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := h.orch.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	// a restart waits for the previous loop before ticking again
	require.NoError(t, h.orch.Start(context.Background()))
	require.NoError(t, h.orch.Stop(context.Background()))
}

func TestOrchestrator_TradeFailureDoesNotAbortTick(t *testing.T) {
	events := &fakePublisher{}
	recorder := NewEventRecorder(events, nil, metrics.Nop{}, BackendKafka)
	h := newHarness(t, Settings{Interval: time.Hour}, fixedSignal(models.ActionSell, 0.9), WithEventSink(recorder))
	h.runner.fail["sol"] = errors.New("venue rejected")

	require.NoError(t, h.orch.Start(context.Background()))
	require.Eventually(t, func() bool { return h.runner.callCount() == len(testPairs) }, time.Second, time.Millisecond)

	st := h.orch.Status()
	assert.Equal(t, int64(3), st.TotalTrades)
	assert.Equal(t, int64(1), st.FailedTrades)
	assert.Equal(t, int64(2), st.SuccessfulTrades)

	recent := recorder.Recent(0)
	require.Len(t, recent, 3)
	failed := 0
	for _, e := range recent {
		if !e.Success {
			failed++
			assert.Equal(t, "SOL/USD", e.Symbol)
			assert.Contains(t, e.Error, "venue rejected")
		}
	}
	assert.Equal(t, 1, failed)
}

func TestOrchestrator_ConcurrentModeBounded(t *testing.T) {
	h := newHarness(t, Settings{Interval: time.Hour, Mode: ModeConcurrent, MaxConcurrency: 2}, fixedSignal(models.ActionBuy, 0.9))
	h.runner.hook = func(models.AssetPair) { time.Sleep(10 * time.Millisecond) }

	require.NoError(t, h.orch.Start(context.Background()))
	require.Eventually(t, func() bool { return h.runner.callCount() == len(testPairs) }, time.Second, time.Millisecond)
	assert.LessOrEqual(t, h.runner.peak.Load(), int32(2))
}

func TestOrchestrator_SkipsStalePrices(t *testing.T) {
	now := time.Unix(1_700_000_100, 0)
	h := newHarness(t, Settings{Pairs: testPairs[:1], Interval: time.Hour, MaxPriceAge: 30 * time.Second},
		fixedSignal(models.ActionBuy, 0.9))
	h.orch.now = func() time.Time { return now }
	h.store.Append("sol", models.PricePoint{Price: 1, Timestamp: now.Unix() - 60})

	require.NoError(t, h.orch.Start(context.Background()))
	require.Eventually(t, func() bool { return h.orch.Status().Ticks == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, h.runner.callCount())
}

func TestOrchestrator_GuardSuppressesRepeatTrades(t *testing.T) {
	guard := NewTradeGuard(nil, nil, 0, 1)
	h := newHarness(t, Settings{Pairs: testPairs[:1], Interval: time.Millisecond}, fixedSignal(models.ActionBuy, 0.9),
		WithTradeGuard(guard))

	require.NoError(t, h.orch.Start(context.Background()))
	require.Eventually(t, func() bool { return h.orch.Status().Ticks >= 5 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.runner.callCount())
}

func TestOrchestrator_Signals(t *testing.T) {
	h := newHarness(t, Settings{Pairs: testPairs[:2]}, func(pts []models.PricePoint) *models.Signal {
		if len(pts) == 0 {
			return nil
		}
		return &models.Signal{Action: models.ActionHold, Confidence: 0.5}
	})
	h.store.Append("sol", models.PricePoint{Price: 1, Timestamp: 1})

	sigs := h.orch.Signals()
	require.Len(t, sigs, 2)
	assert.NotNil(t, sigs[0].Signal)
	assert.Equal(t, 1, sigs[0].Points)
	assert.Nil(t, sigs[1].Signal)

	p, ok := h.orch.Pair("eth")
	assert.True(t, ok)
	assert.Equal(t, "ETH/USD", p.Symbol())
	_, ok = h.orch.Pair("doge")
	assert.False(t, ok)
}

func TestOrchestrator_EventsDescribeSubmittedRequest(t *testing.T) {
	cases := []struct {
		name    string
		svcErr  error
		success bool
	}{
		{name: "filled", success: true},
		{name: "rejected by venue", svcErr: errors.New("venue down")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pair := models.AssetPair{Base: "SOL", Quote: "USD", FeedID: "sol", TradeAmount: 2.5}
			store := repository.NewPriceHistoryStore(100)
			svc := &fakeTradeService{err: tc.svcErr}
			exec := NewTradeExecutor(svc, metrics.Nop{}, WithPriceHistory(store))
			journal := NewEventRecorder(nil, nil, metrics.Nop{}, BackendNone)
			feeds := newFakeSubscriber()
			eval := func(pts []models.PricePoint) *models.Signal {
				if len(pts) == 0 {
					return nil
				}
				return &models.Signal{Action: models.ActionBuy, Confidence: 0.9}
			}

			orch := NewOrchestrator(Settings{Pairs: []models.AssetPair{pair}, Threshold: 0.7, Interval: time.Millisecond},
				feeds, store, mid.NewFeedPipeline(store, metrics.Nop{}), evaluatorFunc(eval), exec, metrics.Nop{},
				WithEventSink(journal))
			t.Cleanup(func() { _ = orch.Stop(context.Background()) })
			require.NoError(t, orch.Start(context.Background()))

			feeds.push(models.PriceUpdate{FeedID: "sol", Price: 150, Timestamp: 1})
			require.Eventually(t, func() bool { return len(journal.Recent(1)) == 1 }, time.Second, time.Millisecond)
			require.NoError(t, orch.Stop(context.Background()))

			ev := journal.Recent(1)[0]
			svc.mu.Lock()
			defer svc.mu.Unlock()
			require.NotEmpty(t, svc.reqs)
			var submitted *models.TradeRequest
			for i := range svc.reqs {
				if svc.reqs[i].ID == ev.ID {
					submitted = &svc.reqs[i]
				}
			}
			require.NotNil(t, submitted, "event id matches a submitted request")
			assert.Equal(t, 2.5, ev.Amount)
			assert.Equal(t, 150.0, ev.Price)
			assert.Equal(t, submitted.Amount, ev.Amount)
			assert.Equal(t, submitted.Price, ev.Price)
			assert.Equal(t, "SOL/USD", ev.Symbol)
			assert.Equal(t, tc.success, ev.Success)
			if tc.success {
				assert.Equal(t, []string{"sig-1"}, ev.Signatures)
			} else {
				assert.Contains(t, ev.Error, "venue down")
			}
		})
	}
}
