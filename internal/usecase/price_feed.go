package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"SonicTrader/internal/domain/models"
	drepo "SonicTrader/internal/domain/repository"
	domsvc "SonicTrader/internal/domain/service"
	"SonicTrader/internal/service/cache"
	"SonicTrader/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

// ReconnectPolicy controls what a subscription does when its stream fails.
// Disabled keeps the degraded stream until the subscription is closed.
type ReconnectPolicy struct {
	Enabled         bool
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// PriceFeedClient turns raw oracle frames into decoded price updates.
type PriceFeedClient struct {
	oracle    drepo.PriceOracle
	decoder   drepo.FrameDecoder
	metrics   drepo.Metrics
	log       *logger.Logger
	reconnect ReconnectPolicy

	latest    cache.BytesCache
	latestTTL time.Duration
}

type FeedOption func(*PriceFeedClient)

func WithReconnect(p ReconnectPolicy) FeedOption {
	return func(c *PriceFeedClient) { c.reconnect = p }
}

// WithLatestCache caches pull responses for ttl.
func WithLatestCache(bc cache.BytesCache, ttl time.Duration) FeedOption {
	return func(c *PriceFeedClient) {
		c.latest = bc
		c.latestTTL = ttl
	}
}

func WithFeedLogger(l *logger.Logger) FeedOption {
	return func(c *PriceFeedClient) { c.log = l }
}

func NewPriceFeedClient(oracle drepo.PriceOracle, decoder drepo.FrameDecoder, metrics drepo.Metrics, opts ...FeedOption) *PriceFeedClient {
	c := &PriceFeedClient{
		oracle:  oracle,
		decoder: decoder,
		metrics: metrics,
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscription is one open stream with its delivery goroutine.
type Subscription struct {
	feedIDs []string
	ids     map[string]string // canonical -> as requested

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stream   drepo.OracleStream
	once     sync.Once
	closeErr error
	finished chan struct{}
}

// FeedIDs returns the ids this subscription was opened for.
func (s *Subscription) FeedIDs() []string {
	return append([]string(nil), s.feedIDs...)
}

// Close closes the stream and waits for the delivery goroutine to exit.
// No callback runs after Close returns. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.stream != nil {
			s.closeErr = s.stream.Close()
		}
		s.mu.Unlock()
		<-s.finished
	})
	return s.closeErr
}

func (s *Subscription) closed() bool {
	return s.ctx.Err() != nil
}

// swap installs a replacement stream unless the subscription was closed meanwhile.
func (s *Subscription) swap(next drepo.OracleStream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed() {
		_ = next.Close()
		return false
	}
	s.stream = next
	return true
}

func (s *Subscription) current() drepo.OracleStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Subscribe opens one stream for feedIDs and calls onUpdate for every decoded
// update in arrival order. The stream outlives ctx; it ends on Close.
func (c *PriceFeedClient) Subscribe(ctx context.Context, feedIDs []string, onUpdate func(models.PriceUpdate)) (domsvc.Subscription, error) {
	if len(feedIDs) == 0 {
		return nil, fmt.Errorf("subscribe: no feed ids")
	}
	stream, err := c.oracle.Stream(ctx, feedIDs)
	if err != nil {
		c.metrics.RecordError("subscribe")
		return nil, fmt.Errorf("subscribe %s: %w", strings.Join(feedIDs, ","), err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &Subscription{
		feedIDs:  append([]string(nil), feedIDs...),
		ids:      canonicalIndex(feedIDs),
		ctx:      subCtx,
		cancel:   cancel,
		stream:   stream,
		finished: make(chan struct{}),
	}
	go c.run(sub, onUpdate)
	return sub, nil
}

// Close closes a subscription returned by Subscribe.
func (c *PriceFeedClient) Close(sub domsvc.Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Close()
}

func (c *PriceFeedClient) run(sub *Subscription, onUpdate func(models.PriceUpdate)) {
	defer close(sub.finished)
	for {
		stream := sub.current()
		err := c.consume(sub, stream, onUpdate)
		if sub.closed() {
			return
		}
		if !c.reconnect.Enabled {
			if err == nil {
				c.log.Warn("oracle stream ended", logger.Strings("feed_ids", sub.feedIDs))
			}
			<-sub.ctx.Done()
			return
		}

		_ = stream.Close()
		next, err := c.redial(sub)
		if err != nil {
			return
		}
		if !sub.swap(next) {
			return
		}
		c.log.Info("oracle stream reconnected", logger.Strings("feed_ids", sub.feedIDs))
	}
}

// consume delivers frames until the subscription closes, the stream ends,
// or (with reconnect enabled) the stream reports a transport error.
func (c *PriceFeedClient) consume(sub *Subscription, s drepo.OracleStream, onUpdate func(models.PriceUpdate)) error {
	frames, errs := s.Frames(), s.Errors()
	for frames != nil || errs != nil {
		select {
		case <-sub.ctx.Done():
			return ErrSubscriptionClosed
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			c.deliver(sub, f, onUpdate)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil || sub.closed() {
				continue
			}
			c.metrics.RecordError("transport")
			c.log.Error("oracle stream error", logger.Error(err), logger.Strings("feed_ids", sub.feedIDs))
			if c.reconnect.Enabled {
				return err
			}
		}
	}
	return nil
}

func (c *PriceFeedClient) deliver(sub *Subscription, frame []byte, onUpdate func(models.PriceUpdate)) {
	raws, err := c.decoder.Decode(frame)
	if err != nil {
		c.metrics.RecordError("decode")
		c.log.Debug("dropping undecodable frame", logger.Error(err))
		return
	}
	for _, raw := range raws {
		id, ok := sub.ids[canonicalFeedID(raw.FeedID)]
		if !ok {
			c.metrics.RecordError("unknown_feed")
			continue
		}
		u := raw.Decode()
		u.FeedID = id
		onUpdate(u)
	}
}

func (c *PriceFeedClient) redial(sub *Subscription) (drepo.OracleStream, error) {
	b := backoff.NewExponentialBackOff()
	if c.reconnect.InitialInterval > 0 {
		b.InitialInterval = c.reconnect.InitialInterval
	}
	if c.reconnect.MaxInterval > 0 {
		b.MaxInterval = c.reconnect.MaxInterval
	}
	b.MaxElapsedTime = 0

	var next drepo.OracleStream
	op := func() error {
		s, err := c.oracle.Stream(sub.ctx, sub.feedIDs)
		if err != nil {
			c.metrics.RecordError("reconnect")
			c.log.Warn("oracle reconnect failed", logger.Error(err), logger.Strings("feed_ids", sub.feedIDs))
			return err
		}
		next = s
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, sub.ctx)); err != nil {
		return nil, err
	}
	return next, nil
}

// Latest pulls the current price of each feed. Responses are cached when a cache is configured.
func (c *PriceFeedClient) Latest(ctx context.Context, feedIDs []string) ([]models.PriceUpdate, error) {
	if len(feedIDs) == 0 {
		return nil, fmt.Errorf("latest: no feed ids")
	}
	start := time.Now()
	body, err := c.latestBody(ctx, feedIDs)
	if err != nil {
		c.metrics.RecordError("latest")
		return nil, err
	}
	raws, err := c.decoder.Decode(body)
	if err != nil {
		c.metrics.RecordError("decode")
		return nil, fmt.Errorf("latest: %w", err)
	}

	ids := canonicalIndex(feedIDs)
	out := make([]models.PriceUpdate, 0, len(raws))
	for _, raw := range raws {
		id, ok := ids[canonicalFeedID(raw.FeedID)]
		if !ok {
			continue
		}
		u := raw.Decode()
		u.FeedID = id
		out = append(out, u)
	}
	c.metrics.RecordLatency("latest", time.Since(start).Seconds())
	return out, nil
}

func (c *PriceFeedClient) latestBody(ctx context.Context, feedIDs []string) ([]byte, error) {
	if c.latest == nil || c.latestTTL <= 0 {
		return c.pull(ctx, feedIDs)
	}
	key := latestKey(feedIDs)
	if b, ok, err := c.latest.GetBytes(ctx, key); err == nil && ok {
		return b, nil
	} else if err != nil {
		c.log.Warn("latest cache read failed", logger.Error(err))
	}
	b, err := c.pull(ctx, feedIDs)
	if err != nil {
		return nil, err
	}
	if err := c.latest.SetBytes(ctx, key, b, c.latestTTL); err != nil {
		c.log.Warn("latest cache write failed", logger.Error(err))
	}
	return b, nil
}

func (c *PriceFeedClient) pull(ctx context.Context, feedIDs []string) ([]byte, error) {
	b, err := c.oracle.Latest(ctx, feedIDs)
	if err != nil {
		return nil, fmt.Errorf("latest %s: %w", strings.Join(feedIDs, ","), err)
	}
	return b, nil
}

func latestKey(feedIDs []string) string {
	ids := make([]string, len(feedIDs))
	for i, id := range feedIDs {
		ids[i] = canonicalFeedID(id)
	}
	sort.Strings(ids)
	return "latest:" + strings.Join(ids, ",")
}

// canonicalFeedID folds case and the optional 0x prefix; the oracle echoes ids without it.
func canonicalFeedID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.TrimPrefix(id, "0x")
}

func canonicalIndex(feedIDs []string) map[string]string {
	m := make(map[string]string, len(feedIDs))
	for _, id := range feedIDs {
		m[canonicalFeedID(id)] = id
	}
	return m
}

var _ domsvc.FeedSubscriber = (*PriceFeedClient)(nil)
