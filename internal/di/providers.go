package di

import (
	"context"
	"fmt"
	"time"

	"SonicTrader/internal/domain/repository"
	domsvc "SonicTrader/internal/domain/service"
	"SonicTrader/internal/handler/api"
	mid "SonicTrader/internal/middleware"
	internalrepo "SonicTrader/internal/repository"
	"SonicTrader/internal/service/cache"
	"SonicTrader/internal/service/execution"
	"SonicTrader/internal/service/pyth"
	"SonicTrader/internal/service/ratelimit"
	"SonicTrader/internal/services/signals"
	"SonicTrader/internal/usecase"
	pkgch "SonicTrader/pkg/clickhouse"
	"SonicTrader/pkg/config"
	xhttp "SonicTrader/pkg/http"
	pkgkafka "SonicTrader/pkg/kafka"
	"SonicTrader/pkg/logger"
	"SonicTrader/pkg/metrics"
	"SonicTrader/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegisterer(reg)
}

func ProvidePythClient(cfg *config.Config, l *logger.Logger) *pyth.Client {
	return pyth.New(cfg.Oracle.WebSocketURL, cfg.Oracle.HTTPURL,
		pyth.WithPingInterval(cfg.Oracle.PingInterval),
		pyth.WithDialTimeout(cfg.Oracle.DialTimeout),
		pyth.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Oracle.RequestTimeout))),
		pyth.WithLogger(l.With(logger.String("component", "pyth"))),
	)
}

func ProvideCodec() repository.FrameDecoder {
	return pyth.NewCodec()
}

// ProvideCache returns Redis when enabled, otherwise an in-process TTL cache.
func ProvideCache(cfg *config.Config, l *logger.Logger) (cache.BytesCache, func(), error) {
	rc := cfg.Cache.Redis
	if !rc.Enabled {
		return cache.NewTTLCache(), func() {}, nil
	}

	c := cache.NewRedisCache(cache.RedisConfig{Addr: rc.Addr, Password: rc.Password, DB: rc.DB, Prefix: rc.Prefix})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", rc.Addr, err)
	}
	l.Info("redis cache connected", logger.String("addr", rc.Addr))
	return c, func() {
		if err := c.Close(); err != nil {
			l.Warn("redis close error", logger.Error(err))
		}
	}, nil
}

func ProvidePriceFeed(cfg *config.Config, oracle repository.PriceOracle, decoder repository.FrameDecoder, m repository.Metrics, bc cache.BytesCache, l *logger.Logger) *usecase.PriceFeedClient {
	return usecase.NewPriceFeedClient(oracle, decoder, m,
		usecase.WithReconnect(usecase.ReconnectPolicy{
			Enabled:         cfg.Oracle.Reconnect.Enabled,
			InitialInterval: cfg.Oracle.Reconnect.InitialInterval,
			MaxInterval:     cfg.Oracle.Reconnect.MaxInterval,
		}),
		usecase.WithLatestCache(bc, cfg.Oracle.LatestCacheTTL),
		usecase.WithFeedLogger(l.With(logger.String("component", "price_feed"))),
	)
}

func ProvideHistoryStore(cfg *config.Config) *internalrepo.PriceHistoryStore {
	return internalrepo.NewPriceHistoryStore(cfg.Trading.HistoryCapacity)
}

func ProvideFeedPipeline(cfg *config.Config, store *internalrepo.PriceHistoryStore, m repository.Metrics) *mid.FeedPipeline {
	return mid.NewFeedPipeline(store, m,
		mid.WithQueueSize(cfg.Trading.QueueSize),
		mid.WithMaxRate(cfg.Trading.MaxUpdateRate),
	)
}

func ProvideEvaluator(cfg *config.Config) *signals.Crossover {
	return signals.NewCrossover(cfg.Trading.ShortWindow, cfg.Trading.LongWindow)
}

// ProvideTradeService selects paper fills or the remote execution service.
func ProvideTradeService(cfg *config.Config, l *logger.Logger) repository.TradeService {
	if cfg.Execution.Mode == config.ExecutorHTTP {
		opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Execution.Timeout)}
		if cfg.Execution.APIKey != "" {
			opts = append(opts, xhttp.WithHeader("X-API-Key", cfg.Execution.APIKey))
		}
		return execution.NewHTTPService(cfg.Execution.BaseURL, xhttp.NewClient(opts...))
	}
	return execution.NewPaperService(l.With(logger.String("component", "paper")))
}

func ProvideTradeExecutor(cfg *config.Config, svc repository.TradeService, m repository.Metrics, store *internalrepo.PriceHistoryStore, l *logger.Logger) *usecase.TradeExecutor {
	return usecase.NewTradeExecutor(svc, m,
		usecase.WithDefaultAmount(cfg.Trading.DefaultAmount),
		usecase.WithMaxPosition(cfg.Trading.MaxPositionSize),
		usecase.WithPriceHistory(store),
		usecase.WithExecutorLogger(l.With(logger.String("component", "executor"))),
	)
}

func ProvideTradeGuard(cfg *config.Config, bc cache.BytesCache) *usecase.TradeGuard {
	return usecase.NewTradeGuard(bc, ratelimit.New(), cfg.Trading.Cooldown, cfg.Trading.MaxTradesPerMinute)
}

// ProvideEventRecorder opens the configured trade event backend.
func ProvideEventRecorder(cfg *config.Config, m repository.Metrics, reg *prometheus.Registry, l *logger.Logger) (*usecase.EventRecorder, func(), error) {
	var (
		pub     repository.EventPublisher
		store   repository.EventStorage
		release = func() {}
	)

	switch cfg.Events.Backend {
	case config.EventsKafka:
		producer, err := ProvideKafkaProducer(cfg, reg)
		if err != nil {
			return nil, nil, err
		}
		pub = internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
	case config.EventsClickHouse:
		client, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		store = internalrepo.NewClickHouseEventStorage(client.DB(), cfg.Events.Table)
		release = func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", logger.Error(err))
			}
		}
	}

	rec := usecase.NewEventRecorder(pub, store, m, cfg.Events.Backend)
	l.Info("trade events backend ready", logger.String("backend", rec.Backend()))
	return rec, func() {
		if err := rec.Close(); err != nil {
			l.Warn("event recorder close error", logger.Error(err))
		}
		release()
	}, nil
}

// ProvideClickHouseClient connects and creates the trade events table.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
		internalrepo.TradeEventsSchema(cfg.Events.Table),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideOrchestrator assembles the trading session.
func ProvideOrchestrator(
	cfg *config.Config,
	feeds *usecase.PriceFeedClient,
	store *internalrepo.PriceHistoryStore,
	pipeline *mid.FeedPipeline,
	evaluator *signals.Crossover,
	executor *usecase.TradeExecutor,
	guard *usecase.TradeGuard,
	recorder *usecase.EventRecorder,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(usecase.Settings{
		Pairs:          cfg.Trading.Pairs,
		Threshold:      cfg.Trading.ConfidenceThreshold,
		Interval:       cfg.Trading.TickInterval,
		Mode:           cfg.Trading.ExecutionMode,
		MaxConcurrency: cfg.Trading.MaxConcurrency,
		MaxPriceAge:    cfg.Trading.MaxPriceAge,
	}, feeds, store, pipeline, evaluator, executor, m,
		usecase.WithTradeGuard(guard),
		usecase.WithEventSink(recorder),
		usecase.WithOrchestratorLogger(l.With(logger.String("component", "orchestrator"))),
	)
}

func ProvideHandler(l *logger.Logger, session *usecase.Orchestrator, feeds *usecase.PriceFeedClient, store *internalrepo.PriceHistoryStore, recorder *usecase.EventRecorder) xhttp.Handler {
	return api.NewTradingEchoHandler(l, session, feeds, store, recorder)
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, reg *prometheus.Registry, l *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithRegistry(reg),
		xhttp.WithLogger(l.With(logger.String("component", "http"))),
	)
}

func ProvideApp(cfg *config.Config, l *logger.Logger, session *usecase.Orchestrator, srv *xhttp.Server) *server.App {
	return server.New(cfg, l, session, srv)
}

var (
	_ domsvc.FeedSubscriber  = (*usecase.PriceFeedClient)(nil)
	_ domsvc.HistoryStore    = (*internalrepo.PriceHistoryStore)(nil)
	_ domsvc.SignalEvaluator = (*signals.Crossover)(nil)
	_ domsvc.TradeRunner     = (*usecase.TradeExecutor)(nil)
)
