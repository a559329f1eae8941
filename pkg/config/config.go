package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"SonicTrader/internal/domain/models"
	"SonicTrader/pkg/logger"
	"SonicTrader/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ExecutionSequential = "sequential"
	ExecutionConcurrent = "concurrent"

	ExecutorPaper = "paper"
	ExecutorHTTP  = "http"

	EventsNone       = "none"
	EventsKafka      = "kafka"
	EventsClickHouse = "clickhouse"
)

type Config struct {
	Environment string        `yaml:"environment" validate:"required"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"1s"`
	} `yaml:"server"`
	Oracle struct {
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://hermes.pyth.network/ws" validate:"required,url"`
		HTTPURL        string        `yaml:"http_url" default:"https://hermes.pyth.network" validate:"required,url"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		DialTimeout    time.Duration `yaml:"dial_timeout" default:"10s"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"5s"`
		LatestCacheTTL time.Duration `yaml:"latest_cache_ttl" default:"2s"`
		Reconnect      struct {
			Enabled         bool          `yaml:"enabled"`
			InitialInterval time.Duration `yaml:"initial_interval" default:"1s"`
			MaxInterval     time.Duration `yaml:"max_interval" default:"30s"`
		} `yaml:"reconnect"`
	} `yaml:"oracle"`
	Trading struct {
		Pairs               []models.AssetPair `yaml:"pairs" validate:"required,min=1,dive"`
		ShortWindow         int                `yaml:"short_window" default:"5" validate:"gte=1"`
		LongWindow          int                `yaml:"long_window" default:"20" validate:"gtefield=ShortWindow"`
		ConfidenceThreshold float64            `yaml:"confidence_threshold" default:"0.7" validate:"gte=0,lte=1"`
		TickInterval        time.Duration      `yaml:"tick_interval" default:"30s" validate:"gt=0"`
		HistoryCapacity     int                `yaml:"history_capacity" default:"100" validate:"gtefield=LongWindow"`
		QueueSize           int                `yaml:"queue_size" default:"256" validate:"gte=1"`
		MaxUpdateRate       int                `yaml:"max_update_rate" validate:"gte=0"`
		ExecutionMode       string             `yaml:"execution_mode" default:"sequential" validate:"oneof=sequential concurrent"`
		MaxConcurrency      int                `yaml:"max_concurrency" default:"4" validate:"gte=1"`
		MaxPriceAge         time.Duration      `yaml:"max_price_age"`
		Cooldown            time.Duration      `yaml:"cooldown"`
		MaxTradesPerMinute  float64            `yaml:"max_trades_per_minute" validate:"gte=0"`
		MaxPositionSize     float64            `yaml:"max_position_size" validate:"gte=0"`
		DefaultAmount       float64            `yaml:"default_amount" default:"1" validate:"gt=0"`
		ManualStart         bool               `yaml:"manual_start"`
	} `yaml:"trading"`
	Execution struct {
		Mode    string        `yaml:"mode" default:"paper" validate:"oneof=paper http"`
		BaseURL string        `yaml:"base_url" validate:"required_if=Mode http"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"execution"`
	Events struct {
		Backend string `yaml:"backend" default:"none" validate:"oneof=none kafka clickhouse"`
		Table   string `yaml:"table" default:"sonictrader.trade_events"`
	} `yaml:"events"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"sonictrader.trades"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sonictrader"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"sonictrader"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. Defaults are applied before the file is decoded.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is loaded first when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SONIC_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ORACLE_WS_URL"); v != "" {
		c.Oracle.WebSocketURL = v
	}
	if v := os.Getenv("ORACLE_HTTP_URL"); v != "" {
		c.Oracle.HTTPURL = v
	}
	if v := os.Getenv("EXECUTION_MODE"); v != "" {
		c.Execution.Mode = v
	}
	if v := os.Getenv("EXECUTION_URL"); v != "" {
		c.Execution.BaseURL = v
	}
	if v := os.Getenv("EXECUTION_API_KEY"); v != "" {
		c.Execution.APIKey = v
	}
	if v := os.Getenv("EVENTS_BACKEND"); v != "" {
		c.Events.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	c.Cache.Redis.DB = util.ParseIntDefault(os.Getenv("REDIS_DB"), c.Cache.Redis.DB)
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TICK_INTERVAL: %w", err)
		}
		c.Trading.TickInterval = d
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Trading.Pairs))
	for _, p := range c.Trading.Pairs {
		if _, dup := seen[p.FeedID]; dup {
			return fmt.Errorf("trading.pairs: duplicate feed_id %s", p.FeedID)
		}
		seen[p.FeedID] = struct{}{}
	}
	switch c.Events.Backend {
	case EventsKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers required when events.backend is kafka")
		}
	case EventsClickHouse:
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host required when events.backend is clickhouse")
		}
	}
	return nil
}

// FeedIDs returns the configured feed ids in pair order.
func (c *Config) FeedIDs() []string {
	out := make([]string, 0, len(c.Trading.Pairs))
	for _, p := range c.Trading.Pairs {
		out = append(out, p.FeedID)
	}
	return out
}
