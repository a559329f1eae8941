package metrics

import (
	"strconv"

	"SonicTrader/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	updatesTotal     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
	signalConfidence *prometheus.GaugeVec
	tradesTotal      *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on a custom registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		updatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonictrader_price_updates_total",
				Help: "Total number of decoded price updates received from the oracle",
			},
			[]string{"feed_id"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonictrader_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sonictrader_last_price",
				Help: "Last decoded price for a feed",
			},
			[]string{"feed_id"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sonictrader_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		signalConfidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sonictrader_signal_confidence",
				Help: "Confidence of the latest signal per feed and action",
			},
			[]string{"feed_id", "action"},
		),
		tradesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonictrader_trades_total",
				Help: "Total number of trade submissions",
			},
			[]string{"symbol", "action", "success"},
		),
	}
}

// RecordUpdate counts one decoded price update.
func (r *Recorder) RecordUpdate(feedID string) {
	r.updatesTotal.WithLabelValues(feedID).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a feed.
func (r *Recorder) RecordLastPrice(feedID string, price float64) {
	r.lastPrice.WithLabelValues(feedID).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordSignal(feedID string, action string, confidence float64) {
	r.signalConfidence.WithLabelValues(feedID, action).Set(confidence)
}

func (r *Recorder) RecordTrade(symbol string, action string, success bool) {
	r.tradesTotal.WithLabelValues(symbol, action, strconv.FormatBool(success)).Inc()
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordUpdate(string)                  {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLastPrice(string, float64)      {}
func (Nop) RecordLatency(string, float64)        {}
func (Nop) RecordSignal(string, string, float64) {}
func (Nop) RecordTrade(string, string, bool)     {}

var (
	_ repository.Metrics = (*Recorder)(nil)
	_ repository.Metrics = Nop{}
)
