package kafka

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(b))

	b, err = encodeValue(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	cases := map[string]kafka.Compression{
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
		"bogus":  kafka.Gzip,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseCompression(in), in)
	}
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithHashByKey(true), WithCompression("lz4"))
	require.NoError(t, err)
	_, isHash := p.writer.Balancer.(*kafka.Hash)
	assert.True(t, isHash)
	assert.Equal(t, "lz4", p.comp)
	assert.NoError(t, p.Close())
}

func TestProducerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newProducerMetrics(reg)
	m.observe("trades", "gzip", 42, time.Millisecond, nil)
	m.observe("trades", "gzip", 0, time.Millisecond, assert.AnError)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("trades", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("trades", "error")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.bytes.WithLabelValues("trades", "gzip")))

	var nilMetrics *producerMetrics
	assert.NotPanics(t, func() { nilMetrics.observe("t", "gzip", 1, 0, nil) })
}
