package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordUpdate("feed-a")
	r.RecordUpdate("feed-a")
	r.RecordError("decode")
	r.RecordLastPrice("feed-a", 6850)
	r.RecordSignal("feed-a", "BUY", 0.8)
	r.RecordTrade("SOL/USDC", "BUY", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.updatesTotal.WithLabelValues("feed-a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("decode")))
	assert.Equal(t, 6850.0, testutil.ToFloat64(r.lastPrice.WithLabelValues("feed-a")))
	assert.Equal(t, 0.8, testutil.ToFloat64(r.signalConfidence.WithLabelValues("feed-a", "BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tradesTotal.WithLabelValues("SOL/USDC", "BUY", "true")))
}
