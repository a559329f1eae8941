package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel).With(String("component", "orchestrator"))

	l.Error("trade failed", String("pair", "SOL/USDC"), Float64("confidence", 0.82), Error(errors.New("boom")))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trade failed", entry["message"])
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "SOL/USDC", entry["pair"])
	assert.Equal(t, 0.82, entry["confidence"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Info("ignored")
	l.Debug("ignored")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestLoggerFieldConstructors(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	l.Info("tick",
		Int("pairs", 2),
		Int64("updates", 7),
		Duration("interval", 1500*time.Millisecond),
		Strings("feeds", []string{"ef0d", "e62d"}),
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(2), entry["pairs"])
	assert.Equal(t, float64(7), entry["updates"])
	assert.Equal(t, float64(1500), entry["interval"])
	assert.Equal(t, "ef0d, e62d", entry["feeds"])
}
