package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SonicTrader/internal/domain/models"
	xhttp "SonicTrader/pkg/http"
	xlogger "SonicTrader/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	active   bool
	startErr error
	starts   int
	stops    int
}

func (s *fakeSession) Start(context.Context) error {
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.active = true
	return nil
}

func (s *fakeSession) Stop(context.Context) error {
	s.stops++
	s.active = false
	return nil
}

func (s *fakeSession) Active() bool { return s.active }

func (s *fakeSession) Status() models.SessionStatus {
	return models.SessionStatus{Active: s.active, History: map[string]int{"sol": 3}}
}

func (s *fakeSession) Signals() []models.PairSignal {
	return []models.PairSignal{{Pair: models.AssetPair{Base: "SOL", Quote: "USD", FeedID: "sol"}, Points: 3}}
}

func (s *fakeSession) Pair(feedID string) (models.AssetPair, bool) {
	if feedID == "sol" {
		return models.AssetPair{Base: "SOL", Quote: "USD", FeedID: "sol"}, true
	}
	return models.AssetPair{}, false
}

type fakePrices struct {
	ids []string
	err error
}

func (p *fakePrices) Latest(_ context.Context, ids []string) ([]models.PriceUpdate, error) {
	p.ids = ids
	if p.err != nil {
		return nil, p.err
	}
	out := make([]models.PriceUpdate, len(ids))
	for i, id := range ids {
		out[i] = models.PriceUpdate{FeedID: id, Price: 6850, Confidence: 0.5, Timestamp: 1}
	}
	return out, nil
}

type fakeHistory struct{}

func (fakeHistory) Snapshot(string) []models.PricePoint {
	return []models.PricePoint{{Price: 1, Timestamp: 1}, {Price: 2, Timestamp: 2}, {Price: 3, Timestamp: 3}}
}

type fakeJournal struct{ limit int }

func (j *fakeJournal) Recent(limit int) []models.TradeEvent {
	j.limit = limit
	return []models.TradeEvent{{ID: "e1", Symbol: "SOL/USD", Success: true}}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func setup() (*xhttp.Server, *fakeSession, *fakePrices, *fakeJournal) {
	sess, prices, journal := &fakeSession{}, &fakePrices{}, &fakeJournal{}
	h := NewTradingEchoHandler(xlogger.NewNop(), sess, prices, fakeHistory{}, journal)
	srv := xhttp.NewServer(h, xhttp.WithRegistry(prometheus.NewRegistry()))
	return srv, sess, prices, journal
}

func do(t *testing.T, srv *xhttp.Server, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	if strings.HasPrefix(target, "/api/") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestTradingHandler_SessionLifecycle(t *testing.T) {
	srv, sess, _, _ := setup()

	rec, env := do(t, srv, http.MethodPost, "/api/v1/session/start")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"active":true`)
	assert.Equal(t, 1, sess.starts)

	rec, _ = do(t, srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":true`)

	rec, env = do(t, srv, http.MethodPost, "/api/v1/session/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"active":false`)

	rec, env = do(t, srv, http.MethodGet, "/api/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"history":{"sol":3}`)
}

func TestTradingHandler_StartFailure(t *testing.T) {
	srv, sess, _, _ := setup()
	sess.startErr = errors.New("dial refused")

	rec, _ := do(t, srv, http.MethodPost, "/api/v1/session/start")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_UPSTREAM")
}

func TestTradingHandler_History(t *testing.T) {
	srv, _, _, _ := setup()

	rec, env := do(t, srv, http.MethodGet, "/api/v1/history/sol?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.PricePoint `json:"rows"`
		Total int64               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, 2.0, list.Rows[0].Price)
	assert.Equal(t, 3.0, list.Rows[1].Price)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/history/doge")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/history/sol?limit=5000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTradingHandler_Prices(t *testing.T) {
	srv, _, prices, _ := setup()

	rec, _ := do(t, srv, http.MethodGet, "/api/v1/prices?ids=sol,eth&ids=btc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sol", "eth", "btc"}, prices.ids)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/prices")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	prices.err = errors.New("timeout")
	rec, _ = do(t, srv, http.MethodGet, "/api/v1/prices?ids=sol")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTradingHandler_SignalsAndTrades(t *testing.T) {
	srv, _, _, journal := setup()

	rec, env := do(t, srv, http.MethodGet, "/api/v1/signals")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"points":3`)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/trades")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, journal.limit)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/trades?limit=500")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
