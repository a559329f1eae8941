package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SonicTrader/internal/domain/models"
	drepo "SonicTrader/internal/domain/repository"
	domsvc "SonicTrader/internal/domain/service"
	"SonicTrader/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrHoldSignal       = errors.New("hold signal is not executable")
	ErrUnknownAction    = errors.New("unknown signal action")
	ErrInvalidAmount    = errors.New("trade amount must be positive")
	ErrPositionTooLarge = errors.New("trade amount exceeds max position size")
)

// TradeExecutor builds a trade request from a pair and a signal and hands it
// to the execution service. It never retries.
type TradeExecutor struct {
	svc     drepo.TradeService
	history domsvc.HistoryStore
	metrics drepo.Metrics
	log     *logger.Logger

	defaultAmount float64
	maxPosition   float64
	now           func() time.Time
}

type ExecutorOption func(*TradeExecutor)

// WithDefaultAmount is used for pairs without a configured trade amount.
func WithDefaultAmount(a float64) ExecutorOption {
	return func(e *TradeExecutor) { e.defaultAmount = a }
}

// WithMaxPosition rejects amounts above limit. Zero disables the check.
func WithMaxPosition(limit float64) ExecutorOption {
	return func(e *TradeExecutor) { e.maxPosition = limit }
}

// WithPriceHistory lets the executor attach the last observed price to requests.
func WithPriceHistory(h domsvc.HistoryStore) ExecutorOption {
	return func(e *TradeExecutor) { e.history = h }
}

func WithExecutorLogger(l *logger.Logger) ExecutorOption {
	return func(e *TradeExecutor) { e.log = l }
}

func NewTradeExecutor(svc drepo.TradeService, metrics drepo.Metrics, opts ...ExecutorOption) *TradeExecutor {
	e := &TradeExecutor{
		svc:     svc,
		metrics: metrics,
		log:     logger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute submits one trade and returns the request with the service's confirmation ids.
func (e *TradeExecutor) Execute(ctx context.Context, pair models.AssetPair, signal models.Signal) (models.TradeResult, error) {
	req, err := e.buildRequest(pair, signal)
	if err != nil {
		return models.TradeResult{}, err
	}

	start := time.Now()
	sigs, err := e.svc.Submit(ctx, req)
	e.metrics.RecordLatency("execute", time.Since(start).Seconds())
	if err != nil {
		return models.TradeResult{Request: req}, fmt.Errorf("execute %s %s: %w", req.Action, pair.Symbol(), err)
	}

	e.log.Info("trade executed",
		logger.String("trade_id", req.ID),
		logger.String("pair", pair.Symbol()),
		logger.String("action", string(req.Action)),
		logger.Float64("amount", req.Amount),
		logger.Float64("confidence", req.Confidence),
		logger.Strings("signatures", sigs),
	)
	return models.TradeResult{Request: req, Signatures: sigs}, nil
}

func (e *TradeExecutor) buildRequest(pair models.AssetPair, signal models.Signal) (models.TradeRequest, error) {
	switch signal.Action {
	case models.ActionBuy, models.ActionSell:
	case models.ActionHold:
		return models.TradeRequest{}, ErrHoldSignal
	default:
		return models.TradeRequest{}, fmt.Errorf("%w: %q", ErrUnknownAction, signal.Action)
	}

	amount := pair.TradeAmount
	if amount == 0 {
		amount = e.defaultAmount
	}
	if amount <= 0 {
		return models.TradeRequest{}, fmt.Errorf("%w: %s", ErrInvalidAmount, pair.Symbol())
	}
	if e.maxPosition > 0 && amount > e.maxPosition {
		return models.TradeRequest{}, fmt.Errorf("%w: %s %g > %g", ErrPositionTooLarge, pair.Symbol(), amount, e.maxPosition)
	}

	req := models.TradeRequest{
		ID:          uuid.NewString(),
		Base:        pair.Base,
		Quote:       pair.Quote,
		FeedID:      pair.FeedID,
		Action:      signal.Action,
		Amount:      amount,
		Confidence:  signal.Confidence,
		RequestedAt: e.now().UTC(),
	}
	if e.history != nil {
		if pts := e.history.Snapshot(pair.FeedID); len(pts) > 0 {
			req.Price = pts[len(pts)-1].Price
		}
	}
	return req, nil
}

var _ domsvc.TradeRunner = (*TradeExecutor)(nil)
