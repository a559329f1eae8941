package signals

import (
	"math"

	"SonicTrader/internal/domain/models"
	domsvc "SonicTrader/internal/domain/service"
)

const (
	DefaultShortWindow    = 5
	DefaultLongWindow     = 20
	DefaultScale          = 5.0
	DefaultMaxConfidence  = 0.95
	DefaultHoldConfidence = 0.5
)

// Crossover compares a short and a long simple moving average of the most
// recent prices. Short above long is BUY, below is SELL, equal is HOLD,
// whatever the sign of the prices.
type Crossover struct {
	ShortWindow    int
	LongWindow     int
	Scale          float64
	MaxConfidence  float64
	HoldConfidence float64
}

func NewCrossover(short, long int) *Crossover {
	return &Crossover{
		ShortWindow:    short,
		LongWindow:     long,
		Scale:          DefaultScale,
		MaxConfidence:  DefaultMaxConfidence,
		HoldConfidence: DefaultHoldConfidence,
	}
}

func DefaultCrossover() *Crossover {
	return NewCrossover(DefaultShortWindow, DefaultLongWindow)
}

// Evaluate returns nil when history holds fewer than LongWindow points.
// history must be oldest first.
func (c *Crossover) Evaluate(history []models.PricePoint) *models.Signal {
	if c.ShortWindow <= 0 || c.LongWindow < c.ShortWindow || len(history) < c.LongWindow {
		return nil
	}
	short := SMA(history, c.ShortWindow)
	long := SMA(history, c.LongWindow)

	sig := &models.Signal{ShortSMA: short, LongSMA: long}
	switch {
	case short > long:
		sig.Action = models.ActionBuy
		sig.Confidence = c.confidence(short-long, long)
	case short < long:
		sig.Action = models.ActionSell
		sig.Confidence = c.confidence(long-short, short)
	default:
		sig.Action = models.ActionHold
		sig.Confidence = c.HoldConfidence
	}
	return sig
}

// confidence scales the relative gap between the averages. For positive
// prices gap/|base| equals short/long-1 (BUY) or long/short-1 (SELL); a zero
// base saturates at MaxConfidence.
func (c *Crossover) confidence(gap, base float64) float64 {
	return math.Min(gap/math.Abs(base)*c.Scale, c.MaxConfidence)
}

// SMA is the arithmetic mean of the last window prices.
func SMA(points []models.PricePoint, window int) float64 {
	if window <= 0 || len(points) < window {
		return 0
	}
	sum := 0.0
	for _, p := range points[len(points)-window:] {
		sum += p.Price
	}
	return sum / float64(window)
}

var _ domsvc.SignalEvaluator = (*Crossover)(nil)
