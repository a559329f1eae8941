package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"SonicTrader/internal/domain/models"
	"SonicTrader/internal/service/cache"
	"SonicTrader/internal/service/ratelimit"
)

const (
	DenyCooldown    = "cooldown"
	DenyRateLimited = "rate_limited"
)

// TradeGuard applies the per-pair cooldown and trade rate limit.
// Both checks are disabled when their setting is zero.
type TradeGuard struct {
	cache     cache.BytesCache
	limiter   *ratelimit.Limiter
	cooldown  time.Duration
	perMinute float64
}

func NewTradeGuard(c cache.BytesCache, l *ratelimit.Limiter, cooldown time.Duration, perMinute float64) *TradeGuard {
	if l == nil {
		l = ratelimit.New()
	}
	return &TradeGuard{cache: c, limiter: l, cooldown: cooldown, perMinute: perMinute}
}

// Allow reports whether pair may trade now, and the reason when it may not.
// A cache failure denies the trade.
func (g *TradeGuard) Allow(ctx context.Context, pair models.AssetPair) (bool, string, error) {
	if g.cooldown > 0 && g.cache != nil {
		_, hot, err := g.cache.GetBytes(ctx, cooldownKey(pair))
		if err != nil {
			return false, DenyCooldown, fmt.Errorf("cooldown lookup %s: %w", pair.Symbol(), err)
		}
		if hot {
			return false, DenyCooldown, nil
		}
	}
	if g.perMinute > 0 {
		burst := g.perMinute
		if burst < 1 {
			burst = 1
		}
		if !g.limiter.Allow(pair.FeedID, burst, g.perMinute/60) {
			return false, DenyRateLimited, nil
		}
	}
	return true, "", nil
}

// Record starts the cooldown for pair after a successful trade.
func (g *TradeGuard) Record(ctx context.Context, pair models.AssetPair, at time.Time) error {
	if g.cooldown <= 0 || g.cache == nil {
		return nil
	}
	v := []byte(strconv.FormatInt(at.Unix(), 10))
	if err := g.cache.SetBytes(ctx, cooldownKey(pair), v, g.cooldown); err != nil {
		return fmt.Errorf("cooldown store %s: %w", pair.Symbol(), err)
	}
	return nil
}

// Reset clears the rate limit buckets. Cooldowns expire on their own.
func (g *TradeGuard) Reset() {
	g.limiter.Reset()
}

func cooldownKey(pair models.AssetPair) string {
	return "cooldown:" + pair.FeedID
}
