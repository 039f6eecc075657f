package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rentbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyActorWrites = "rentbill:ratelimit:writes:"

// Limiter throttles payment writes per actor. A nil or disabled limiter
// allows everything.
type Limiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

func NewLimiter(p Params) *Limiter {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil
	}
	log := p.Log.Named("ratelimit")
	if p.Client == nil {
		log.Warn("rate limiting enabled but redis is not configured, limiter disabled")
		return nil
	}
	if cfg.Rate <= 0 || cfg.Burst <= 0 {
		log.Warn("rate limiting disabled, rate and burst must be positive",
			zap.Float64("rate", cfg.Rate),
			zap.Int("burst", cfg.Burst),
		)
		return nil
	}
	return &Limiter{
		bucket: NewTokenBucket(p.Client),
		rate:   cfg.Rate,
		burst:  cfg.Burst,
		log:    log,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow takes one token for subject. Redis failures fail open.
func (l *Limiter) Allow(ctx context.Context, subject string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}
	res, err := l.bucket.Allow(ctx, keyActorWrites+subject, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed", zap.String("subject", subject), zap.Error(err))
		return Result{Allowed: true, Limit: l.burst}
	}
	return res
}
