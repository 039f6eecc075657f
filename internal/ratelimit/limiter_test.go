package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/rentbill/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewLimiterDisabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.RateLimitConfig
	}{
		{"off", config.RateLimitConfig{Enabled: false, Rate: 1, Burst: 1}},
		{"no redis", config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLimiter(Params{Config: config.Config{RateLimit: tc.cfg}, Log: zap.NewNop()})
			assert.False(t, l.Enabled())
			assert.True(t, l.Allow(context.Background(), "tenant:1").Allowed)
		})
	}
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(true, 0, 1))
	assert.Equal(t, time.Second, retryAfter(false, 0, 1))
	assert.Equal(t, 500*time.Millisecond, retryAfter(false, 0.5, 1))
	assert.Equal(t, 250*time.Millisecond, retryAfter(false, 0, 4))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestToFloatParsesStrings(t *testing.T) {
	assert.Equal(t, 2.5, toFloat("2.5"))
	assert.Equal(t, float64(3), toFloat(int64(3)))
	assert.Equal(t, float64(0), toFloat("nan-ish"))
}

func TestTokenBucketRequiresClient(t *testing.T) {
	var b *TokenBucket
	_, err := b.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
	assert.Nil(t, NewTokenBucket(nil))
}
