package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBillingConfigIsValid(t *testing.T) {
	holder, err := NewStaticBillingConfigHolder(DefaultBillingConfig())
	require.NoError(t, err)

	policy := holder.Get().LateFeePolicy()
	assert.True(t, policy.PerDay.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 5, policy.DueDay)
	assert.True(t, policy.MaxFee.IsZero())
}

func TestValidateBillingConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BillingConfig)
	}{
		{"empty currency", func(c *BillingConfig) { c.Currency = "" }},
		{"bad per day", func(c *BillingConfig) { c.LateFee.PerDay = "fifty" }},
		{"negative per day", func(c *BillingConfig) { c.LateFee.PerDay = "-1" }},
		{"due day zero", func(c *BillingConfig) { c.LateFee.DueDay = 0 }},
		{"due day too large", func(c *BillingConfig) { c.LateFee.DueDay = 31 }},
		{"negative cap", func(c *BillingConfig) { c.LateFee.MaxFee = "-10" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultBillingConfig()
			tc.mutate(&cfg)
			assert.Error(t, validateBillingConfig(cfg))
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("SCHEDULER_INTERVAL", "5m")
	t.Setenv("SCHEDULER_ENABLED", "off")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "5m0s", cfg.Scheduler.RunInterval.String())
	assert.False(t, cfg.Scheduler.Enabled)
}
