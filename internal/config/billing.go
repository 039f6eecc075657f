package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig carries the business knobs that may change without a deploy.
type BillingConfig struct {
	Currency string        `mapstructure:"currency"`
	LateFee  LateFeeConfig `mapstructure:"lateFee"`
	Invoice  InvoiceConfig `mapstructure:"invoice"`
}

type LateFeeConfig struct {
	PerDay    string `mapstructure:"perDay"`
	DueDay    int    `mapstructure:"dueDay"`
	MaxFee    string `mapstructure:"maxFee"`
	AutoApply bool   `mapstructure:"autoApply"`
}

type InvoiceConfig struct {
	// SparseUtilityItems omits zero-amount water/electric rows.
	SparseUtilityItems bool `mapstructure:"sparseUtilityItems"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Currency: "THB",
		LateFee: LateFeeConfig{
			PerDay: "50",
			DueDay: 5,
			MaxFee: "0",
		},
	}
}

// LateFeePolicy converts the validated config into the engine policy.
func (c BillingConfig) LateFeePolicy() billingdomain.LateFeePolicy {
	perDay, _ := decimal.NewFromString(c.LateFee.PerDay)
	maxFee := decimal.Zero
	if strings.TrimSpace(c.LateFee.MaxFee) != "" {
		maxFee, _ = decimal.NewFromString(c.LateFee.MaxFee)
	}
	return billingdomain.LateFeePolicy{
		PerDay: perDay,
		DueDay: c.LateFee.DueDay,
		MaxFee: maxFee,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed config, used by tests and jobs
// that must not watch the filesystem.
func NewStaticBillingConfigHolder(cfg BillingConfig) (*BillingConfigHolder, error) {
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("billing.config")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/rentbill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RENTBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.lateFee.perDay", defaults.LateFee.PerDay)
	v.SetDefault("billing.lateFee.dueDay", defaults.LateFee.DueDay)
	v.SetDefault("billing.lateFee.maxFee", defaults.LateFee.MaxFee)
	v.SetDefault("billing.lateFee.autoApply", defaults.LateFee.AutoApply)
	v.SetDefault("billing.invoice.sparseUtilityItems", defaults.Invoice.SparseUtilityItems)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		log.Info("billing.yml not found, using defaults")
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := validateBillingConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	perDay, err := decimal.NewFromString(strings.TrimSpace(cfg.LateFee.PerDay))
	if err != nil {
		return fmt.Errorf("billing.lateFee.perDay: %w", err)
	}
	if perDay.IsNegative() {
		return errors.New("billing.lateFee.perDay cannot be negative")
	}
	if cfg.LateFee.DueDay < 1 || cfg.LateFee.DueDay > 28 {
		return errors.New("billing.lateFee.dueDay must be between 1 and 28")
	}
	if raw := strings.TrimSpace(cfg.LateFee.MaxFee); raw != "" {
		maxFee, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("billing.lateFee.maxFee: %w", err)
		}
		if maxFee.IsNegative() {
			return errors.New("billing.lateFee.maxFee cannot be negative")
		}
	}
	return nil
}
