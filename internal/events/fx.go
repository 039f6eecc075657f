package events

import (
	"context"

	"github.com/smallbiznis/rentbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// NewPublisher picks kafka when brokers are configured.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("kafka not configured, domain events disabled")
		return NewNoopPublisher()
	}
	pub := NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub
}
