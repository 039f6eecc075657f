package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/audit"
	"github.com/smallbiznis/rentbill/internal/authorization"
	"github.com/smallbiznis/rentbill/internal/billing"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	"github.com/smallbiznis/rentbill/internal/contract"
	"github.com/smallbiznis/rentbill/internal/events"
	"github.com/smallbiznis/rentbill/internal/invoice"
	"github.com/smallbiznis/rentbill/internal/ledger"
	"github.com/smallbiznis/rentbill/internal/meterreading"
	"github.com/smallbiznis/rentbill/internal/observability"
	"github.com/smallbiznis/rentbill/internal/payment"
	"github.com/smallbiznis/rentbill/internal/providers"
	"github.com/smallbiznis/rentbill/internal/ratelimit"
	"github.com/smallbiznis/rentbill/internal/redisclient"
	"github.com/smallbiznis/rentbill/internal/room"
	"github.com/smallbiznis/rentbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// infrastructure is shared by every command.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redisclient.Module,
	)
}

// domains wires the billing services used by both the HTTP API and the jobs.
func domains() fx.Option {
	return fx.Options(
		events.Module,
		authorization.Module,
		audit.Module,
		ledger.Module,
		room.Module,
		contract.Module,
		meterreading.Module,
		invoice.Module,
		billing.Module,
		payment.Module,
		providers.Module,
		ratelimit.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
