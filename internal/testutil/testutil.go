// Package testutil builds in-memory databases and seed rows for service tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/config"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	readingdomain "github.com/smallbiznis/rentbill/internal/meterreading/domain"
	"github.com/smallbiznis/rentbill/internal/migration"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(migration.Models()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func Node(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func Billing(t *testing.T, mutate ...func(*config.BillingConfig)) *config.BillingConfigHolder {
	t.Helper()
	cfg := config.DefaultBillingConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	holder, err := config.NewStaticBillingConfigHolder(cfg)
	require.NoError(t, err)
	return holder
}

func D(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// SeedRoom inserts a vacant room with rent 3000, water 18 and electricity 7.
func SeedRoom(t *testing.T, db *gorm.DB, node *snowflake.Node, number string) roomdomain.Room {
	t.Helper()
	now := time.Now().UTC()
	room := roomdomain.Room{
		ID:        node.Generate(),
		Number:    number,
		Building:  "A",
		BaseRent:  D("3000"),
		WaterRate: D("18"),
		ElecRate:  D("7"),
		Status:    roomdomain.RoomStatusVacant,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(&room).Error)
	return room
}

// SeedContract inserts an active contract and marks the room occupied.
func SeedContract(t *testing.T, db *gorm.DB, node *snowflake.Node, room roomdomain.Room, deposit string) contractdomain.Contract {
	t.Helper()
	now := time.Now().UTC()
	contract := contractdomain.Contract{
		ID:         node.Generate(),
		RoomID:     room.ID,
		TenantID:   "tenant-" + room.Number,
		StartDate:  now.AddDate(0, -6, 0),
		Deposit:    D(deposit),
		RentAmount: room.BaseRent,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, db.Create(&contract).Error)
	require.NoError(t, db.Model(&roomdomain.Room{}).Where("id = ?", room.ID).Updates(map[string]any{
		"status":              roomdomain.RoomStatusOccupied,
		"current_contract_id": contract.ID,
	}).Error)
	return contract
}

func SeedReading(t *testing.T, db *gorm.DB, node *snowflake.Node, roomID snowflake.ID, period string, water, elec int64) readingdomain.MeterReading {
	t.Helper()
	p, err := billingdomain.ParsePeriod(period)
	require.NoError(t, err)
	now := time.Now().UTC()
	reading := readingdomain.MeterReading{
		ID:           node.Generate(),
		RoomID:       roomID,
		MonthYear:    p,
		CurrentWater: water,
		CurrentElec:  elec,
		RecordedBy:   "seed",
		ReadingDate:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.Create(&reading).Error)
	return reading
}
