package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"gorm.io/gorm"
)

type ListReadingRequest struct {
	RoomID    string `form:"room_id"`
	MonthYear string `form:"month_year"`
}

type CorrectReadingRequest struct {
	CurrentWater int64 `json:"current_water"`
	CurrentElec  int64 `json:"current_elec"`
}

type CorrectionResult struct {
	Reading     MeterReading              `json:"reading"`
	Calculation billingdomain.Calculation `json:"calculation"`
	Invoice     *invoicedomain.Invoice    `json:"invoice,omitempty"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reading *MeterReading) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*MeterReading, error)
	// FindLatest returns nil when the room has no reading.
	FindLatest(ctx context.Context, db *gorm.DB, roomID snowflake.ID) (*MeterReading, error)
	// FindLatestBefore returns the most recent reading strictly before period.
	FindLatestBefore(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period billingdomain.Period) (*MeterReading, error)
	ExistsAfter(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period billingdomain.Period) (bool, error)
	List(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period string) ([]MeterReading, error)
	UpdateCurrent(ctx context.Context, db *gorm.DB, id snowflake.ID, current billingdomain.Readings, at time.Time) error
	DeleteByRoomPeriod(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period billingdomain.Period) error
}

type Service interface {
	Latest(ctx context.Context, roomID string) (MeterReading, error)
	List(ctx context.Context, req ListReadingRequest) ([]MeterReading, error)
	Correct(ctx context.Context, id string, req CorrectReadingRequest) (CorrectionResult, error)
}

var (
	ErrLaterReadingExists = errors.New("later_reading_exists")
	ErrInvoiceSettled     = errors.New("invoice_settled")
)
