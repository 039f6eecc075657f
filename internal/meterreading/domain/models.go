package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
)

// MeterReading is the water/electric snapshot of one room for one period.
// Current readings never go below the previous ones.
type MeterReading struct {
	ID            snowflake.ID         `gorm:"primaryKey;autoIncrement:false" json:"id"`
	RoomID        snowflake.ID         `gorm:"not null;uniqueIndex:ux_meter_readings_room_period,priority:1" json:"room_id"`
	MonthYear     billingdomain.Period `gorm:"size:7;not null;uniqueIndex:ux_meter_readings_room_period,priority:2" json:"month_year"`
	PreviousWater int64                `gorm:"not null" json:"previous_water"`
	PreviousElec  int64                `gorm:"not null" json:"previous_elec"`
	CurrentWater  int64                `gorm:"not null" json:"current_water"`
	CurrentElec   int64                `gorm:"not null" json:"current_elec"`
	RecordedBy    string               `gorm:"size:64;not null" json:"recorded_by"`
	ReadingDate   time.Time            `gorm:"not null" json:"reading_date"`
	CreatedAt     time.Time            `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"not null" json:"updated_at"`
}

func (MeterReading) TableName() string { return "meter_readings" }

func (m MeterReading) Previous() billingdomain.Readings {
	return billingdomain.Readings{Water: m.PreviousWater, Elec: m.PreviousElec}
}

func (m MeterReading) Current() billingdomain.Readings {
	return billingdomain.Readings{Water: m.CurrentWater, Elec: m.CurrentElec}
}
