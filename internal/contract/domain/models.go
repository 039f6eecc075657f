package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Contract binds a tenant to a room. At most one contract per room is active.
type Contract struct {
	ID           snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	RoomID       snowflake.ID    `gorm:"not null;index" json:"room_id"`
	TenantID     string          `gorm:"size:64;not null;index" json:"tenant_id"`
	StartDate    time.Time       `gorm:"not null" json:"start_date"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	Deposit      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"deposit"`
	RentAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"rent_amount"`
	IsActive     bool            `gorm:"not null;index" json:"is_active"`
	TerminatedAt *time.Time      `json:"terminated_at,omitempty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }
