package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type RoomStatus string

const (
	RoomStatusVacant      RoomStatus = "vacant"
	RoomStatusOccupied    RoomStatus = "occupied"
	RoomStatusReserved    RoomStatus = "reserved"
	RoomStatusMaintenance RoomStatus = "maintenance"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusVacant, RoomStatusOccupied, RoomStatusReserved, RoomStatusMaintenance:
		return true
	}
	return false
}

// Room carries the rate schedule the billing engine reads.
type Room struct {
	ID                snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Number            string          `gorm:"size:32;not null;uniqueIndex:ux_rooms_building_number,priority:2" json:"number"`
	Building          string          `gorm:"size:64;not null;default:'';uniqueIndex:ux_rooms_building_number,priority:1" json:"building"`
	BaseRent          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"base_rent"`
	WaterRate         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"water_rate"`
	ElecRate          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"elec_rate"`
	Status            RoomStatus      `gorm:"size:16;not null;index" json:"status"`
	CurrentContractID *snowflake.ID   `json:"current_contract_id,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (Room) TableName() string { return "rooms" }
