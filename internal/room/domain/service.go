package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateRoomRequest struct {
	Number    string          `json:"number"`
	Building  string          `json:"building"`
	BaseRent  decimal.Decimal `json:"base_rent"`
	WaterRate decimal.Decimal `json:"water_rate"`
	ElecRate  decimal.Decimal `json:"elec_rate"`
}

type ListRoomRequest struct {
	Status string `form:"status"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, room *Room) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Room, error)
	List(ctx context.Context, db *gorm.DB, status RoomStatus) ([]Room, error)
	UpdateOccupancy(ctx context.Context, db *gorm.DB, id snowflake.ID, status RoomStatus, contractID *snowflake.ID) error
}

type Service interface {
	Create(ctx context.Context, req CreateRoomRequest) (Room, error)
	GetByID(ctx context.Context, id string) (Room, error)
	List(ctx context.Context, req ListRoomRequest) ([]Room, error)
}

var ErrRoomNumberTaken = errors.New("room_number_taken")
