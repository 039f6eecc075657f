package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateContractRequest struct {
	RoomID     string          `json:"room_id"`
	TenantID   string          `json:"tenant_id"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date"`
	Deposit    decimal.Decimal `json:"deposit"`
	RentAmount decimal.Decimal `json:"rent_amount"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Contract, error)
	FindActiveByRoom(ctx context.Context, db *gorm.DB, roomID snowflake.ID) (*Contract, error)
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	AddDeposit(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal) error
}

type Service interface {
	Create(ctx context.Context, req CreateContractRequest) (Contract, error)
	GetByID(ctx context.Context, id string) (Contract, error)
	ActiveForRoom(ctx context.Context, roomID string) (Contract, error)
	Terminate(ctx context.Context, id string) (Contract, error)
}

var (
	ErrRoomHasActiveContract = errors.New("room_has_active_contract")
	ErrContractInactive      = errors.New("contract_inactive")
)
