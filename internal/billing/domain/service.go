package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type PreviewRequest struct {
	RoomID        string          `json:"room_id"`
	CurrentWater  int64           `json:"current_water"`
	CurrentElec   int64           `json:"current_elec"`
	MonthYear     string          `json:"month_year"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	RequestSeq    uint64          `json:"request_seq"`
}

// Service computes previews against stored room and reading state.
type Service interface {
	Preview(ctx context.Context, req PreviewRequest) (Calculation, error)
}
