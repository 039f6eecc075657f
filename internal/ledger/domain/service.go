package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EntryRequest struct {
	ContractID snowflake.ID
	SourceType LedgerSourceType
	SourceID   snowflake.ID
	Currency   string
	OccurredAt time.Time
	Postings   []Posting
}

type DepositBalance struct {
	ContractID snowflake.ID    `json:"contract_id"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
}

type Service interface {
	// PostEntry writes within tx. A repeated (source_type, source_id) is a
	// no-op and reports false.
	PostEntry(ctx context.Context, tx *gorm.DB, req EntryRequest) (bool, error)
	DepositBalance(ctx context.Context, contractID snowflake.ID) (DepositBalance, error)
}

var (
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidContract      = errors.New("invalid_contract")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
)
