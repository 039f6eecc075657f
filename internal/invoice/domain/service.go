package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateInvoiceRequest struct {
	ContractID    string          `json:"contract_id"`
	RoomID        string          `json:"room_id"`
	MonthYear     string          `json:"month_year"`
	WaterReading  int64           `json:"water_reading"`
	ElecReading   int64           `json:"elec_reading"`
	RecordedBy    string          `json:"recorded_by"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	MoveOut       bool            `json:"move_out"`
	CleaningFee   decimal.Decimal `json:"cleaning_fee"`
	DamageFee     decimal.Decimal `json:"damage_fee"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status     string `form:"status"`
	MonthYear  string `form:"month_year"`
	ContractID string `form:"contract_id"`
	RoomID     string `form:"room_id"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type BulkUpdateStatusRequest struct {
	InvoiceIDs []string `json:"invoice_ids"`
	Status     string   `json:"status"`
}

type BulkUpdateResult struct {
	InvoiceID string `json:"invoice_id"`
	OK        bool   `json:"ok"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

type BulkUpdateReport struct {
	Status       InvoiceStatus      `json:"status"`
	UpdatedCount int                `json:"updated_count"`
	Results      []BulkUpdateResult `json:"results"`
}

type LateFeeQuote struct {
	InvoiceID string                 `json:"invoice_id"`
	LateFee   *billingdomain.LateFee `json:"late_fee"`
}

type ApplyLateFeeResult struct {
	Invoice Invoice               `json:"invoice"`
	LateFee billingdomain.LateFee `json:"late_fee"`
}

type RenderedPDF struct {
	Filename string
	Content  []byte
}

type InvoiceCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter is the storage-level invoice query.
type ListFilter struct {
	Status     InvoiceStatus
	MonthYear  string
	ContractID snowflake.ID
	RoomID     snowflake.ID
	Cursor     *InvoiceCursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Invoice, error)
	FindByRoomPeriod(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period billingdomain.Period, forUpdate bool) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status InvoiceStatus, paidAt *time.Time, at time.Time) error
	UpdateTotal(ctx context.Context, db *gorm.DB, id snowflake.ID, total decimal.Decimal, at time.Time) error
	InsertItem(ctx context.Context, db *gorm.DB, item *InvoiceItem) error
	UpdateItem(ctx context.Context, db *gorm.DB, item *InvoiceItem) error
	HasLateFee(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	// ClaimPendingDue locks up to limit pending invoices due before now,
	// skipping rows locked by another worker where the dialect allows it.
	ClaimPendingDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Invoice, error)
	ListOverdueWithoutLateFee(ctx context.Context, db *gorm.DB, limit int) ([]snowflake.ID, error)
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	UpdateStatus(ctx context.Context, id string, status string) (Invoice, error)
	BulkUpdateStatus(ctx context.Context, req BulkUpdateStatusRequest) (BulkUpdateReport, error)
	Delete(ctx context.Context, id string) error
	ComputeLateFee(ctx context.Context, id string) (LateFeeQuote, error)
	ApplyLateFee(ctx context.Context, id string) (ApplyLateFeeResult, error)
	RenderPDF(ctx context.Context, id string) (RenderedPDF, error)

	MarkOverdue(ctx context.Context, limit int) (int, error)
	ApplyLateFees(ctx context.Context, limit int) (int, error)
}

var (
	ErrInvoiceExists      = errors.New("invoice_exists")
	ErrReadingExists      = errors.New("reading_exists")
	ErrRoomMismatch       = errors.New("contract_room_mismatch")
	ErrLateFeeApplied     = errors.New("late_fee_already_applied")
	ErrInvoiceNotOverdue  = errors.New("invoice_not_overdue")
	ErrInvoiceClosed      = errors.New("invoice_closed")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrEmptyInvoiceIDs    = errors.New("empty_invoice_ids")
	ErrDepositWithMoveOut = errors.New("deposit_with_move_out")
)
