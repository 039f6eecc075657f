package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"gorm.io/gorm"
)

type RecordPaymentRequest struct {
	InvoiceID    string          `json:"invoice_id"`
	Amount       decimal.Decimal `json:"amount"`
	SlipImageURL string          `json:"slip_image_url"`
	PaymentDate  *time.Time      `json:"payment_date"`
}

type AttachSlipRequest struct {
	SlipImageURL string `json:"slip_image_url"`
}

type ListPaymentRequest struct {
	InvoiceID string `form:"invoice_id"`
	Status    string `form:"status"`
}

type ApprovalResult struct {
	Payment       Payment                     `json:"payment"`
	InvoiceStatus invoicedomain.InvoiceStatus `json:"invoice_status"`
	ApprovedTotal decimal.Decimal             `json:"approved_total"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Payment, error)
	List(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, status PaymentStatus) ([]Payment, error)
	UpdateSlip(ctx context.Context, db *gorm.DB, id snowflake.ID, url string, at time.Time) (bool, error)
	// Approve flips a pending payment and reports false when it was not pending.
	Approve(ctx context.Context, db *gorm.DB, id snowflake.ID, approvedBy string, at time.Time) (bool, error)
	SumApproved(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (decimal.Decimal, error)
	DeleteByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
}

type Service interface {
	Record(ctx context.Context, req RecordPaymentRequest) (Payment, error)
	AttachSlip(ctx context.Context, id string, req AttachSlipRequest) (Payment, error)
	Approve(ctx context.Context, id string) (ApprovalResult, error)
	List(ctx context.Context, req ListPaymentRequest) ([]Payment, error)
}

var (
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvoiceCancelled  = errors.New("invoice_cancelled")
	ErrAlreadyApproved   = errors.New("payment_already_approved")
	ErrPaymentNotPending = errors.New("payment_not_pending")
	ErrInvalidSlipURL    = errors.New("invalid_slip_url")
)
