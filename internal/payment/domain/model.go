package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
)

// Payment is a tenant transfer against one invoice. It is approved at most
// once.
type Payment struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	InvoiceID    snowflake.ID    `json:"invoice_id" gorm:"not null;index"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Reference    string          `json:"reference" gorm:"size:64;not null;uniqueIndex:ux_payments_reference"`
	SlipImageURL *string         `json:"slip_image_url,omitempty" gorm:"size:512"`
	PaymentDate  time.Time       `json:"payment_date" gorm:"not null"`
	Status       PaymentStatus   `json:"status" gorm:"size:16;not null;index"`
	RecordedBy   *string         `json:"recorded_by,omitempty" gorm:"size:64"`
	ApprovedBy   *string         `json:"approved_by,omitempty" gorm:"size:64"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }
