// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Open reports whether the invoice still accepts charges.
func (s InvoiceStatus) Open() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusOverdue
}

type InvoiceKind string

const (
	InvoiceKindRegular InvoiceKind = "regular"
	InvoiceKindMoveOut InvoiceKind = "move_out"
)

type ItemType string

const (
	ItemTypeRent     ItemType = "rent"
	ItemTypeWater    ItemType = "water"
	ItemTypeElectric ItemType = "electric"
	ItemTypeLateFee  ItemType = "late_fee"
	ItemTypeCleaning ItemType = "cleaning"
	ItemTypeDamage   ItemType = "damage"
	ItemTypeOther    ItemType = "other"
)

// LateFeeMarker is the only value stored in InvoiceItem.LateFeeMarker.
const LateFeeMarker = "late_fee"

// Metadata keys.
const (
	MetadataSettlement    = "settlement"
	MetadataDepositTopup  = "deposit_topup"
	MetadataReadingID     = "meter_reading_id"
	MetadataRecordedBy    = "recorded_by"
	MetadataLateFeeSource = "late_fee_source"
)

// Invoice represents one billed period of a room.
type Invoice struct {
	ID            snowflake.ID         `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceNumber string               `gorm:"size:64;not null;uniqueIndex:ux_invoices_number" json:"invoice_number"`
	ContractID    snowflake.ID         `gorm:"not null;index" json:"contract_id"`
	RoomID        snowflake.ID         `gorm:"not null;uniqueIndex:ux_invoices_room_period,priority:1" json:"room_id"`
	MonthYear     billingdomain.Period `gorm:"size:7;not null;uniqueIndex:ux_invoices_room_period,priority:2;index" json:"month_year"`
	Kind          InvoiceKind          `gorm:"size:16;not null" json:"kind"`
	TotalAmount   decimal.Decimal      `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status        InvoiceStatus        `gorm:"size:16;not null;index" json:"status"`
	IssueDate     time.Time            `gorm:"not null" json:"issue_date"`
	DueDate       time.Time            `gorm:"not null;index" json:"due_date"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
	Metadata      datatypes.JSONMap    `json:"metadata,omitempty"`
	CreatedAt     time.Time            `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"not null" json:"updated_at"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// RecomputeTotal restores total_amount == sum(items.amount).
func (i *Invoice) RecomputeTotal() {
	total := decimal.Zero
	for _, item := range i.Items {
		total = total.Add(item.Amount)
	}
	i.TotalAmount = total
}

// Item returns the first item of the given type.
func (i *Invoice) Item(t ItemType) *InvoiceItem {
	for idx := range i.Items {
		if i.Items[idx].Type == t {
			return &i.Items[idx]
		}
	}
	return nil
}

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID            snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceID     snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_invoice_items_late_fee,priority:1" json:"invoice_id"`
	Type          ItemType        `gorm:"size:16;not null" json:"type"`
	Description   string          `gorm:"size:255" json:"description"`
	Quantity      int64           `gorm:"not null" json:"quantity"`
	UnitAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_amount"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Position      int             `gorm:"not null" json:"position"`
	LateFeeMarker *string         `gorm:"size:16;uniqueIndex:ux_invoice_items_late_fee,priority:2" json:"-"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
