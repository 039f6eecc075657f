package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"github.com/smallbiznis/rentbill/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(invoice).Error; err != nil {
		return err
	}
	if len(invoice.Items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&invoice.Items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*invoicedomain.Invoice, error) {
	return r.findOne(ctx, db, forUpdate, "id = ?", id)
}

func (r *repo) FindByRoomPeriod(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period billingdomain.Period, forUpdate bool) (*invoicedomain.Invoice, error) {
	return r.findOne(ctx, db, forUpdate, "room_id = ? AND month_year = ?", roomID, period.String())
}

// findOne locks only the invoice row. Items are loaded by a second query so
// the lock clause never reaches the item table.
func (r *repo) findOne(ctx context.Context, db *gorm.DB, forUpdate bool, query string, args ...any) (*invoicedomain.Invoice, error) {
	stmt := db.WithContext(ctx)
	if forUpdate {
		stmt = option.WithForUpdate().Apply(stmt)
	}
	var invoice invoicedomain.Invoice
	if err := stmt.Where(query, args...).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Order("position asc").
		Find(&invoice.Items).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	stmt := db.WithContext(ctx).Model(&invoicedomain.Invoice{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.MonthYear != "" {
		stmt = stmt.Where("month_year = ?", filter.MonthYear)
	}
	if filter.ContractID != 0 {
		stmt = stmt.Where("contract_id = ?", filter.ContractID)
	}
	if filter.RoomID != 0 {
		stmt = stmt.Where("room_id = ?", filter.RoomID)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var invoices []invoicedomain.Invoice
	if err := stmt.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status invoicedomain.InvoiceStatus, paidAt *time.Time, at time.Time) error {
	return db.WithContext(ctx).Model(&invoicedomain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"paid_at":    paidAt,
			"updated_at": at,
		}).Error
}

func (r *repo) UpdateTotal(ctx context.Context, db *gorm.DB, id snowflake.ID, total decimal.Decimal, at time.Time) error {
	return db.WithContext(ctx).Model(&invoicedomain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_amount": total,
			"updated_at":   at,
		}).Error
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *invoicedomain.InvoiceItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) UpdateItem(ctx context.Context, db *gorm.DB, item *invoicedomain.InvoiceItem) error {
	return db.WithContext(ctx).Model(&invoicedomain.InvoiceItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"description": item.Description,
			"quantity":    item.Quantity,
			"unit_amount": item.UnitAmount,
			"amount":      item.Amount,
		}).Error
}

func (r *repo) HasLateFee(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&invoicedomain.InvoiceItem{}).
		Where("invoice_id = ? AND type = ?", invoiceID, invoicedomain.ItemTypeLateFee).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Where("invoice_id = ?", id).Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", id).Delete(&invoicedomain.Invoice{}).Error
}

func (r *repo) ClaimPendingDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]invoicedomain.Invoice, error) {
	stmt := db.WithContext(ctx).
		Where("status = ? AND due_date < ?", invoicedomain.InvoiceStatusPending, now).
		Order("due_date asc, id asc").
		Limit(limit)
	if db.Dialector.Name() == "postgres" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var invoices []invoicedomain.Invoice
	if err := stmt.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListOverdueWithoutLateFee(ctx context.Context, db *gorm.DB, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Model(&invoicedomain.Invoice{}).
		Where("status = ?", invoicedomain.InvoiceStatusOverdue).
		Where("NOT EXISTS (SELECT 1 FROM invoice_items ii WHERE ii.invoice_id = invoices.id AND ii.type = ?)", invoicedomain.ItemTypeLateFee).
		Order("due_date asc, id asc").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
