package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/billing/engine"
	"github.com/smallbiznis/rentbill/internal/events"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"github.com/smallbiznis/rentbill/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lateFeeSourceManual    = "manual"
	lateFeeSourceScheduler = "scheduler"
)

// ComputeLateFee quotes the fee owed right now without writing anything.
// Paid and cancelled invoices never owe one.
func (s *Service) ComputeLateFee(ctx context.Context, id string) (invoicedomain.LateFeeQuote, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.LateFeeQuote{}, err
	}
	quote := invoicedomain.LateFeeQuote{InvoiceID: invoice.ID.String()}
	if !invoice.Status.Open() {
		return quote, nil
	}
	quote.LateFee = engine.ComputeLateFee(invoice.MonthYear, s.clock.Now(), s.billing.Get().LateFeePolicy())
	return quote, nil
}

// ApplyLateFee adds the late fee line once. A second attempt is a conflict,
// never a recalculation.
func (s *Service) ApplyLateFee(ctx context.Context, id string) (invoicedomain.ApplyLateFeeResult, error) {
	invoiceID, err := parseID("invoice_id", id)
	if err != nil {
		return invoicedomain.ApplyLateFeeResult{}, err
	}
	return s.applyLateFee(ctx, invoiceID, lateFeeSourceManual)
}

func (s *Service) applyLateFee(ctx context.Context, invoiceID snowflake.ID, source string) (invoicedomain.ApplyLateFeeResult, error) {
	policy := s.billing.Get().LateFeePolicy()
	now := s.clock.Now().UTC()

	var (
		invoice *invoicedomain.Invoice
		fee     *billingdomain.LateFee
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = s.repo.FindByID(ctx, tx, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return billingdomain.NewNotFoundError("invoice", invoiceID.String())
		}
		if !invoice.Status.Open() {
			return billingdomain.NewStateError(invoicedomain.ErrInvoiceClosed.Error(), "late fees apply to pending or overdue invoices only")
		}
		applied, err := s.repo.HasLateFee(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if applied {
			return lateFeeConflict()
		}

		fee = engine.ComputeLateFee(invoice.MonthYear, now, policy)
		if fee == nil {
			return billingdomain.NewStateError(invoicedomain.ErrInvoiceNotOverdue.Error(), "invoice is not past its due date")
		}

		item := invoicedomain.LateFeeItem(fee.DaysLate, policy.PerDay, fee.Amount)
		item.ID = s.genID.Generate()
		item.InvoiceID = invoice.ID
		item.Position = len(invoice.Items)
		item.CreatedAt = now
		if err := s.repo.InsertItem(ctx, tx, &item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return lateFeeConflict()
			}
			return err
		}
		invoice.Items = append(invoice.Items, item)
		invoice.RecomputeTotal()
		invoice.UpdatedAt = now
		if err := s.repo.UpdateTotal(ctx, tx, invoice.ID, invoice.TotalAmount, now); err != nil {
			return err
		}

		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "invoice.late_fee_applied",
			TargetType: "invoice",
			TargetID:   invoice.ID.String(),
			Metadata: map[string]any{
				"days_late":    fee.DaysLate,
				"late_fee":     fee.Amount.StringFixed(2),
				"total_amount": invoice.TotalAmount.StringFixed(2),
				"source":       source,
			},
		})
	})
	if err != nil {
		return invoicedomain.ApplyLateFeeResult{}, err
	}

	s.metrics.RecordLateFeeApplied(ctx, source)
	data := invoiceEventData(*invoice)
	data["days_late"] = fee.DaysLate
	data["late_fee"] = fee.Amount.StringFixed(2)
	s.publish(ctx, events.New(events.LateFeeApplied, invoice.RoomID.String(), now, data))
	return invoicedomain.ApplyLateFeeResult{Invoice: *invoice, LateFee: *fee}, nil
}

func lateFeeConflict() error {
	return billingdomain.NewConflictError(invoicedomain.ErrLateFeeApplied.Error(), "a late fee has already been applied to this invoice")
}

// ApplyLateFees charges one batch of overdue invoices that have no late fee
// yet. Invoices that gained one concurrently are skipped.
func (s *Service) ApplyLateFees(ctx context.Context, limit int) (int, error) {
	ids, err := s.repo.ListOverdueWithoutLateFee(ctx, s.db, limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := s.applyLateFee(ctx, id, lateFeeSourceScheduler)
		switch {
		case err == nil:
			applied++
		case errors.Is(err, billingdomain.ErrConflict), errors.Is(err, billingdomain.ErrState), errors.Is(err, billingdomain.ErrNotFound):
			s.log.Debug("late fee skipped", zap.String("invoice_id", id.String()), zap.String("reason", billingdomain.Code(err)))
		default:
			errs = append(errs, err)
		}
	}
	return applied, errors.Join(errs...)
}
