package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/events"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func parseStatus(raw string) (invoicedomain.InvoiceStatus, error) {
	status := invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", billingdomain.NewValidationError("status", invoicedomain.ErrInvalidStatus.Error(), "status must be one of pending, paid, overdue, cancelled")
	}
	return status, nil
}

// UpdateStatus is a manual override: any status may move to any status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status string) (invoicedomain.Invoice, error) {
	invoiceID, err := parseID("invoice_id", id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	next, err := parseStatus(status)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoice, err := s.updateStatus(ctx, invoiceID, next)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	s.metrics.RecordInvoiceStatusChange(ctx, string(next), 1)
	return invoice, nil
}

func (s *Service) updateStatus(ctx context.Context, invoiceID snowflake.ID, next invoicedomain.InvoiceStatus) (invoicedomain.Invoice, error) {
	now := s.clock.Now().UTC()
	var (
		invoice  *invoicedomain.Invoice
		previous invoicedomain.InvoiceStatus
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

		previous = invoice.Status
		paidAt := invoice.PaidAt
		switch {
		case next != invoicedomain.InvoiceStatusPaid:
			paidAt = nil
		case paidAt == nil:
			paidAt = &now
		}
		if err := s.repo.UpdateStatus(ctx, tx, invoice.ID, next, paidAt, now); err != nil {
			return err
		}
		invoice.Status = next
		invoice.PaidAt = paidAt
		invoice.UpdatedAt = now

		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "invoice.status_updated",
			TargetType: "invoice",
			TargetID:   invoice.ID.String(),
			Metadata: map[string]any{
				"from": string(previous),
				"to":   string(next),
			},
		})
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	data := invoiceEventData(*invoice)
	data["previous_status"] = string(previous)
	s.publish(ctx, events.New(events.InvoiceStatusUpdated, invoice.RoomID.String(), now, data))
	return *invoice, nil
}

// BulkUpdateStatus runs one transaction per id so a failing id never blocks
// the others.
func (s *Service) BulkUpdateStatus(ctx context.Context, req invoicedomain.BulkUpdateStatusRequest) (invoicedomain.BulkUpdateReport, error) {
	next, err := parseStatus(req.Status)
	if err != nil {
		return invoicedomain.BulkUpdateReport{}, err
	}

	seen := make(map[string]struct{}, len(req.InvoiceIDs))
	ids := make([]string, 0, len(req.InvoiceIDs))
	for _, raw := range req.InvoiceIDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		ids = append(ids, raw)
	}
	if len(ids) == 0 {
		return invoicedomain.BulkUpdateReport{}, billingdomain.NewValidationError("invoice_ids", invoicedomain.ErrEmptyInvoiceIDs.Error(), "invoice_ids must not be empty")
	}

	report := invoicedomain.BulkUpdateReport{
		Status:  next,
		Results: make([]invoicedomain.BulkUpdateResult, 0, len(ids)),
	}
	for _, raw := range ids {
		result := invoicedomain.BulkUpdateResult{InvoiceID: raw}
		invoiceID, err := parseID("invoice_id", raw)
		if err == nil {
			_, err = s.updateStatus(ctx, invoiceID, next)
		}
		if err != nil {
			result.ErrorCode, result.Message = s.describeError(err, raw)
		} else {
			result.OK = true
			report.UpdatedCount++
		}
		report.Results = append(report.Results, result)
	}

	if report.UpdatedCount > 0 {
		s.metrics.RecordInvoiceStatusChange(ctx, string(next), int64(report.UpdatedCount))
	}
	return report, nil
}

// describeError hides internal failures behind a generic code.
func (s *Service) describeError(err error, invoiceID string) (string, string) {
	code := billingdomain.Code(err)
	if code == "internal_error" {
		s.log.Error("bulk status update failed", zap.String("invoice_id", invoiceID), zap.Error(err))
		return code, "internal error"
	}
	return code, err.Error()
}

// Delete removes the invoice with its items and payments. The period's meter
// reading goes too unless a later period already derives from it.
func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID("invoice_id", id)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	var invoice *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err = s.repo.FindByID(ctx, tx, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return billingdomain.NewNotFoundError("invoice", id)
		}
		if err := s.paymentRepo.DeleteByInvoice(ctx, tx, invoice.ID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, invoice.ID); err != nil {
			return err
		}
		later, err := s.readingRepo.ExistsAfter(ctx, tx, invoice.RoomID, invoice.MonthYear)
		if err != nil {
			return err
		}
		if !later {
			if err := s.readingRepo.DeleteByRoomPeriod(ctx, tx, invoice.RoomID, invoice.MonthYear); err != nil {
				return err
			}
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "invoice.deleted",
			TargetType: "invoice",
			TargetID:   invoice.ID.String(),
			Metadata: map[string]any{
				"invoice_number":  invoice.InvoiceNumber,
				"room_id":         invoice.RoomID.String(),
				"month_year":      invoice.MonthYear.String(),
				"status":          string(invoice.Status),
				"total_amount":    invoice.TotalAmount.StringFixed(2),
				"reading_removed": !later,
			},
		})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.New(events.InvoiceDeleted, invoice.RoomID.String(), now, invoiceEventData(*invoice)))
	return nil
}

// MarkOverdue moves one batch of pending invoices past their due date to
// overdue and returns how many moved.
func (s *Service) MarkOverdue(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now().UTC()
	var marked []invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		due, err := s.repo.ClaimPendingDue(ctx, tx, now, limit)
		if err != nil {
			return err
		}
		for _, invoice := range due {
			if err := s.repo.UpdateStatus(ctx, tx, invoice.ID, invoicedomain.InvoiceStatusOverdue, nil, now); err != nil {
				return err
			}
			if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				Action:     "invoice.overdue",
				TargetType: "invoice",
				TargetID:   invoice.ID.String(),
				Metadata: map[string]any{
					"due_date": invoice.DueDate.UTC().Format(time.RFC3339),
				},
			}); err != nil {
				return err
			}
			invoice.Status = invoicedomain.InvoiceStatusOverdue
			invoice.UpdatedAt = now
			marked = append(marked, invoice)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(marked) == 0 {
		return 0, nil
	}

	evts := make([]events.Event, 0, len(marked))
	for _, invoice := range marked {
		evts = append(evts, events.New(events.InvoiceOverdue, invoice.RoomID.String(), now, invoiceEventData(invoice)))
	}
	s.publish(ctx, evts...)
	s.metrics.RecordInvoiceStatusChange(ctx, string(invoicedomain.InvoiceStatusOverdue), int64(len(marked)))
	return len(marked), nil
}
