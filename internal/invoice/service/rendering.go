package service

import (
	"context"
	"io"

	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	invoiceformat "github.com/smallbiznis/rentbill/internal/invoice/format"
	"github.com/smallbiznis/rentbill/internal/providers/pdf"
)

// RenderPDF renders an invoice, or a receipt once the invoice is paid.
func (s *Service) RenderPDF(ctx context.Context, id string) (invoicedomain.RenderedPDF, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.RenderedPDF{}, err
	}
	room, err := s.roomRepo.FindByID(ctx, s.db, invoice.RoomID, false)
	if err != nil {
		return invoicedomain.RenderedPDF{}, err
	}
	if room == nil {
		return invoicedomain.RenderedPDF{}, billingdomain.NewNotFoundError("room", invoice.RoomID.String())
	}
	contract, err := s.contractRepo.FindByID(ctx, s.db, invoice.ContractID, false)
	if err != nil {
		return invoicedomain.RenderedPDF{}, err
	}

	data := pdf.InvoiceData{
		InvoiceNumber: invoice.InvoiceNumber,
		IssueDate:     invoiceformat.Date(invoice.IssueDate),
		DueDate:       invoiceformat.Date(invoice.DueDate),
		Period:        invoice.MonthYear.String(),
		Status:        string(invoice.Status),
		Building:      room.Building,
		RoomNumber:    room.Number,
		Total:         invoiceformat.Money(invoice.TotalAmount),
		Summary:       settlementSummary(invoice),
	}
	if contract != nil {
		data.TenantID = contract.TenantID
	}
	for _, item := range invoice.Items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   invoiceformat.Money(item.UnitAmount),
			Amount:      invoiceformat.Money(item.Amount),
		})
	}

	kind := "invoice"
	var r io.Reader
	if invoice.Status == invoicedomain.InvoiceStatusPaid && invoice.PaidAt != nil {
		kind = "receipt"
		r, err = s.pdf.GenerateReceipt(ctx, pdf.ReceiptData{InvoiceData: data, DatePaid: invoiceformat.Date(*invoice.PaidAt)})
	} else {
		r, err = s.pdf.GenerateInvoice(ctx, data)
	}
	if err != nil {
		return invoicedomain.RenderedPDF{}, err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return invoicedomain.RenderedPDF{}, err
	}

	return invoicedomain.RenderedPDF{
		Filename: invoiceformat.PDFFilename(kind, room.Building, room.Number, invoice.MonthYear.String()),
		Content:  content,
	}, nil
}

var settlementLabels = []struct {
	key   string
	label string
}{
	{"deposit", "Deposit held"},
	{"total_deductions", "Total deductions"},
	{"refund", "Refund"},
	{"tenant_owes", "Tenant owes"},
}

func settlementSummary(invoice invoicedomain.Invoice) []pdf.SummaryLine {
	raw, ok := invoice.Metadata[invoicedomain.MetadataSettlement].(map[string]any)
	if !ok {
		return nil
	}
	lines := make([]pdf.SummaryLine, 0, len(settlementLabels))
	for _, l := range settlementLabels {
		value, ok := raw[l.key].(string)
		if !ok {
			continue
		}
		lines = append(lines, pdf.SummaryLine{Label: l.label, Value: value})
	}
	return lines
}
