package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/actorcontext"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/events"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	invoiceformat "github.com/smallbiznis/rentbill/internal/invoice/format"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/rentbill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	LedgerSvc   ledgerdomain.Service
	AuditSvc    auditdomain.Service
	Repo        paymentdomain.Repository
	InvoiceRepo invoicedomain.Repository
	Publisher   events.Publisher    `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
	Clock       clock.Clock         `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	ledgerSvc   ledgerdomain.Service
	auditSvc    auditdomain.Service
	repo        paymentdomain.Repository
	invoiceRepo invoicedomain.Repository
	publisher   events.Publisher
	obsMetrics  *obsmetrics.Metrics
	clock       clock.Clock
}

func NewService(p Params) paymentdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	pub := p.Publisher
	if pub == nil {
		pub = events.NewNoopPublisher()
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		ledgerSvc:   p.LedgerSvc,
		auditSvc:    p.AuditSvc,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		publisher:   pub,
		obsMetrics:  p.ObsMetrics,
		clock:       clk,
	}
}

func (s *Service) Record(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.Payment, error) {
	invoiceID, err := parseID("invoice_id", req.InvoiceID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if !req.Amount.IsPositive() {
		return paymentdomain.Payment{}, billingdomain.NewValidationError("amount", paymentdomain.ErrInvalidAmount.Error(), "amount must be greater than zero")
	}
	var slip *string
	if raw := strings.TrimSpace(req.SlipImageURL); raw != "" {
		if err := validateSlipURL(raw); err != nil {
			return paymentdomain.Payment{}, err
		}
		slip = &raw
	}

	now := s.clock.Now().UTC()
	paymentDate := now
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		paymentDate = req.PaymentDate.UTC()
	}

	var payment paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.FindByID(ctx, tx, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return billingdomain.NewNotFoundError("invoice", req.InvoiceID)
		}
		if invoice.Status == invoicedomain.InvoiceStatusCancelled {
			return billingdomain.NewStateError(paymentdomain.ErrInvoiceCancelled.Error(), "payments cannot be recorded against a cancelled invoice")
		}

		payment = paymentdomain.Payment{
			ID:           s.genID.Generate(),
			InvoiceID:    invoice.ID,
			Amount:       req.Amount,
			Reference:    invoiceformat.PaymentReference(),
			SlipImageURL: slip,
			PaymentDate:  paymentDate,
			Status:       paymentdomain.PaymentStatusPending,
			RecordedBy:   actorID(ctx),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}

		metadata := map[string]any{
			"invoice_id": invoice.ID.String(),
			"amount":     payment.Amount.StringFixed(2),
			"reference":  payment.Reference,
		}
		if slip != nil {
			metadata["slip_image_url"] = *slip
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "payment.recorded",
			TargetType: "payment",
			TargetID:   payment.ID.String(),
			Metadata:   metadata,
		})
	})
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	s.obsMetrics.RecordPayment(ctx, "recorded")
	s.publish(ctx, events.New(events.PaymentRecorded, payment.InvoiceID.String(), now, paymentEventData(payment)))
	return payment, nil
}

func (s *Service) AttachSlip(ctx context.Context, id string, req paymentdomain.AttachSlipRequest) (paymentdomain.Payment, error) {
	paymentID, err := parseID("payment_id", id)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	slip := strings.TrimSpace(req.SlipImageURL)
	if err := validateSlipURL(slip); err != nil {
		return paymentdomain.Payment{}, err
	}

	now := s.clock.Now().UTC()
	var payment *paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err = s.repo.FindByID(ctx, tx, paymentID, true)
		if err != nil {
			return err
		}
		if payment == nil {
			return billingdomain.NewNotFoundError("payment", id)
		}
		if payment.Status != paymentdomain.PaymentStatusPending {
			return billingdomain.NewStateError(paymentdomain.ErrPaymentNotPending.Error(), "slips can only be attached to pending payments")
		}
		updated, err := s.repo.UpdateSlip(ctx, tx, payment.ID, slip, now)
		if err != nil {
			return err
		}
		if !updated {
			return billingdomain.NewStateError(paymentdomain.ErrPaymentNotPending.Error(), "slips can only be attached to pending payments")
		}
		payment.SlipImageURL = &slip
		payment.UpdatedAt = now

		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "payment.slip_attached",
			TargetType: "payment",
			TargetID:   payment.ID.String(),
			Metadata:   map[string]any{"slip_image_url": slip},
		})
	})
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	return *payment, nil
}

// Approve confirms a pending payment exactly once, books it in the ledger and
// settles the invoice when approved payments cover its total.
func (s *Service) Approve(ctx context.Context, id string) (paymentdomain.ApprovalResult, error) {
	paymentID, err := parseID("payment_id", id)
	if err != nil {
		return paymentdomain.ApprovalResult{}, err
	}
	approver := "system"
	if actor := actorID(ctx); actor != nil {
		approver = *actor
	}

	now := s.clock.Now().UTC()
	var (
		result  paymentdomain.ApprovalResult
		invoice *invoicedomain.Invoice
		settled bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindByID(ctx, tx, paymentID, true)
		if err != nil {
			return err
		}
		if payment == nil {
			return billingdomain.NewNotFoundError("payment", id)
		}
		if payment.Status == paymentdomain.PaymentStatusApproved {
			return approvedConflict()
		}

		invoice, err = s.invoiceRepo.FindByID(ctx, tx, payment.InvoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return billingdomain.NewNotFoundError("invoice", payment.InvoiceID.String())
		}
		if invoice.Status == invoicedomain.InvoiceStatusCancelled {
			return billingdomain.NewStateError(paymentdomain.ErrInvoiceCancelled.Error(), "payments on a cancelled invoice cannot be approved")
		}

		ok, err := s.repo.Approve(ctx, tx, payment.ID, approver, now)
		if err != nil {
			return err
		}
		if !ok {
			return approvedConflict()
		}
		payment.Status = paymentdomain.PaymentStatusApproved
		payment.ApprovedBy = &approver
		payment.ApprovedAt = &now
		payment.UpdatedAt = now

		if _, err := s.ledgerSvc.PostEntry(ctx, tx, ledgerdomain.EntryRequest{
			ContractID: invoice.ContractID,
			SourceType: ledgerdomain.SourceTypePayment,
			SourceID:   payment.ID,
			OccurredAt: payment.PaymentDate,
			Postings: []ledgerdomain.Posting{
				ledgerdomain.Debit(ledgerdomain.AccountCodeCash, payment.Amount),
				ledgerdomain.Credit(ledgerdomain.AccountCodeAccountsReceivable, payment.Amount),
			},
		}); err != nil {
			return err
		}

		approved, err := s.repo.SumApproved(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if invoice.Status != invoicedomain.InvoiceStatusPaid && approved.GreaterThanOrEqual(invoice.TotalAmount) {
			if err := s.invoiceRepo.UpdateStatus(ctx, tx, invoice.ID, invoicedomain.InvoiceStatusPaid, &now, now); err != nil {
				return err
			}
			invoice.Status = invoicedomain.InvoiceStatusPaid
			invoice.PaidAt = &now
			settled = true
		}

		result = paymentdomain.ApprovalResult{
			Payment:       *payment,
			InvoiceStatus: invoice.Status,
			ApprovedTotal: approved,
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "payment.approved",
			TargetType: "payment",
			TargetID:   payment.ID.String(),
			Metadata: map[string]any{
				"invoice_id":     invoice.ID.String(),
				"amount":         payment.Amount.StringFixed(2),
				"approved_total": approved.StringFixed(2),
				"invoice_paid":   settled,
			},
		})
	})
	if err != nil {
		return paymentdomain.ApprovalResult{}, err
	}

	s.obsMetrics.RecordPayment(ctx, "approved")
	evts := []events.Event{
		events.New(events.PaymentApproved, result.Payment.InvoiceID.String(), now, paymentEventData(result.Payment)),
	}
	if settled {
		s.obsMetrics.RecordInvoiceStatusChange(ctx, string(invoicedomain.InvoiceStatusPaid), 1)
		evts = append(evts, events.New(events.InvoiceStatusUpdated, invoice.RoomID.String(), now, map[string]any{
			"invoice_id": invoice.ID.String(),
			"status":     string(invoicedomain.InvoiceStatusPaid),
		}))
	}
	s.publish(ctx, evts...)
	return result, nil
}

func (s *Service) List(ctx context.Context, req paymentdomain.ListPaymentRequest) ([]paymentdomain.Payment, error) {
	var invoiceID snowflake.ID
	if raw := strings.TrimSpace(req.InvoiceID); raw != "" {
		id, err := parseID("invoice_id", raw)
		if err != nil {
			return nil, err
		}
		invoiceID = id
	}
	status := paymentdomain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	switch status {
	case "", paymentdomain.PaymentStatusPending, paymentdomain.PaymentStatusApproved:
	default:
		return nil, billingdomain.NewValidationError("status", "invalid_status", "status must be pending or approved")
	}
	items, err := s.repo.List(ctx, s.db, invoiceID, status)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []paymentdomain.Payment{}
	}
	return items, nil
}

func (s *Service) publish(ctx context.Context, evts ...events.Event) {
	if err := s.publisher.Publish(ctx, evts...); err != nil {
		s.log.Warn("publish events failed", zap.Error(err))
	}
}

func approvedConflict() error {
	return billingdomain.NewConflictError(paymentdomain.ErrAlreadyApproved.Error(), "payment has already been approved")
}

func paymentEventData(p paymentdomain.Payment) map[string]any {
	return map[string]any{
		"payment_id": p.ID.String(),
		"invoice_id": p.InvoiceID.String(),
		"amount":     p.Amount.StringFixed(2),
		"reference":  p.Reference,
		"status":     string(p.Status),
	}
}

func validateSlipURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return billingdomain.NewValidationError("slip_image_url", paymentdomain.ErrInvalidSlipURL.Error(), "slip_image_url must be an http(s) url")
	}
	return nil
}

func actorID(ctx context.Context) *string {
	actor, ok := actorcontext.FromContext(ctx)
	if !ok || actor.ID == "" {
		return nil
	}
	id := actor.ID
	return &id
}

func parseID(field, raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, billingdomain.NewValidationError(field, "invalid_id", field+" must be a numeric id")
	}
	return id, nil
}

