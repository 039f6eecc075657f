package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/actorcontext"
	auditrepository "github.com/smallbiznis/rentbill/internal/audit/repository"
	auditservice "github.com/smallbiznis/rentbill/internal/audit/service"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/clock"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/rentbill/internal/invoice/repository"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/rentbill/internal/ledger/service"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/rentbill/internal/payment/repository"
	paymentservice "github.com/smallbiznis/rentbill/internal/payment/service"
	"github.com/smallbiznis/rentbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type paymentFixture struct {
	db      *gorm.DB
	svc     paymentdomain.Service
	invoice invoicedomain.Invoice
}

func setupPaymentService(t *testing.T) *paymentFixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC))
	billing := testutil.Billing(t)
	log := zap.NewNop()

	svc := paymentservice.NewService(paymentservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		LedgerSvc:   ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node, Billing: billing, Clock: clk}),
		AuditSvc:    auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditrepository.Provide(), Clock: clk}),
		Repo:        paymentrepository.Provide(),
		InvoiceRepo: invoicerepository.Provide(),
		Clock:       clk,
	})

	room := testutil.SeedRoom(t, db, node, "301")
	contract := testutil.SeedContract(t, db, node, room, "0")
	invoice := seedInvoice(t, db, node, room.ID, contract.ID, "3390")

	return &paymentFixture{db: db, svc: svc, invoice: invoice}
}

func seedInvoice(t *testing.T, db *gorm.DB, node *snowflake.Node, roomID, contractID snowflake.ID, total string) invoicedomain.Invoice {
	t.Helper()
	period, err := billingdomain.ParsePeriod("2024-03")
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	invoice := invoicedomain.Invoice{
		ID:            node.Generate(),
		InvoiceNumber: "INV-TEST-" + node.Generate().String(),
		ContractID:    contractID,
		RoomID:        roomID,
		MonthYear:     period,
		Kind:          invoicedomain.InvoiceKindRegular,
		TotalAmount:   testutil.D(total),
		Status:        invoicedomain.InvoiceStatusPending,
		IssueDate:     now,
		DueDate:       period.DueDate(5),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, db.Omit("Items").Create(&invoice).Error)
	return invoice
}

func (f *paymentFixture) status(t *testing.T) invoicedomain.InvoiceStatus {
	t.Helper()
	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.First(&invoice, "id = ?", f.invoice.ID).Error)
	return invoice.Status
}

func staffContext() context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{ID: "staff-7", Role: actorcontext.RoleStaff})
}

func TestRecord(t *testing.T) {
	f := setupPaymentService(t)
	ctx := staffContext()

	payment, err := f.svc.Record(ctx, paymentdomain.RecordPaymentRequest{
		InvoiceID:    f.invoice.ID.String(),
		Amount:       testutil.D("1000"),
		SlipImageURL: "https://slips.example.com/a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusPending, payment.Status)
	assert.Regexp(t, `^PAY-`, payment.Reference)
	require.NotNil(t, payment.RecordedBy)
	assert.Equal(t, "staff-7", *payment.RecordedBy)

	cases := map[string]paymentdomain.RecordPaymentRequest{
		"zero amount": {InvoiceID: f.invoice.ID.String(), Amount: testutil.D("0")},
		"bad slip":    {InvoiceID: f.invoice.ID.String(), Amount: testutil.D("10"), SlipImageURL: "ftp://x/y"},
		"bad invoice": {InvoiceID: "inv", Amount: testutil.D("10")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Record(ctx, req)
			assert.True(t, errors.Is(err, billingdomain.ErrValidation), "got %v", err)
		})
	}

	_, err = f.svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: "555", Amount: testutil.D("10")})
	assert.True(t, errors.Is(err, billingdomain.ErrNotFound))
}

func TestRecord_CancelledInvoice(t *testing.T) {
	f := setupPaymentService(t)
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Where("id = ?", f.invoice.ID).Update("status", invoicedomain.InvoiceStatusCancelled).Error)

	_, err := f.svc.Record(staffContext(), paymentdomain.RecordPaymentRequest{InvoiceID: f.invoice.ID.String(), Amount: testutil.D("10")})
	assert.True(t, errors.Is(err, billingdomain.ErrState))
	assert.Equal(t, paymentdomain.ErrInvoiceCancelled.Error(), billingdomain.Code(err))
}

func TestApprove_SettlesInvoiceWhenCovered(t *testing.T) {
	f := setupPaymentService(t)
	ctx := staffContext()

	first, err := f.svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: f.invoice.ID.String(), Amount: testutil.D("2000")})
	require.NoError(t, err)
	second, err := f.svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: f.invoice.ID.String(), Amount: testutil.D("1390")})
	require.NoError(t, err)

	result, err := f.svc.Approve(ctx, first.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, result.InvoiceStatus)
	assert.True(t, result.ApprovedTotal.Equal(testutil.D("2000")))
	require.NotNil(t, result.Payment.ApprovedBy)
	assert.Equal(t, "staff-7", *result.Payment.ApprovedBy)

	result, err = f.svc.Approve(ctx, second.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, result.InvoiceStatus)
	assert.True(t, result.ApprovedTotal.Equal(testutil.D("3390")))
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, f.status(t))

	var entries int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).Where("source_type = ?", ledgerdomain.SourceTypePayment).Count(&entries).Error)
	assert.Equal(t, int64(2), entries)
}

func TestApprove_OnlyOnce(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	payment, err := f.svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: f.invoice.ID.String(), Amount: testutil.D("100")})
	require.NoError(t, err)

	result, err := f.svc.Approve(ctx, payment.ID.String())
	require.NoError(t, err)
	require.NotNil(t, result.Payment.ApprovedBy)
	assert.Equal(t, "system", *result.Payment.ApprovedBy)

	_, err = f.svc.Approve(ctx, payment.ID.String())
	assert.True(t, errors.Is(err, billingdomain.ErrConflict))
	assert.Equal(t, paymentdomain.ErrAlreadyApproved.Error(), billingdomain.Code(err))

	_, err = f.svc.AttachSlip(ctx, payment.ID.String(), paymentdomain.AttachSlipRequest{SlipImageURL: "https://slips.example.com/late.jpg"})
	assert.True(t, errors.Is(err, billingdomain.ErrState))
}

func TestAttachSlipAndList(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	payment, err := f.svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: f.invoice.ID.String(), Amount: testutil.D("100")})
	require.NoError(t, err)
	assert.Nil(t, payment.SlipImageURL)

	updated, err := f.svc.AttachSlip(ctx, payment.ID.String(), paymentdomain.AttachSlipRequest{SlipImageURL: "https://slips.example.com/b.png"})
	require.NoError(t, err)
	require.NotNil(t, updated.SlipImageURL)

	_, err = f.svc.AttachSlip(ctx, payment.ID.String(), paymentdomain.AttachSlipRequest{SlipImageURL: "not a url"})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))

	pending, err := f.svc.List(ctx, paymentdomain.ListPaymentRequest{InvoiceID: f.invoice.ID.String(), Status: "pending"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://slips.example.com/b.png", *pending[0].SlipImageURL)

	approved, err := f.svc.List(ctx, paymentdomain.ListPaymentRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Empty(t, approved)

	_, err = f.svc.List(ctx, paymentdomain.ListPaymentRequest{Status: "void"})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))
}
