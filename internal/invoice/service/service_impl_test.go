package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	auditrepository "github.com/smallbiznis/rentbill/internal/audit/repository"
	auditservice "github.com/smallbiznis/rentbill/internal/audit/service"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	contractrepository "github.com/smallbiznis/rentbill/internal/contract/repository"
	"github.com/smallbiznis/rentbill/internal/events"
	eventsmock "github.com/smallbiznis/rentbill/internal/events/mock"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/rentbill/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/rentbill/internal/invoice/service"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/rentbill/internal/ledger/service"
	readingdomain "github.com/smallbiznis/rentbill/internal/meterreading/domain"
	readingrepository "github.com/smallbiznis/rentbill/internal/meterreading/repository"
	paymentrepository "github.com/smallbiznis/rentbill/internal/payment/repository"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	roomrepository "github.com/smallbiznis/rentbill/internal/room/repository"
	"github.com/smallbiznis/rentbill/internal/testutil"
	"github.com/smallbiznis/rentbill/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	ledger   ledgerdomain.Service
	svc      invoicedomain.Service
	room     roomdomain.Room
	contract contractdomain.Contract
}

type fixtureOption struct {
	deposit   string
	publisher events.Publisher
	billing   []func(*config.BillingConfig)
}

func newFixture(t *testing.T, opt fixtureOption) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	billing := testutil.Billing(t, opt.billing...)
	log := zap.NewNop()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node, Billing: billing, Clock: clk})
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditrepository.Provide(), Clock: clk})

	svc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:           db,
		Log:          log,
		GenID:        node,
		Billing:      billing,
		Repo:         invoicerepository.Provide(),
		RoomRepo:     roomrepository.Provide(),
		ContractRepo: contractrepository.Provide(),
		ReadingRepo:  readingrepository.Provide(),
		PaymentRepo:  paymentrepository.Provide(),
		LedgerSvc:    ledgerSvc,
		AuditSvc:     auditSvc,
		Publisher:    opt.publisher,
		Clock:        clk,
	})

	deposit := opt.deposit
	if deposit == "" {
		deposit = "0"
	}
	room := testutil.SeedRoom(t, db, node, "101")
	testutil.SeedReading(t, db, node, room.ID, "2024-02", 100, 200)
	contract := testutil.SeedContract(t, db, node, room, deposit)

	return &fixture{db: db, node: node, clock: clk, ledger: ledgerSvc, svc: svc, room: room, contract: contract}
}

func (f *fixture) request(period string, water, elec int64) invoicedomain.CreateInvoiceRequest {
	return invoicedomain.CreateInvoiceRequest{
		ContractID:   f.contract.ID.String(),
		RoomID:       f.room.ID.String(),
		MonthYear:    period,
		WaterReading: water,
		ElecReading:  elec,
		RecordedBy:   "staff-1",
	}
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func assertTotalMatchesItems(t *testing.T, invoice invoicedomain.Invoice) {
	t.Helper()
	sum := testutil.D("0")
	for _, item := range invoice.Items {
		sum = sum.Add(item.Amount)
	}
	assert.True(t, invoice.TotalAmount.Equal(sum), "total %s != items %s", invoice.TotalAmount, sum)
}

func TestCreate_RegularInvoice(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)

	assert.True(t, invoice.TotalAmount.Equal(testutil.D("3390")))
	assert.Equal(t, invoicedomain.InvoiceStatusPending, invoice.Status)
	assert.Equal(t, invoicedomain.InvoiceKindRegular, invoice.Kind)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), invoice.DueDate)
	assert.True(t, strings.HasPrefix(invoice.InvoiceNumber, "INV-"))
	require.Len(t, invoice.Items, 3)
	assert.True(t, invoice.Item(invoicedomain.ItemTypeWater).Amount.Equal(testutil.D("180")))
	assert.True(t, invoice.Item(invoicedomain.ItemTypeElectric).Amount.Equal(testutil.D("210")))
	assertTotalMatchesItems(t, invoice)

	stored, err := f.svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Len(t, stored.Items, 3)
	assertTotalMatchesItems(t, stored)

	var reading readingdomain.MeterReading
	require.NoError(t, f.db.Where("room_id = ? AND month_year = ?", f.room.ID, "2024-03").First(&reading).Error)
	assert.Equal(t, int64(100), reading.PreviousWater)
	assert.Equal(t, int64(230), reading.CurrentElec)

	var audit auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", "invoice.created").First(&audit).Error)
	require.NotNil(t, audit.TargetID)
	assert.Equal(t, invoice.ID.String(), *audit.TargetID)
}

func TestCreate_SparseUtilityItems(t *testing.T) {
	f := newFixture(t, fixtureOption{billing: []func(*config.BillingConfig){
		func(c *config.BillingConfig) { c.Invoice.SparseUtilityItems = true },
	}})

	invoice, err := f.svc.Create(context.Background(), f.request("2024-03", 100, 230))
	require.NoError(t, err)
	assert.Nil(t, invoice.Item(invoicedomain.ItemTypeWater))
	assert.Len(t, invoice.Items, 2)
	assert.True(t, invoice.TotalAmount.Equal(testutil.D("3210")))
}

func TestCreate_DuplicatePeriodConflicts(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.request("2024-03", 120, 240))
	require.Error(t, err)
	assert.True(t, errors.Is(err, billingdomain.ErrConflict))
	assert.Equal(t, int64(1), f.count(t, &invoicedomain.Invoice{}))
}

func TestCreate_NoActiveContract(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	require.NoError(t, f.db.Model(&contractdomain.Contract{}).Where("id = ?", f.contract.ID).Update("is_active", false).Error)

	_, err := f.svc.Create(context.Background(), f.request("2024-03", 110, 230))
	require.Error(t, err)
	assert.True(t, errors.Is(err, billingdomain.ErrState))
	assert.Equal(t, billingdomain.CodeNoActiveContract, billingdomain.Code(err))
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.Invoice{}))
	assert.Equal(t, int64(1), f.count(t, &readingdomain.MeterReading{}))
}

func TestCreate_MeterRegressionLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, fixtureOption{})

	_, err := f.svc.Create(context.Background(), f.request("2024-03", 90, 230))
	require.Error(t, err)
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.Invoice{}))
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.InvoiceItem{}))
	assert.Equal(t, int64(1), f.count(t, &readingdomain.MeterReading{}))
}

func TestCreate_RejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	cases := map[string]func(*invoicedomain.CreateInvoiceRequest){
		"bad room id":        func(r *invoicedomain.CreateInvoiceRequest) { r.RoomID = "abc" },
		"bad period":         func(r *invoicedomain.CreateInvoiceRequest) { r.MonthYear = "2024-13" },
		"negative reading":   func(r *invoicedomain.CreateInvoiceRequest) { r.WaterReading = -1 },
		"missing recorder":   func(r *invoicedomain.CreateInvoiceRequest) { r.RecordedBy = " " },
		"negative deposit":   func(r *invoicedomain.CreateInvoiceRequest) { r.DepositAmount = testutil.D("-1") },
		"fees without move":  func(r *invoicedomain.CreateInvoiceRequest) { r.CleaningFee = testutil.D("500") },
		"deposit on moveout": func(r *invoicedomain.CreateInvoiceRequest) { r.MoveOut = true; r.DepositAmount = testutil.D("100") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := f.request("2024-03", 110, 230)
			mutate(&req)
			_, err := f.svc.Create(ctx, req)
			assert.True(t, errors.Is(err, billingdomain.ErrValidation), "got %v", err)
		})
	}
}

func TestCreate_MoveOutRefund(t *testing.T) {
	f := newFixture(t, fixtureOption{deposit: "10000"})

	req := f.request("2024-03", 110, 230)
	req.MoveOut = true
	req.CleaningFee = testutil.D("500")

	invoice, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceKindMoveOut, invoice.Kind)
	assert.True(t, invoice.TotalAmount.Equal(testutil.D("3890")))
	assertTotalMatchesItems(t, invoice)

	settlement, ok := invoice.Metadata[invoicedomain.MetadataSettlement].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "6110.00", settlement["refund"])
	assert.Equal(t, "0.00", settlement["tenant_owes"])
	assert.Equal(t, false, settlement["deposit_forfeited"])

	var contract contractdomain.Contract
	require.NoError(t, f.db.First(&contract, "id = ?", f.contract.ID).Error)
	assert.False(t, contract.IsActive)
	require.NotNil(t, contract.TerminatedAt)

	var room roomdomain.Room
	require.NoError(t, f.db.First(&room, "id = ?", f.room.ID).Error)
	assert.Equal(t, roomdomain.RoomStatusVacant, room.Status)
	assert.Nil(t, room.CurrentContractID)

	assert.Equal(t, int64(1), f.count(t, &ledgerdomain.LedgerEntry{}))
}

func TestCreate_MoveOutShortfallKeepsSign(t *testing.T) {
	f := newFixture(t, fixtureOption{deposit: "3000"})

	req := f.request("2024-03", 110, 230)
	req.MoveOut = true

	invoice, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	settlement := invoice.Metadata[invoicedomain.MetadataSettlement].(map[string]any)
	assert.Equal(t, "-390.00", settlement["refund"])
	assert.Equal(t, "390.00", settlement["tenant_owes"])
	assert.Equal(t, true, settlement["deposit_forfeited"])
}

func TestCreate_DepositTopupRaisesHeldDeposit(t *testing.T) {
	f := newFixture(t, fixtureOption{deposit: "0"})
	ctx := context.Background()

	req := f.request("2024-03", 110, 230)
	req.DepositAmount = testutil.D("1500")

	invoice, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.True(t, invoice.TotalAmount.Equal(testutil.D("3390")), "a deposit top-up is never billed")
	assert.Equal(t, "1500.00", invoice.Metadata[invoicedomain.MetadataDepositTopup])

	var contract contractdomain.Contract
	require.NoError(t, f.db.First(&contract, "id = ?", f.contract.ID).Error)
	assert.True(t, contract.Deposit.Equal(testutil.D("1500")))

	balance, err := f.ledger.DepositBalance(ctx, f.contract.ID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(testutil.D("1500")))
}

func TestCreate_PublishesAfterCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := eventsmock.NewMockPublisher(ctrl)
	f := newFixture(t, fixtureOption{publisher: publisher})

	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evts ...events.Event) error {
			require.Len(t, evts, 1)
			assert.Equal(t, events.InvoiceCreated, evts[0].Type)
			assert.Equal(t, f.room.ID.String(), evts[0].Key)
			assert.Equal(t, "3390.00", evts[0].Data["total_amount"])
			return nil
		})

	_, err := f.svc.Create(context.Background(), f.request("2024-03", 110, 230))
	require.NoError(t, err)
}

func TestLateFee_AppliedOnce(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	quote, err := f.svc.ComputeLateFee(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.NotNil(t, quote.LateFee)
	assert.Equal(t, int64(5), quote.LateFee.DaysLate)
	assert.True(t, quote.LateFee.Amount.Equal(testutil.D("250")))

	result, err := f.svc.ApplyLateFee(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.True(t, result.Invoice.TotalAmount.Equal(testutil.D("3640")))
	require.NotNil(t, result.Invoice.Item(invoicedomain.ItemTypeLateFee))
	assertTotalMatchesItems(t, result.Invoice)

	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.ApplyLateFee(ctx, invoice.ID.String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, billingdomain.ErrConflict))
	assert.Equal(t, invoicedomain.ErrLateFeeApplied.Error(), billingdomain.Code(err))

	stored, err := f.svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(testutil.D("3640")))
	assertTotalMatchesItems(t, stored)
}

func TestLateFee_NotDueOnDueDay(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	quote, err := f.svc.ComputeLateFee(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Nil(t, quote.LateFee)

	_, err = f.svc.ApplyLateFee(ctx, invoice.ID.String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, billingdomain.ErrState))
	assert.Equal(t, invoicedomain.ErrInvoiceNotOverdue.Error(), billingdomain.Code(err))
}

func TestLateFee_ClosedInvoiceRejected(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, invoice.ID.String(), "paid")
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
	quote, err := f.svc.ComputeLateFee(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Nil(t, quote.LateFee)

	_, err = f.svc.ApplyLateFee(ctx, invoice.ID.String())
	assert.True(t, errors.Is(err, billingdomain.ErrState))
	assert.Equal(t, invoicedomain.ErrInvoiceClosed.Error(), billingdomain.Code(err))
}

func TestUpdateStatus_TracksPaidAt(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)

	paid, err := f.svc.UpdateStatus(ctx, invoice.ID.String(), "PAID")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	reopened, err := f.svc.UpdateStatus(ctx, invoice.ID.String(), "pending")
	require.NoError(t, err)
	assert.Nil(t, reopened.PaidAt)

	_, err = f.svc.UpdateStatus(ctx, invoice.ID.String(), "refunded")
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))

	_, err = f.svc.UpdateStatus(ctx, "12345", "paid")
	assert.True(t, errors.Is(err, billingdomain.ErrNotFound))
}

func TestBulkUpdateStatus_ReportsPerInvoice(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)
	id := invoice.ID.String()

	report, err := f.svc.BulkUpdateStatus(ctx, invoicedomain.BulkUpdateStatusRequest{
		InvoiceIDs: []string{id, "999", "abc", id},
		Status:     "cancelled",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpdatedCount)
	require.Len(t, report.Results, 3)

	assert.True(t, report.Results[0].OK)
	assert.False(t, report.Results[1].OK)
	assert.Equal(t, "invoice_not_found", report.Results[1].ErrorCode)
	assert.Equal(t, "invalid_id", report.Results[2].ErrorCode)

	stored, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, stored.Status)

	_, err = f.svc.BulkUpdateStatus(ctx, invoicedomain.BulkUpdateStatusRequest{InvoiceIDs: []string{" "}, Status: "paid"})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))
}

func TestDelete_RemovesInvoiceAndReading(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, invoice.ID.String()))
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.Invoice{}))
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.InvoiceItem{}))
	assert.Equal(t, int64(1), f.count(t, &readingdomain.MeterReading{}))

	err = f.svc.Delete(ctx, invoice.ID.String())
	assert.True(t, errors.Is(err, billingdomain.ErrNotFound))

	again, err := f.svc.Create(ctx, f.request("2024-03", 112, 231))
	require.NoError(t, err)
	assert.True(t, again.TotalAmount.Equal(testutil.D("3433")))
}

func TestMarkOverdueThenApplyLateFees(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)

	marked, err := f.svc.MarkOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, marked)

	f.clock.Set(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	marked, err = f.svc.MarkOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	applied, err := f.svc.ApplyLateFees(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = f.svc.ApplyLateFees(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	stored, err := f.svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, stored.Status)
	assert.True(t, stored.TotalAmount.Equal(testutil.D("3640")))
}

func TestList_FiltersAndPages(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.svc.Create(ctx, f.request("2024-04", 120, 240))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, first.ID.String(), "paid")
	require.NoError(t, err)

	pending, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, pending.Invoices, 1)
	assert.Equal(t, "2024-04", pending.Invoices[0].MonthYear.String())

	page, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{RoomID: f.room.ID.String()})
	require.NoError(t, err)
	assert.Len(t, page.Invoices, 2)

	firstPage, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{
		ContractID: f.contract.ID.String(),
		Pagination: pagination.Pagination{PageSize: 1},
	})
	require.NoError(t, err)
	require.Len(t, firstPage.Invoices, 1)
	assert.True(t, firstPage.HasMore)
	assert.Equal(t, "2024-04", firstPage.Invoices[0].MonthYear.String())

	secondPage, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{
		ContractID: f.contract.ID.String(),
		Pagination: pagination.Pagination{PageSize: 1, PageToken: firstPage.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, secondPage.Invoices, 1)
	assert.Equal(t, first.ID, secondPage.Invoices[0].ID)
	assert.False(t, secondPage.HasMore)

	_, err = f.svc.List(ctx, invoicedomain.ListInvoiceRequest{MonthYear: "March"})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))
}

func TestRenderPDF(t *testing.T) {
	f := newFixture(t, fixtureOption{})
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.request("2024-03", 110, 230))
	require.NoError(t, err)

	rendered, err := f.svc.RenderPDF(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rendered.Filename, ".pdf"))
	assert.True(t, bytes.HasPrefix(rendered.Content, []byte("%PDF")))
}
