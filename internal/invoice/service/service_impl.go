package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/billing/engine"
	billingservice "github.com/smallbiznis/rentbill/internal/billing/service"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	contractservice "github.com/smallbiznis/rentbill/internal/contract/service"
	"github.com/smallbiznis/rentbill/internal/events"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	invoiceformat "github.com/smallbiznis/rentbill/internal/invoice/format"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	readingdomain "github.com/smallbiznis/rentbill/internal/meterreading/domain"
	obsmetrics "github.com/smallbiznis/rentbill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
	"github.com/smallbiznis/rentbill/internal/providers/pdf"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	"github.com/smallbiznis/rentbill/pkg/db"
	"github.com/smallbiznis/rentbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Billing      *config.BillingConfigHolder
	Repo         invoicedomain.Repository
	RoomRepo     roomdomain.Repository
	ContractRepo contractdomain.Repository
	ReadingRepo  readingdomain.Repository
	PaymentRepo  paymentdomain.Repository
	LedgerSvc    ledgerdomain.Service
	AuditSvc     auditdomain.Service
	PDF          pdf.Provider        `optional:"true"`
	Publisher    events.Publisher    `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
	Clock        clock.Clock         `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	billing      *config.BillingConfigHolder
	repo         invoicedomain.Repository
	roomRepo     roomdomain.Repository
	contractRepo contractdomain.Repository
	readingRepo  readingdomain.Repository
	paymentRepo  paymentdomain.Repository
	ledgerSvc    ledgerdomain.Service
	auditSvc     auditdomain.Service
	pdf          pdf.Provider
	publisher    events.Publisher
	metrics      *obsmetrics.Metrics
	clock        clock.Clock
}

func NewService(p ServiceParam) invoicedomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	pub := p.Publisher
	if pub == nil {
		pub = events.NewNoopPublisher()
	}
	renderer := p.PDF
	if renderer == nil {
		renderer = pdf.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		billing:      p.Billing,
		repo:         p.Repo,
		roomRepo:     p.RoomRepo,
		contractRepo: p.ContractRepo,
		readingRepo:  p.ReadingRepo,
		paymentRepo:  p.PaymentRepo,
		ledgerSvc:    p.LedgerSvc,
		auditSvc:     p.AuditSvc,
		pdf:          renderer,
		publisher:    pub,
		metrics:      p.ObsMetrics,
		clock:        clk,
	}
}

type createInput struct {
	contractID snowflake.ID
	roomID     snowflake.ID
	period     billingdomain.Period
	current    billingdomain.Readings
	recordedBy string
	deposit    decimal.Decimal
	moveOut    bool
	cleaning   decimal.Decimal
	damage     decimal.Decimal
}

func validateCreate(req invoicedomain.CreateInvoiceRequest) (createInput, error) {
	contractID, err := parseID("contract_id", req.ContractID)
	if err != nil {
		return createInput{}, err
	}
	roomID, err := parseID("room_id", req.RoomID)
	if err != nil {
		return createInput{}, err
	}
	period, err := billingdomain.ParsePeriod(req.MonthYear)
	if err != nil {
		return createInput{}, err
	}
	if req.WaterReading < 0 {
		return createInput{}, billingdomain.NewValidationError("water_reading", "invalid_reading", "reading must not be negative")
	}
	if req.ElecReading < 0 {
		return createInput{}, billingdomain.NewValidationError("elec_reading", "invalid_reading", "reading must not be negative")
	}
	recordedBy := strings.TrimSpace(req.RecordedBy)
	if recordedBy == "" {
		return createInput{}, billingdomain.NewValidationError("recorded_by", "required", "recorded_by is required")
	}
	amounts := []struct {
		field  string
		amount decimal.Decimal
	}{
		{"deposit_amount", req.DepositAmount},
		{"cleaning_fee", req.CleaningFee},
		{"damage_fee", req.DamageFee},
	}
	for _, a := range amounts {
		if a.amount.IsNegative() {
			return createInput{}, billingdomain.NewValidationError(a.field, "negative_amount", a.field+" cannot be negative")
		}
	}
	if req.MoveOut && req.DepositAmount.IsPositive() {
		return createInput{}, billingdomain.NewValidationError("deposit_amount", invoicedomain.ErrDepositWithMoveOut.Error(), "a deposit top-up cannot be collected on a move-out invoice")
	}
	if !req.MoveOut && (req.CleaningFee.IsPositive() || req.DamageFee.IsPositive()) {
		return createInput{}, billingdomain.NewValidationError("move_out", "fees_require_move_out", "cleaning and damage fees apply to move-out invoices only")
	}
	return createInput{
		contractID: contractID,
		roomID:     roomID,
		period:     period,
		current:    billingdomain.Readings{Water: req.WaterReading, Elec: req.ElecReading},
		recordedBy: recordedBy,
		deposit:    req.DepositAmount,
		moveOut:    req.MoveOut,
		cleaning:   req.CleaningFee,
		damage:     req.DamageFee,
	}, nil
}

// Create records the reading and issues the invoice for one room period.
// Every write, including ledger postings and contract termination on
// move-out, commits or rolls back together.
func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	in, err := validateCreate(req)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	cfg := s.billing.Get()
	now := s.clock.Now().UTC()

	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := s.roomRepo.FindByID(ctx, tx, in.roomID, true)
		if err != nil {
			return err
		}
		if room == nil {
			return billingdomain.NewNotFoundError("room", in.roomID.String())
		}
		contract, err := s.contractRepo.FindByID(ctx, tx, in.contractID, true)
		if err != nil {
			return err
		}
		if contract == nil {
			return billingdomain.NewNotFoundError("contract", in.contractID.String())
		}
		if !contract.IsActive || contract.RoomID != room.ID {
			return billingdomain.NewNoActiveContractError(room.ID.String())
		}

		existing, err := s.repo.FindByRoomPeriod(ctx, tx, room.ID, in.period, false)
		if err != nil {
			return err
		}
		if existing != nil {
			return billingdomain.NewConflictError(invoicedomain.ErrInvoiceExists.Error(), "an invoice already exists for this room and period")
		}

		previous, err := billingservice.PreviousReadings(ctx, tx, s.readingRepo, room.ID, in.period)
		if err != nil {
			return err
		}
		calc, err := engine.Calculate(billingdomain.Input{
			Previous: previous,
			Current:  in.current,
			Rates:    billingdomain.Rates{Water: room.WaterRate, Elec: room.ElecRate},
			BaseRent: room.BaseRent,
			Deposit:  in.deposit,
		})
		if err != nil {
			return err
		}

		reading := readingdomain.MeterReading{
			ID:            s.genID.Generate(),
			RoomID:        room.ID,
			MonthYear:     in.period,
			PreviousWater: previous.Water,
			PreviousElec:  previous.Elec,
			CurrentWater:  in.current.Water,
			CurrentElec:   in.current.Elec,
			RecordedBy:    in.recordedBy,
			ReadingDate:   now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.readingRepo.Insert(ctx, tx, &reading); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return billingdomain.NewConflictError(invoicedomain.ErrReadingExists.Error(), "a meter reading already exists for this room and period")
			}
			return err
		}

		invoice = invoicedomain.Invoice{
			ID:            s.genID.Generate(),
			InvoiceNumber: invoiceformat.InvoiceNumber(),
			ContractID:    contract.ID,
			RoomID:        room.ID,
			MonthYear:     in.period,
			Kind:          invoicedomain.InvoiceKindRegular,
			Status:        invoicedomain.InvoiceStatusPending,
			IssueDate:     now,
			DueDate:       in.period.DueDate(cfg.LateFee.DueDay),
			Metadata: datatypes.JSONMap{
				invoicedomain.MetadataReadingID:  reading.ID.String(),
				invoicedomain.MetadataRecordedBy: in.recordedBy,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		invoice.Items = s.buildItems(invoice.ID, reading, calc, in, cfg.Invoice.SparseUtilityItems, now)
		invoice.RecomputeTotal()

		var settlement billingdomain.Settlement
		if in.moveOut {
			invoice.Kind = invoicedomain.InvoiceKindMoveOut
			settlement = engine.Settle(billingdomain.SettlementInput{
				PeriodTotal: calc.TotalAmount,
				CleaningFee: in.cleaning,
				DamageFee:   in.damage,
				Deposit:     contract.Deposit,
			})
			invoice.Metadata[invoicedomain.MetadataSettlement] = settlementMetadata(settlement)
		}
		if in.deposit.IsPositive() {
			invoice.Metadata[invoicedomain.MetadataDepositTopup] = in.deposit.StringFixed(2)
		}

		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return billingdomain.NewConflictError(invoicedomain.ErrInvoiceExists.Error(), "an invoice already exists for this room and period")
			}
			return err
		}

		if in.deposit.IsPositive() {
			if err := s.postDepositTopup(ctx, tx, &invoice, contract, in.deposit, now); err != nil {
				return err
			}
		}
		if in.moveOut {
			if err := s.postSettlement(ctx, tx, &invoice, settlement, calc.Costs, now); err != nil {
				return err
			}
			if err := contractservice.Deactivate(ctx, tx, s.contractRepo, s.roomRepo, contract, now); err != nil {
				return err
			}
		}

		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "invoice.created",
			TargetType: "invoice",
			TargetID:   invoice.ID.String(),
			Metadata: map[string]any{
				"invoice_number": invoice.InvoiceNumber,
				"room_id":        room.ID.String(),
				"contract_id":    contract.ID.String(),
				"month_year":     in.period.String(),
				"kind":           string(invoice.Kind),
				"total_amount":   invoice.TotalAmount.StringFixed(2),
			},
		})
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.metrics.RecordInvoiceCreated(ctx, string(invoice.Kind))
	s.publish(ctx, events.New(events.InvoiceCreated, invoice.RoomID.String(), now, invoiceEventData(invoice)))
	return invoice, nil
}

func (s *Service) buildItems(invoiceID snowflake.ID, reading readingdomain.MeterReading, calc billingdomain.Calculation, in createInput, sparse bool, now time.Time) []invoicedomain.InvoiceItem {
	items := []invoicedomain.InvoiceItem{
		invoicedomain.FlatItem(invoicedomain.ItemTypeRent, "Rent "+in.period.String(), calc.Costs.Rent),
	}
	water := invoicedomain.UtilityItem(invoicedomain.ItemTypeWater, reading.PreviousWater, reading.CurrentWater, calc.Rates.Water)
	elec := invoicedomain.UtilityItem(invoicedomain.ItemTypeElectric, reading.PreviousElec, reading.CurrentElec, calc.Rates.Elec)
	for _, item := range []invoicedomain.InvoiceItem{water, elec} {
		if sparse && item.Amount.IsZero() {
			continue
		}
		items = append(items, item)
	}
	if in.moveOut {
		if in.cleaning.IsPositive() {
			items = append(items, invoicedomain.FlatItem(invoicedomain.ItemTypeCleaning, "Cleaning fee", in.cleaning))
		}
		if in.damage.IsPositive() {
			items = append(items, invoicedomain.FlatItem(invoicedomain.ItemTypeDamage, "Damage fee", in.damage))
		}
	}
	for i := range items {
		items[i].ID = s.genID.Generate()
		items[i].InvoiceID = invoiceID
		items[i].Position = i
		items[i].CreatedAt = now
	}
	return items
}

func settlementMetadata(st billingdomain.Settlement) map[string]any {
	return map[string]any{
		"period_total":      st.PeriodTotal.StringFixed(2),
		"cleaning_fee":      st.CleaningFee.StringFixed(2),
		"damage_fee":        st.DamageFee.StringFixed(2),
		"total_deductions":  st.TotalDeductions.StringFixed(2),
		"deposit":           st.Deposit.StringFixed(2),
		"refund":            st.Refund.StringFixed(2),
		"tenant_owes":       st.TenantOwes.StringFixed(2),
		"deposit_forfeited": st.DepositForfeited,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoiceID, err := parseID("invoice_id", id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, invoiceID, false)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil {
		return invoicedomain.Invoice{}, billingdomain.NewNotFoundError("invoice", id)
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	filter := invoicedomain.ListFilter{Limit: req.Limit()}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := invoicedomain.InvoiceStatus(strings.ToLower(raw))
		if !status.Valid() {
			return invoicedomain.ListInvoiceResponse{}, billingdomain.NewValidationError("status", invoicedomain.ErrInvalidStatus.Error(), "unknown invoice status")
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(req.MonthYear); raw != "" {
		period, err := billingdomain.ParsePeriod(raw)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		filter.MonthYear = period.String()
	}
	if raw := strings.TrimSpace(req.ContractID); raw != "" {
		id, err := parseID("contract_id", raw)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		filter.ContractID = id
	}
	if raw := strings.TrimSpace(req.RoomID); raw != "" {
		id, err := parseID("room_id", raw)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		filter.RoomID = id
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := decodeCursor(token)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		filter.Cursor = cursor
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	page, info := pagination.Page(items, filter.Limit, func(item invoicedomain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt.Format(time.RFC3339Nano)}
	})
	if page == nil {
		page = []invoicedomain.Invoice{}
	}
	return invoicedomain.ListInvoiceResponse{PageInfo: info, Invoices: page}, nil
}

func decodeCursor(token string) (*invoicedomain.InvoiceCursor, error) {
	invalid := billingdomain.NewValidationError("page_token", pagination.ErrInvalidPageToken.Error(), "page_token is invalid")
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, invalid
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, invalid
	}
	id, err := snowflake.ParseString(decoded.ID)
	if err != nil || id == 0 {
		return nil, invalid
	}
	return &invoicedomain.InvoiceCursor{ID: id, CreatedAt: createdAt}, nil
}

func (s *Service) publish(ctx context.Context, evts ...events.Event) {
	if err := s.publisher.Publish(ctx, evts...); err != nil {
		s.log.Warn("publish events failed", zap.Int("count", len(evts)), zap.Error(err))
	}
}

func invoiceEventData(invoice invoicedomain.Invoice) map[string]any {
	return map[string]any{
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"room_id":        invoice.RoomID.String(),
		"contract_id":    invoice.ContractID.String(),
		"month_year":     invoice.MonthYear.String(),
		"kind":           string(invoice.Kind),
		"status":         string(invoice.Status),
		"total_amount":   invoice.TotalAmount.StringFixed(2),
	}
}

func parseID(field, raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, billingdomain.NewValidationError(field, "invalid_id", field+" must be a numeric id")
	}
	return id, nil
}
