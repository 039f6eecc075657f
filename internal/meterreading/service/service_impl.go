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
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/events"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	readingdomain "github.com/smallbiznis/rentbill/internal/meterreading/domain"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        readingdomain.Repository
	RoomRepo    roomdomain.Repository
	InvoiceRepo invoicedomain.Repository
	AuditSvc    auditdomain.Service
	Publisher   events.Publisher `optional:"true"`
	Clock       clock.Clock      `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        readingdomain.Repository
	roomRepo    roomdomain.Repository
	invoiceRepo invoicedomain.Repository
	auditSvc    auditdomain.Service
	publisher   events.Publisher
	clock       clock.Clock
}

func NewService(p Params) readingdomain.Service {
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
		log:         p.Log.Named("meterreading.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		roomRepo:    p.RoomRepo,
		invoiceRepo: p.InvoiceRepo,
		auditSvc:    p.AuditSvc,
		publisher:   pub,
		clock:       clk,
	}
}

// Latest returns a zero reading when the room has never been read, so the
// caller can prefill previous values unconditionally.
func (s *Service) Latest(ctx context.Context, roomID string) (readingdomain.MeterReading, error) {
	id, err := parseID("room_id", roomID)
	if err != nil {
		return readingdomain.MeterReading{}, err
	}
	room, err := s.roomRepo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return readingdomain.MeterReading{}, err
	}
	if room == nil {
		return readingdomain.MeterReading{}, billingdomain.NewNotFoundError("room", roomID)
	}
	reading, err := s.repo.FindLatest(ctx, s.db, id)
	if err != nil {
		return readingdomain.MeterReading{}, err
	}
	if reading == nil {
		return readingdomain.MeterReading{RoomID: id}, nil
	}
	return *reading, nil
}

func (s *Service) List(ctx context.Context, req readingdomain.ListReadingRequest) ([]readingdomain.MeterReading, error) {
	var roomID snowflake.ID
	if raw := strings.TrimSpace(req.RoomID); raw != "" {
		id, err := parseID("room_id", raw)
		if err != nil {
			return nil, err
		}
		roomID = id
	}
	period := ""
	if raw := strings.TrimSpace(req.MonthYear); raw != "" {
		p, err := billingdomain.ParsePeriod(raw)
		if err != nil {
			return nil, err
		}
		period = p.String()
	}
	return s.repo.List(ctx, s.db, roomID, period)
}

// Correct rewrites the current readings of one period and reprices the
// linked invoice while it is still open.
func (s *Service) Correct(ctx context.Context, id string, req readingdomain.CorrectReadingRequest) (readingdomain.CorrectionResult, error) {
	readingID, err := parseID("reading_id", id)
	if err != nil {
		return readingdomain.CorrectionResult{}, err
	}

	now := s.clock.Now().UTC()
	var result readingdomain.CorrectionResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reading, err := s.repo.FindByID(ctx, tx, readingID, true)
		if err != nil {
			return err
		}
		if reading == nil {
			return billingdomain.NewNotFoundError("meter_reading", id)
		}

		later, err := s.repo.ExistsAfter(ctx, tx, reading.RoomID, reading.MonthYear)
		if err != nil {
			return err
		}
		if later {
			return billingdomain.NewConflictError(readingdomain.ErrLaterReadingExists.Error(),
				"a later period already derives its previous reading from this one")
		}

		room, err := s.roomRepo.FindByID(ctx, tx, reading.RoomID, false)
		if err != nil {
			return err
		}
		if room == nil {
			return billingdomain.NewNotFoundError("room", reading.RoomID.String())
		}

		invoice, err := s.invoiceRepo.FindByRoomPeriod(ctx, tx, reading.RoomID, reading.MonthYear, true)
		if err != nil {
			return err
		}

		input := billingdomain.Input{
			Previous: reading.Previous(),
			Current:  billingdomain.Readings{Water: req.CurrentWater, Elec: req.CurrentElec},
			Rates:    billingdomain.Rates{Water: room.WaterRate, Elec: room.ElecRate},
			BaseRent: room.BaseRent,
		}
		if invoice != nil {
			if invoice.Kind == invoicedomain.InvoiceKindMoveOut || !invoice.Status.Open() {
				return billingdomain.NewStateError(readingdomain.ErrInvoiceSettled.Error(),
					"the invoice for this period is settled and cannot be repriced")
			}
			// Keep the rates the invoice was issued with.
			if item := invoice.Item(invoicedomain.ItemTypeWater); item != nil {
				input.Rates.Water = item.UnitAmount
			}
			if item := invoice.Item(invoicedomain.ItemTypeElectric); item != nil {
				input.Rates.Elec = item.UnitAmount
			}
			if item := invoice.Item(invoicedomain.ItemTypeRent); item != nil {
				input.BaseRent = item.Amount
			}
		}

		calc, err := engine.Calculate(input)
		if err != nil {
			return err
		}
		calc.RoomID = reading.RoomID.String()
		calc.MonthYear = reading.MonthYear
		calc.HasActiveContract = room.CurrentContractID != nil

		previous := reading.Current()
		if err := s.repo.UpdateCurrent(ctx, tx, reading.ID, input.Current, now); err != nil {
			return err
		}
		reading.CurrentWater = input.Current.Water
		reading.CurrentElec = input.Current.Elec
		reading.UpdatedAt = now

		if invoice != nil {
			if err := s.repriceUtilities(ctx, tx, invoice, reading, input.Rates, now); err != nil {
				return err
			}
		}

		result = readingdomain.CorrectionResult{Reading: *reading, Calculation: calc, Invoice: invoice}

		metadata := map[string]any{
			"room_id":        reading.RoomID.String(),
			"month_year":     reading.MonthYear.String(),
			"previous_water": previous.Water,
			"previous_elec":  previous.Elec,
			"current_water":  reading.CurrentWater,
			"current_elec":   reading.CurrentElec,
		}
		if invoice != nil {
			metadata["invoice_id"] = invoice.ID.String()
			metadata["total_amount"] = invoice.TotalAmount.StringFixed(2)
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "meter_reading.corrected",
			TargetType: "meter_reading",
			TargetID:   reading.ID.String(),
			Metadata:   metadata,
		})
	})
	if err != nil {
		return readingdomain.CorrectionResult{}, err
	}

	data := map[string]any{
		"reading_id":    result.Reading.ID.String(),
		"room_id":       result.Reading.RoomID.String(),
		"month_year":    result.Reading.MonthYear.String(),
		"current_water": result.Reading.CurrentWater,
		"current_elec":  result.Reading.CurrentElec,
	}
	if result.Invoice != nil {
		data["invoice_id"] = result.Invoice.ID.String()
	}
	if err := s.publisher.Publish(ctx, events.New(events.ReadingCorrected, result.Reading.RoomID.String(), now, data)); err != nil {
		s.log.Warn("publish meter_reading.corrected failed", zap.Error(err))
	}
	return result, nil
}

func (s *Service) repriceUtilities(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, reading *readingdomain.MeterReading, rates billingdomain.Rates, now time.Time) error {
	lines := []struct {
		itemType invoicedomain.ItemType
		previous int64
		current  int64
		rate     decimal.Decimal
	}{
		{invoicedomain.ItemTypeWater, reading.PreviousWater, reading.CurrentWater, rates.Water},
		{invoicedomain.ItemTypeElectric, reading.PreviousElec, reading.CurrentElec, rates.Elec},
	}
	for _, line := range lines {
		priced := invoicedomain.UtilityItem(line.itemType, line.previous, line.current, line.rate)
		if existing := invoice.Item(line.itemType); existing != nil {
			existing.Description = priced.Description
			existing.Quantity = priced.Quantity
			existing.UnitAmount = priced.UnitAmount
			existing.Amount = priced.Amount
			if err := s.invoiceRepo.UpdateItem(ctx, tx, existing); err != nil {
				return err
			}
			continue
		}
		if priced.Amount.IsZero() {
			continue
		}
		priced.ID = s.genID.Generate()
		priced.InvoiceID = invoice.ID
		priced.Position = len(invoice.Items)
		priced.CreatedAt = now
		if err := s.invoiceRepo.InsertItem(ctx, tx, &priced); err != nil {
			return err
		}
		invoice.Items = append(invoice.Items, priced)
	}

	invoice.RecomputeTotal()
	invoice.UpdatedAt = now
	return s.invoiceRepo.UpdateTotal(ctx, tx, invoice.ID, invoice.TotalAmount, now)
}

func parseID(field, raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, billingdomain.NewValidationError(field, "invalid_id", field+" must be a numeric id")
	}
	return id, nil
}
