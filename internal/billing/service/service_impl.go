package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/billing/engine"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	readingdomain "github.com/smallbiznis/rentbill/internal/meterreading/domain"
	obsmetrics "github.com/smallbiznis/rentbill/internal/observability/metrics"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	RoomRepo     roomdomain.Repository
	ReadingRepo  readingdomain.Repository
	ContractRepo contractdomain.Repository
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	roomRepo     roomdomain.Repository
	readingRepo  readingdomain.Repository
	contractRepo contractdomain.Repository
	metrics      *obsmetrics.Metrics
}

func NewService(p Params) billingdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("billing.service"),
		roomRepo:     p.RoomRepo,
		readingRepo:  p.ReadingRepo,
		contractRepo: p.ContractRepo,
		metrics:      p.ObsMetrics,
	}
}

// Preview prices a period without writing anything. A room without an
// active contract still previews; the result flags it.
func (s *Service) Preview(ctx context.Context, req billingdomain.PreviewRequest) (billingdomain.Calculation, error) {
	calc, err := s.preview(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = billingdomain.Code(err)
	}
	s.metrics.RecordPreview(ctx, outcome)
	return calc, err
}

func (s *Service) preview(ctx context.Context, req billingdomain.PreviewRequest) (billingdomain.Calculation, error) {
	roomID, err := snowflake.ParseString(strings.TrimSpace(req.RoomID))
	if err != nil || roomID <= 0 {
		return billingdomain.Calculation{}, billingdomain.NewValidationError("room_id", "invalid_id", "room_id must be a numeric id")
	}
	period, err := billingdomain.ParsePeriod(req.MonthYear)
	if err != nil {
		return billingdomain.Calculation{}, err
	}
	if req.DepositAmount.IsNegative() {
		return billingdomain.Calculation{}, billingdomain.NewValidationError("deposit_amount", "negative_amount", "deposit_amount cannot be negative")
	}

	room, err := s.roomRepo.FindByID(ctx, s.db, roomID, false)
	if err != nil {
		return billingdomain.Calculation{}, err
	}
	if room == nil {
		return billingdomain.Calculation{}, billingdomain.NewNotFoundError("room", req.RoomID)
	}

	previous, err := PreviousReadings(ctx, s.db, s.readingRepo, roomID, period)
	if err != nil {
		return billingdomain.Calculation{}, err
	}

	calc, err := engine.Calculate(billingdomain.Input{
		Previous: previous,
		Current:  billingdomain.Readings{Water: req.CurrentWater, Elec: req.CurrentElec},
		Rates:    billingdomain.Rates{Water: room.WaterRate, Elec: room.ElecRate},
		BaseRent: room.BaseRent,
		Deposit:  req.DepositAmount,
	})
	if err != nil {
		return billingdomain.Calculation{}, err
	}

	active, err := s.contractRepo.FindActiveByRoom(ctx, s.db, roomID)
	if err != nil {
		return billingdomain.Calculation{}, err
	}

	calc.RoomID = roomID.String()
	calc.MonthYear = period
	calc.HasActiveContract = active != nil
	calc.RequestSeq = req.RequestSeq
	return calc, nil
}

// PreviousReadings is the current reading of the latest period strictly
// before period, or zero for a room's first bill.
func PreviousReadings(ctx context.Context, db *gorm.DB, repo readingdomain.Repository, roomID snowflake.ID, period billingdomain.Period) (billingdomain.Readings, error) {
	last, err := repo.FindLatestBefore(ctx, db, roomID, period)
	if err != nil {
		return billingdomain.Readings{}, err
	}
	if last == nil {
		return billingdomain.Readings{}, nil
	}
	return last.Current(), nil
}
