package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/clock"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	"github.com/smallbiznis/rentbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  roomdomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  roomdomain.Repository
	clock clock.Clock
}

func NewService(p Params) roomdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("room.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Create(ctx context.Context, req roomdomain.CreateRoomRequest) (roomdomain.Room, error) {
	number := strings.TrimSpace(req.Number)
	if number == "" {
		return roomdomain.Room{}, billingdomain.NewValidationError("number", "required", "room number is required")
	}
	if err := nonNegative("base_rent", req.BaseRent); err != nil {
		return roomdomain.Room{}, err
	}
	if err := nonNegative("water_rate", req.WaterRate); err != nil {
		return roomdomain.Room{}, err
	}
	if err := nonNegative("elec_rate", req.ElecRate); err != nil {
		return roomdomain.Room{}, err
	}

	now := s.clock.Now().UTC()
	room := roomdomain.Room{
		ID:        s.genID.Generate(),
		Number:    number,
		Building:  strings.TrimSpace(req.Building),
		BaseRent:  req.BaseRent,
		WaterRate: req.WaterRate,
		ElecRate:  req.ElecRate,
		Status:    roomdomain.RoomStatusVacant,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &room); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return roomdomain.Room{}, billingdomain.NewConflictError(roomdomain.ErrRoomNumberTaken.Error(), "room number already exists in building")
		}
		return roomdomain.Room{}, err
	}
	s.log.Info("room created", zap.String("room_id", room.ID.String()), zap.String("number", room.Number))
	return room, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (roomdomain.Room, error) {
	roomID, err := parseID("room_id", id)
	if err != nil {
		return roomdomain.Room{}, err
	}
	room, err := s.repo.FindByID(ctx, s.db, roomID, false)
	if err != nil {
		return roomdomain.Room{}, err
	}
	if room == nil {
		return roomdomain.Room{}, billingdomain.NewNotFoundError("room", id)
	}
	return *room, nil
}

func (s *Service) List(ctx context.Context, req roomdomain.ListRoomRequest) ([]roomdomain.Room, error) {
	status := roomdomain.RoomStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if status != "" && !status.Valid() {
		return nil, billingdomain.NewValidationError("status", "invalid_status", "unknown room status")
	}
	return s.repo.List(ctx, s.db, status)
}

func nonNegative(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return billingdomain.NewValidationError(field, "negative_amount", field+" cannot be negative")
	}
	return nil
}

func parseID(field, raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, billingdomain.NewValidationError(field, "invalid_id", field+" must be a numeric id")
	}
	return id, nil
}
