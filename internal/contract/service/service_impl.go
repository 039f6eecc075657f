package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/clock"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	"github.com/smallbiznis/rentbill/internal/events"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      contractdomain.Repository
	RoomRepo  roomdomain.Repository
	LedgerSvc ledgerdomain.Service
	AuditSvc  auditdomain.Service
	Publisher events.Publisher `optional:"true"`
	Clock     clock.Clock      `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      contractdomain.Repository
	roomRepo  roomdomain.Repository
	ledgerSvc ledgerdomain.Service
	auditSvc  auditdomain.Service
	publisher events.Publisher
	clock     clock.Clock
}

func NewService(p Params) contractdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	pub := p.Publisher
	if pub == nil {
		pub = events.NewNoopPublisher()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("contract.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		roomRepo:  p.RoomRepo,
		ledgerSvc: p.LedgerSvc,
		auditSvc:  p.AuditSvc,
		publisher: pub,
		clock:     clk,
	}
}

// Create opens a contract, marks the room occupied and books the initial
// deposit as a liability.
func (s *Service) Create(ctx context.Context, req contractdomain.CreateContractRequest) (contractdomain.Contract, error) {
	roomID, err := parseID("room_id", req.RoomID)
	if err != nil {
		return contractdomain.Contract{}, err
	}
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		return contractdomain.Contract{}, billingdomain.NewValidationError("tenant_id", "required", "tenant_id is required")
	}
	if req.Deposit.IsNegative() {
		return contractdomain.Contract{}, billingdomain.NewValidationError("deposit", "negative_amount", "deposit cannot be negative")
	}
	if req.RentAmount.IsNegative() {
		return contractdomain.Contract{}, billingdomain.NewValidationError("rent_amount", "negative_amount", "rent_amount cannot be negative")
	}
	if req.StartDate.IsZero() {
		return contractdomain.Contract{}, billingdomain.NewValidationError("start_date", "required", "start_date is required")
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return contractdomain.Contract{}, billingdomain.NewValidationError("end_date", "invalid_range", "end_date is before start_date")
	}

	now := s.clock.Now().UTC()
	var contract contractdomain.Contract
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := s.roomRepo.FindByID(ctx, tx, roomID, true)
		if err != nil {
			return err
		}
		if room == nil {
			return billingdomain.NewNotFoundError("room", req.RoomID)
		}
		active, err := s.repo.FindActiveByRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if active != nil {
			return billingdomain.NewConflictError(contractdomain.ErrRoomHasActiveContract.Error(), "room already has an active contract")
		}

		rent := req.RentAmount
		if rent.IsZero() {
			rent = room.BaseRent
		}
		contract = contractdomain.Contract{
			ID:         s.genID.Generate(),
			RoomID:     roomID,
			TenantID:   tenantID,
			StartDate:  req.StartDate.UTC(),
			EndDate:    req.EndDate,
			Deposit:    req.Deposit,
			RentAmount: rent,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.Insert(ctx, tx, &contract); err != nil {
			return err
		}
		if err := s.roomRepo.UpdateOccupancy(ctx, tx, roomID, roomdomain.RoomStatusOccupied, &contract.ID); err != nil {
			return err
		}
		if contract.Deposit.IsPositive() {
			if _, err := s.ledgerSvc.PostEntry(ctx, tx, ledgerdomain.EntryRequest{
				ContractID: contract.ID,
				SourceType: ledgerdomain.SourceTypeDepositTopup,
				SourceID:   contract.ID,
				OccurredAt: now,
				Postings: []ledgerdomain.Posting{
					ledgerdomain.Debit(ledgerdomain.AccountCodeCash, contract.Deposit),
					ledgerdomain.Credit(ledgerdomain.AccountCodeDepositLiability, contract.Deposit),
				},
			}); err != nil {
				return err
			}
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "contract.created",
			TargetType: "contract",
			TargetID:   contract.ID.String(),
			Metadata: map[string]any{
				"room_id":   roomID.String(),
				"tenant_id": tenantID,
				"deposit":   contract.Deposit.StringFixed(2),
			},
		})
	})
	if err != nil {
		return contractdomain.Contract{}, err
	}
	return contract, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (contractdomain.Contract, error) {
	contractID, err := parseID("contract_id", id)
	if err != nil {
		return contractdomain.Contract{}, err
	}
	contract, err := s.repo.FindByID(ctx, s.db, contractID, false)
	if err != nil {
		return contractdomain.Contract{}, err
	}
	if contract == nil {
		return contractdomain.Contract{}, billingdomain.NewNotFoundError("contract", id)
	}
	return *contract, nil
}

func (s *Service) ActiveForRoom(ctx context.Context, roomID string) (contractdomain.Contract, error) {
	id, err := parseID("room_id", roomID)
	if err != nil {
		return contractdomain.Contract{}, err
	}
	contract, err := s.repo.FindActiveByRoom(ctx, s.db, id)
	if err != nil {
		return contractdomain.Contract{}, err
	}
	if contract == nil {
		return contractdomain.Contract{}, billingdomain.NewNoActiveContractError(roomID)
	}
	return *contract, nil
}

// Terminate ends an active contract outside of a move-out invoice.
func (s *Service) Terminate(ctx context.Context, id string) (contractdomain.Contract, error) {
	contractID, err := parseID("contract_id", id)
	if err != nil {
		return contractdomain.Contract{}, err
	}

	now := s.clock.Now().UTC()
	var contract *contractdomain.Contract
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err = s.repo.FindByID(ctx, tx, contractID, true)
		if err != nil {
			return err
		}
		if contract == nil {
			return billingdomain.NewNotFoundError("contract", id)
		}
		if !contract.IsActive {
			return billingdomain.NewStateError(contractdomain.ErrContractInactive.Error(), "contract is already terminated")
		}
		if err := Deactivate(ctx, tx, s.repo, s.roomRepo, contract, now); err != nil {
			return err
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "contract.terminated",
			TargetType: "contract",
			TargetID:   contract.ID.String(),
			Metadata:   map[string]any{"room_id": contract.RoomID.String()},
		})
	})
	if err != nil {
		return contractdomain.Contract{}, err
	}

	if err := s.publisher.Publish(ctx, events.New(events.ContractTerminated, contract.RoomID.String(), now, map[string]any{
		"contract_id": contract.ID.String(),
		"room_id":     contract.RoomID.String(),
	})); err != nil {
		s.log.Warn("publish contract.terminated failed", zap.Error(err))
	}
	return *contract, nil
}

// Deactivate ends the contract and frees its room inside tx. Move-out invoices
// share it.
func Deactivate(ctx context.Context, tx *gorm.DB, repo contractdomain.Repository, roomRepo roomdomain.Repository, contract *contractdomain.Contract, at time.Time) error {
	if err := repo.Deactivate(ctx, tx, contract.ID, at); err != nil {
		return err
	}
	if err := roomRepo.UpdateOccupancy(ctx, tx, contract.RoomID, roomdomain.RoomStatusVacant, nil); err != nil {
		return err
	}
	contract.IsActive = false
	contract.TerminatedAt = &at
	contract.EndDate = &at
	return nil
}

func parseID(field, raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, billingdomain.NewValidationError(field, "invalid_id", field+" must be a numeric id")
	}
	return id, nil
}

