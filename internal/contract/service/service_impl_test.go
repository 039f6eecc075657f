package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	auditmock "github.com/smallbiznis/rentbill/internal/audit/domain/mock"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/clock"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	contractrepository "github.com/smallbiznis/rentbill/internal/contract/repository"
	contractservice "github.com/smallbiznis/rentbill/internal/contract/service"
	"github.com/smallbiznis/rentbill/internal/events"
	eventsmock "github.com/smallbiznis/rentbill/internal/events/mock"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/rentbill/internal/ledger/service"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	roomrepository "github.com/smallbiznis/rentbill/internal/room/repository"
	"github.com/smallbiznis/rentbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contractDeps struct {
	db        *gorm.DB
	svc       contractdomain.Service
	ledger    ledgerdomain.Service
	audit     *auditmock.MockService
	publisher *eventsmock.MockPublisher
	room      roomdomain.Room
}

func setupContractService(t *testing.T) contractDeps {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	billing := testutil.Billing(t)
	log := zap.NewNop()

	ctrl := gomock.NewController(t)
	audit := auditmock.NewMockService(ctrl)
	publisher := eventsmock.NewMockPublisher(ctrl)
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node, Billing: billing, Clock: clk})

	svc := contractservice.NewService(contractservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      contractrepository.Provide(),
		RoomRepo:  roomrepository.Provide(),
		LedgerSvc: ledger,
		AuditSvc:  audit,
		Publisher: publisher,
		Clock:     clk,
	})

	return contractDeps{
		db:        db,
		svc:       svc,
		ledger:    ledger,
		audit:     audit,
		publisher: publisher,
		room:      testutil.SeedRoom(t, db, node, "401"),
	}
}

func (d contractDeps) reloadRoom(t *testing.T) roomdomain.Room {
	t.Helper()
	var room roomdomain.Room
	require.NoError(t, d.db.First(&room, "id = ?", d.room.ID).Error)
	return room
}

func TestCreateContract(t *testing.T) {
	d := setupContractService(t)
	ctx := context.Background()

	d.audit.EXPECT().
		Record(gomock.Any(), gomock.Any(), gomock.AssignableToTypeOf(auditdomain.Entry{})).
		DoAndReturn(func(_ context.Context, _ *gorm.DB, entry auditdomain.Entry) error {
			assert.Equal(t, "contract.created", entry.Action)
			assert.Equal(t, "10000.00", entry.Metadata["deposit"])
			return nil
		})

	contract, err := d.svc.Create(ctx, contractdomain.CreateContractRequest{
		RoomID:    d.room.ID.String(),
		TenantID:  "tenant-9",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Deposit:   testutil.D("10000"),
	})
	require.NoError(t, err)
	assert.True(t, contract.IsActive)
	assert.True(t, contract.RentAmount.Equal(d.room.BaseRent))

	room := d.reloadRoom(t)
	assert.Equal(t, roomdomain.RoomStatusOccupied, room.Status)
	require.NotNil(t, room.CurrentContractID)
	assert.Equal(t, contract.ID, *room.CurrentContractID)

	balance, err := d.ledger.DepositBalance(ctx, contract.ID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(testutil.D("10000")))

	active, err := d.svc.ActiveForRoom(ctx, d.room.ID.String())
	require.NoError(t, err)
	assert.Equal(t, contract.ID, active.ID)
}

func TestCreateContract_RoomAlreadyLet(t *testing.T) {
	d := setupContractService(t)
	ctx := context.Background()
	d.audit.EXPECT().Record(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	req := contractdomain.CreateContractRequest{
		RoomID:    d.room.ID.String(),
		TenantID:  "tenant-1",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := d.svc.Create(ctx, req)
	require.NoError(t, err)

	req.TenantID = "tenant-2"
	_, err = d.svc.Create(ctx, req)
	assert.True(t, errors.Is(err, billingdomain.ErrConflict))
	assert.Equal(t, contractdomain.ErrRoomHasActiveContract.Error(), billingdomain.Code(err))
}

func TestCreateContract_Validation(t *testing.T) {
	d := setupContractService(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, 0, -1)

	cases := map[string]contractdomain.CreateContractRequest{
		"missing tenant":   {RoomID: d.room.ID.String(), StartDate: start},
		"negative deposit": {RoomID: d.room.ID.String(), TenantID: "t", StartDate: start, Deposit: testutil.D("-5")},
		"missing start":    {RoomID: d.room.ID.String(), TenantID: "t"},
		"end before start": {RoomID: d.room.ID.String(), TenantID: "t", StartDate: start, EndDate: &before},
		"bad room":         {RoomID: "x", TenantID: "t", StartDate: start},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.svc.Create(context.Background(), req)
			assert.True(t, errors.Is(err, billingdomain.ErrValidation), "got %v", err)
		})
	}

	_, err := d.svc.Create(context.Background(), contractdomain.CreateContractRequest{RoomID: "98765", TenantID: "t", StartDate: start})
	assert.True(t, errors.Is(err, billingdomain.ErrNotFound))
}

func TestTerminateContract(t *testing.T) {
	d := setupContractService(t)
	ctx := context.Background()
	d.audit.EXPECT().Record(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	d.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evts ...events.Event) error {
			require.Len(t, evts, 1)
			assert.Equal(t, events.ContractTerminated, evts[0].Type)
			return nil
		})

	contract, err := d.svc.Create(ctx, contractdomain.CreateContractRequest{
		RoomID:    d.room.ID.String(),
		TenantID:  "tenant-1",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	ended, err := d.svc.Terminate(ctx, contract.ID.String())
	require.NoError(t, err)
	assert.False(t, ended.IsActive)
	require.NotNil(t, ended.TerminatedAt)

	room := d.reloadRoom(t)
	assert.Equal(t, roomdomain.RoomStatusVacant, room.Status)
	assert.Nil(t, room.CurrentContractID)

	_, err = d.svc.Terminate(ctx, contract.ID.String())
	assert.True(t, errors.Is(err, billingdomain.ErrState))

	_, err = d.svc.ActiveForRoom(ctx, d.room.ID.String())
	assert.Equal(t, billingdomain.CodeNoActiveContract, billingdomain.Code(err))
}
