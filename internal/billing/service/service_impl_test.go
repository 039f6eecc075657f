package service_test

import (
	"context"
	"errors"
	"testing"

	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	billingservice "github.com/smallbiznis/rentbill/internal/billing/service"
	contractrepository "github.com/smallbiznis/rentbill/internal/contract/repository"
	readingrepository "github.com/smallbiznis/rentbill/internal/meterreading/repository"
	roomrepository "github.com/smallbiznis/rentbill/internal/room/repository"
	"github.com/smallbiznis/rentbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPreview(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.Node(t)
	svc := billingservice.NewService(billingservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		RoomRepo:     roomrepository.Provide(),
		ReadingRepo:  readingrepository.Provide(),
		ContractRepo: contractrepository.Provide(),
	})

	room := testutil.SeedRoom(t, db, node, "101")
	testutil.SeedReading(t, db, node, room.ID, "2024-02", 100, 200)
	ctx := context.Background()

	req := billingdomain.PreviewRequest{
		RoomID:       room.ID.String(),
		CurrentWater: 110,
		CurrentElec:  230,
		MonthYear:    "2024-03",
		RequestSeq:   7,
	}
	calc, err := svc.Preview(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, billingdomain.Readings{Water: 10, Elec: 30}, calc.Usage)
	assert.True(t, calc.Costs.Water.Equal(testutil.D("180")))
	assert.True(t, calc.Costs.Elec.Equal(testutil.D("210")))
	assert.True(t, calc.TotalAmount.Equal(testutil.D("3390")))
	assert.False(t, calc.HasActiveContract)
	assert.Equal(t, uint64(7), calc.RequestSeq)

	testutil.SeedContract(t, db, node, room, "0")
	again, err := svc.Preview(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.HasActiveContract)
	assert.True(t, again.TotalAmount.Equal(calc.TotalAmount))

	first, err := svc.Preview(ctx, billingdomain.PreviewRequest{RoomID: room.ID.String(), CurrentWater: 5, CurrentElec: 5, MonthYear: "2024-01"})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.Readings{}, first.PrevReadings)
}

func TestPreview_Errors(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.Node(t)
	svc := billingservice.NewService(billingservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		RoomRepo:     roomrepository.Provide(),
		ReadingRepo:  readingrepository.Provide(),
		ContractRepo: contractrepository.Provide(),
	})
	room := testutil.SeedRoom(t, db, node, "101")
	testutil.SeedReading(t, db, node, room.ID, "2024-02", 100, 200)
	ctx := context.Background()

	_, err := svc.Preview(ctx, billingdomain.PreviewRequest{RoomID: room.ID.String(), CurrentWater: 99, CurrentElec: 230, MonthYear: "2024-03"})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))

	_, err = svc.Preview(ctx, billingdomain.PreviewRequest{RoomID: "31337", MonthYear: "2024-03"})
	assert.True(t, errors.Is(err, billingdomain.ErrNotFound))

	_, err = svc.Preview(ctx, billingdomain.PreviewRequest{RoomID: room.ID.String(), MonthYear: "03/2024"})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))

	_, err = svc.Preview(ctx, billingdomain.PreviewRequest{RoomID: room.ID.String(), MonthYear: "2024-03", CurrentWater: 110, CurrentElec: 230, DepositAmount: testutil.D("-1")})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))
}
