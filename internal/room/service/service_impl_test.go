package service_test

import (
	"context"
	"errors"
	"testing"

	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	roomrepository "github.com/smallbiznis/rentbill/internal/room/repository"
	roomservice "github.com/smallbiznis/rentbill/internal/room/service"
	"github.com/smallbiznis/rentbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRoomService(t *testing.T) roomdomain.Service {
	t.Helper()
	return roomservice.NewService(roomservice.Params{
		DB:    testutil.NewDB(t),
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Repo:  roomrepository.Provide(),
	})
}

func TestRoomService(t *testing.T) {
	svc := setupRoomService(t)
	ctx := context.Background()

	req := roomdomain.CreateRoomRequest{
		Number:    " 101 ",
		Building:  "A",
		BaseRent:  testutil.D("3000"),
		WaterRate: testutil.D("18"),
		ElecRate:  testutil.D("7"),
	}
	room, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "101", room.Number)
	assert.Equal(t, roomdomain.RoomStatusVacant, room.Status)

	_, err = svc.Create(ctx, req)
	assert.True(t, errors.Is(err, billingdomain.ErrConflict))

	req.Building = "B"
	_, err = svc.Create(ctx, req)
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, room.ID.String())
	require.NoError(t, err)
	assert.True(t, got.WaterRate.Equal(testutil.D("18")))

	vacant, err := svc.List(ctx, roomdomain.ListRoomRequest{Status: "vacant"})
	require.NoError(t, err)
	assert.Len(t, vacant, 2)

	_, err = svc.List(ctx, roomdomain.ListRoomRequest{Status: "haunted"})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))

	_, err = svc.GetByID(ctx, "123")
	assert.True(t, errors.Is(err, billingdomain.ErrNotFound))
}

func TestRoomService_RejectsNegativeRates(t *testing.T) {
	svc := setupRoomService(t)
	_, err := svc.Create(context.Background(), roomdomain.CreateRoomRequest{
		Number:    "9",
		BaseRent:  testutil.D("3000"),
		WaterRate: testutil.D("-1"),
		ElecRate:  testutil.D("7"),
	})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))

	_, err = svc.Create(context.Background(), roomdomain.CreateRoomRequest{})
	assert.True(t, errors.Is(err, billingdomain.ErrValidation))
}
