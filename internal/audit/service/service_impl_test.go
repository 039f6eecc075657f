package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/rentbill/internal/actorcontext"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	"github.com/smallbiznis/rentbill/internal/audit/domain/mock"
	"github.com/smallbiznis/rentbill/internal/audit/repository"
	"github.com/smallbiznis/rentbill/internal/clock"
	obscontext "github.com/smallbiznis/rentbill/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, repo auditdomain.Repository, clk clock.Clock) auditdomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repo, Clock: clk})
}

func TestRecordResolvesActorAndMasks(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, repository.Provide(), clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	ctx := actorcontext.WithActor(context.Background(), actorcontext.Actor{ID: "7", Role: actorcontext.RoleStaff})
	ctx = obscontext.WithRequestID(ctx, "req-1")

	err := svc.Record(ctx, nil, auditdomain.Entry{
		Action:     "payment.recorded",
		TargetType: "payment",
		TargetID:   "99",
		Metadata:   map[string]any{"slip_image_url": "https://cdn.example.com/a.jpg?sig=x"},
	})
	require.NoError(t, err)

	var row auditdomain.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "user", row.ActorType)
	require.NotNil(t, row.ActorID)
	assert.Equal(t, "7", *row.ActorID)
	require.NotNil(t, row.RequestID)
	assert.Equal(t, "req-1", *row.RequestID)
	assert.Equal(t, "https://cdn.example.com/****", row.Metadata["slip_image_url"])
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockRepository(ctrl)
	repo.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	svc := newTestService(t, nil, repo, nil)
	err := svc.Record(context.Background(), nil, auditdomain.Entry{Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	db := newTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, repository.Provide(), clk)

	for i := 0; i < 3; i++ {
		clk.Advance(time.Minute)
		require.NoError(t, svc.Record(context.Background(), nil, auditdomain.Entry{Action: "invoice.created", TargetType: "invoice"}))
	}

	req := auditdomain.ListAuditLogRequest{}
	req.PageSize = 2
	first, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)

	req.PageToken = first.NextPageToken
	second, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.True(t, second.AuditLogs[0].CreatedAt.Before(first.AuditLogs[1].CreatedAt))
}

func TestListRejectsBadToken(t *testing.T) {
	svc := newTestService(t, newTestDB(t), repository.Provide(), nil)
	req := auditdomain.ListAuditLogRequest{}
	req.PageToken = "not-a-token"
	_, err := svc.List(context.Background(), req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
