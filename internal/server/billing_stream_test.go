package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/smallbiznis/rentbill/internal/actorcontext"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPreviewStream(t *testing.T, ts *testServer, role actorcontext.Role) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	srv := httptest.NewServer(ts.engine)
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set(HeaderActorID, "u-1")
	header.Set(HeaderActorRole, string(role))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/billing/calculate/ws"
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
}

func sendPreview(t *testing.T, ctx context.Context, conn *websocket.Conn, seq uint64, water int64) {
	t.Helper()
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{
		"type": "preview",
		"data": billingdomain.PreviewRequest{
			RoomID:       testID,
			CurrentWater: water,
			CurrentElec:  230,
			MonthYear:    "2024-03",
			RequestSeq:   seq,
		},
	}))
}

func TestCalculateStream_DropsStaleResults(t *testing.T) {
	ts := newTestServer(t)
	release := make(chan struct{})
	ts.billing.preview = func(_ context.Context, req billingdomain.PreviewRequest) (billingdomain.Calculation, error) {
		if req.RequestSeq == 1 {
			<-release
		}
		return billingdomain.Calculation{RoomID: req.RoomID, TotalAmount: testutil.D("3390")}, nil
	}

	conn, _, err := dialPreviewStream(t, ts, actorcontext.RoleStaff)
	require.NoError(t, err)
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sendPreview(t, ctx, conn, 1, 105)
	sendPreview(t, ctx, conn, 2, 110)

	var resp streamResponse
	require.NoError(t, wsjson.Read(ctx, conn, &resp))
	assert.Equal(t, streamMessageResult, resp.Type)
	assert.Equal(t, uint64(2), resp.RequestSeq)
	require.NotNil(t, resp.Data)
	assert.Equal(t, uint64(2), resp.Data.RequestSeq)

	close(release)
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "ping"}))

	var next streamResponse
	require.NoError(t, wsjson.Read(ctx, conn, &next))
	assert.Equal(t, streamMessagePong, next.Type)

	// The late seq 1 result must never arrive.
	quiet, stop := context.WithTimeout(ctx, 200*time.Millisecond)
	defer stop()
	var stale streamResponse
	assert.Error(t, wsjson.Read(quiet, conn, &stale))
}

func TestCalculateStream_ReportsErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.billing.preview = func(context.Context, billingdomain.PreviewRequest) (billingdomain.Calculation, error) {
		return billingdomain.Calculation{}, billingdomain.NewNoActiveContractError(testID)
	}

	conn, _, err := dialPreviewStream(t, ts, actorcontext.RoleStaff)
	require.NoError(t, err)
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sendPreview(t, ctx, conn, 3, 110)

	var resp streamResponse
	require.NoError(t, wsjson.Read(ctx, conn, &resp))
	assert.Equal(t, streamMessageError, resp.Type)
	assert.Equal(t, uint64(3), resp.RequestSeq)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "no_active_contract", resp.Error.Code)
}

func TestCalculateStream_RequiresPreviewPermission(t *testing.T) {
	ts := newTestServer(t)

	_, resp, err := dialPreviewStream(t, ts, actorcontext.RoleTenant)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
