package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentbill/internal/actorcontext"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"go.uber.org/zap"
)

func (s *Server) Calculate(c *gin.Context) {
	var req billingdomain.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set("room_id", strings.TrimSpace(req.RoomID))

	calc, err := s.billingSvc.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": calc})
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set("room_id", strings.TrimSpace(req.RoomID))
	if strings.TrimSpace(req.RecordedBy) == "" {
		if actor, ok := actorcontext.FromContext(c.Request.Context()); ok {
			req.RecordedBy = actor.ID
		}
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

const (
	streamMessagePreview = "preview"
	streamMessagePing    = "ping"
	streamMessagePong    = "pong"
	streamMessageResult  = "result"
	streamMessageError   = "error"
)

type streamRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type streamResponse struct {
	Type       string                     `json:"type"`
	RequestSeq uint64                     `json:"request_seq,omitempty"`
	Data       *billingdomain.Calculation `json:"data,omitempty"`
	Error      *errorPayload              `json:"error,omitempty"`
}

// previewStream tracks one websocket connection. Previews run concurrently;
// a result is written only if no newer request_seq has arrived since.
type previewStream struct {
	conn *websocket.Conn
	log  *zap.Logger

	mu     sync.Mutex
	latest uint64
}

func (p *previewStream) observe(seq uint64) {
	p.mu.Lock()
	if seq > p.latest {
		p.latest = seq
	}
	p.mu.Unlock()
}

// deliver writes resp unless it is stale. Unsequenced responses always go out.
func (p *previewStream) deliver(ctx context.Context, resp streamResponse) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if resp.RequestSeq != 0 && resp.RequestSeq < p.latest {
		return false
	}
	if err := wsjson.Write(ctx, p.conn, resp); err != nil {
		p.log.Debug("preview stream write failed", zap.Error(err))
		return false
	}
	return true
}

// CalculateStream serves live previews over a websocket while readings are
// typed in.
func (s *Server) CalculateStream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("preview stream accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := c.Request.Context()
	stream := &previewStream{conn: conn, log: s.log}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var msg streamRequest
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				s.log.Debug("preview stream closed", zap.Int("status", int(status)))
			}
			return
		}

		switch msg.Type {
		case streamMessagePreview:
			var req billingdomain.PreviewRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				_, payload := mapError(invalidRequestError())
				stream.deliver(ctx, streamResponse{Type: streamMessageError, Error: &payload})
				continue
			}
			stream.observe(req.RequestSeq)

			wg.Add(1)
			go func(req billingdomain.PreviewRequest) {
				defer wg.Done()
				s.streamPreview(ctx, stream, req)
			}(req)
		case streamMessagePing:
			stream.deliver(ctx, streamResponse{Type: streamMessagePong})
		default:
			_, payload := mapError(newValidationError("type", "unknown_type", "unknown message type"))
			stream.deliver(ctx, streamResponse{Type: streamMessageError, Error: &payload})
		}
	}
}

func (s *Server) streamPreview(ctx context.Context, stream *previewStream, req billingdomain.PreviewRequest) {
	calc, err := s.billingSvc.Preview(ctx, req)
	if err != nil {
		status, payload := mapError(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("preview failed", zap.Error(err))
		}
		stream.deliver(ctx, streamResponse{Type: streamMessageError, RequestSeq: req.RequestSeq, Error: &payload})
		return
	}
	calc.RequestSeq = req.RequestSeq
	stream.deliver(ctx, streamResponse{Type: streamMessageResult, RequestSeq: req.RequestSeq, Data: &calc})
}
