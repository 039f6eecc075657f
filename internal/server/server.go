package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	"github.com/smallbiznis/rentbill/internal/authorization"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/smallbiznis/rentbill/internal/config"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	readingdomain "github.com/smallbiznis/rentbill/internal/meterreading/domain"
	"github.com/smallbiznis/rentbill/internal/observability"
	obsmiddleware "github.com/smallbiznis/rentbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rentbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rentbill/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
	"github.com/smallbiznis/rentbill/internal/ratelimit"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Log         *zap.Logger
	AuthzSvc    authorization.Service
	AuditSvc    auditdomain.Service
	BillingSvc  billingdomain.Service
	InvoiceSvc  invoicedomain.Service
	ReadingSvc  readingdomain.Service
	PaymentSvc  paymentdomain.Service
	RoomSvc     roomdomain.Service
	ContractSvc contractdomain.Service
	LedgerSvc   ledgerdomain.Service
	Limiter     *ratelimit.Limiter `optional:"true"`
}

type Server struct {
	engine      *gin.Engine
	log         *zap.Logger
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service
	billingSvc  billingdomain.Service
	invoiceSvc  invoicedomain.Service
	readingSvc  readingdomain.Service
	paymentSvc  paymentdomain.Service
	roomSvc     roomdomain.Service
	contractSvc contractdomain.Service
	ledgerSvc   ledgerdomain.Service
	limiter     *ratelimit.Limiter
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Gin,
		log:         p.Log.Named("http"),
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		billingSvc:  p.BillingSvc,
		invoiceSvc:  p.InvoiceSvc,
		readingSvc:  p.ReadingSvc,
		paymentSvc:  p.PaymentSvc,
		roomSvc:     p.RoomSvc,
		contractSvc: p.ContractSvc,
		ledgerSvc:   p.LedgerSvc,
		limiter:     p.Limiter,
	}

	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/")
	api.Use(s.RequireActor())

	billing := api.Group("/billing")
	{
		billing.POST("/calculate", s.authorize(authorization.ObjectBilling, authorization.ActionBillingPreview), s.Calculate)
		billing.GET("/calculate/ws", s.authorize(authorization.ObjectBilling, authorization.ActionBillingPreview), s.CalculateStream)
		billing.POST("/create-invoice", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceCreate), s.CreateInvoice)
		billing.GET("", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoices)
		billing.PATCH("/bulk-status", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceUpdateStatus), s.BulkUpdateInvoiceStatus)
		billing.GET("/latest-reading/:room", s.authorize(authorization.ObjectMeterReading, authorization.ActionMeterReadingView), s.LatestReading)
		billing.PATCH("/meter-reading/:id", s.authorize(authorization.ObjectMeterReading, authorization.ActionMeterReadingCorrect), s.CorrectReading)
		billing.GET("/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoiceByID)
		billing.GET("/:id/pdf", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.DownloadInvoicePDF)
		billing.PATCH("/:id/status", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceUpdateStatus), s.UpdateInvoiceStatus)
		billing.GET("/:id/late-fee", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetLateFee)
		billing.POST("/:id/late-fee", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceApplyLateFee), s.ApplyLateFee)
		billing.DELETE("/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceDelete), s.DeleteInvoice)
	}

	api.GET("/meter-readings", s.authorize(authorization.ObjectMeterReading, authorization.ActionMeterReadingView), s.ListReadings)

	payments := api.Group("/payments")
	{
		payments.POST("", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentRecord), s.ThrottleWrites(), s.RecordPayment)
		payments.GET("", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListPayments)
		payments.POST("/:id/slip", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentAttachSlip), s.ThrottleWrites(), s.AttachPaymentSlip)
		payments.PATCH("/:id/approve", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentApprove), s.ApprovePayment)
	}

	rooms := api.Group("/rooms")
	{
		rooms.POST("", s.authorize(authorization.ObjectRoom, authorization.ActionRoomCreate), s.CreateRoom)
		rooms.GET("", s.authorize(authorization.ObjectRoom, authorization.ActionRoomView), s.ListRooms)
		rooms.GET("/:id", s.authorize(authorization.ObjectRoom, authorization.ActionRoomView), s.GetRoomByID)
	}

	contracts := api.Group("/contracts")
	{
		contracts.POST("", s.authorize(authorization.ObjectContract, authorization.ActionContractCreate), s.CreateContract)
		contracts.GET("/:id", s.authorize(authorization.ObjectContract, authorization.ActionContractView), s.GetContractByID)
		contracts.POST("/:id/terminate", s.authorize(authorization.ObjectContract, authorization.ActionContractTerminate), s.TerminateContract)
		contracts.GET("/:id/invoices", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListContractInvoices)
		contracts.GET("/:id/deposit", s.authorize(authorization.ObjectContract, authorization.ActionContractView), s.GetContractDeposit)
	}

	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
