package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/config"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	ledgerdomain "github.com/smallbiznis/estatebook/internal/ledger/domain"
	"github.com/smallbiznis/estatebook/internal/observability"
	obsmiddleware "github.com/smallbiznis/estatebook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/estatebook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/estatebook/internal/observability/tracing"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
	paymentstatusdomain "github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	"github.com/smallbiznis/estatebook/internal/providers"
	"github.com/smallbiznis/estatebook/internal/providers/pdf"
	"github.com/smallbiznis/estatebook/internal/providers/xlsx"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	providers.Module,
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
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
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

type Server struct {
	engine           *gin.Engine
	cfg              config.Config
	log              *zap.Logger
	projectSvc       projectdomain.Service
	unitTypeSvc      unittypedomain.Service
	installmentSvc   installmentdomain.Service
	houseUnitSvc     houseunitdomain.Service
	orderGroupSvc    ordergroupdomain.Service
	contractSvc      contractdomain.Service
	contractPriceSvc contractpricedomain.Service
	paymentStatusSvc paymentstatusdomain.Service
	auditSvc         auditdomain.Service
	ledgerSvc        ledgerdomain.Service
	pdfProvider      pdf.Provider
	xlsxProvider     xlsx.Provider
	obsMetrics       *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	Log              *zap.Logger
	ProjectSvc       projectdomain.Service
	UnitTypeSvc      unittypedomain.Service
	InstallmentSvc   installmentdomain.Service
	HouseUnitSvc     houseunitdomain.Service
	OrderGroupSvc    ordergroupdomain.Service
	ContractSvc      contractdomain.Service
	ContractPriceSvc contractpricedomain.Service
	PaymentStatusSvc paymentstatusdomain.Service
	AuditSvc         auditdomain.Service
	LedgerSvc        ledgerdomain.Service
	PDFProvider      pdf.Provider
	XLSXProvider     xlsx.Provider
	ObsMetrics       *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		log:              p.Log.Named("http.server"),
		projectSvc:       p.ProjectSvc,
		unitTypeSvc:      p.UnitTypeSvc,
		installmentSvc:   p.InstallmentSvc,
		houseUnitSvc:     p.HouseUnitSvc,
		orderGroupSvc:    p.OrderGroupSvc,
		contractSvc:      p.ContractSvc,
		contractPriceSvc: p.ContractPriceSvc,
		paymentStatusSvc: p.PaymentStatusSvc,
		auditSvc:         p.AuditSvc,
		ledgerSvc:        p.LedgerSvc,
		pdfProvider:      p.PDFProvider,
		xlsxProvider:     p.XLSXProvider,
		obsMetrics:       p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(OrgContext())

	api.GET("/projects", s.ListProjects)
	api.POST("/projects", s.CreateProject)
	api.GET("/projects/:id", s.GetProjectByID)

	api.GET("/projects/:id/unit-types", s.ListUnitTypes)
	api.POST("/projects/:id/unit-types", s.CreateUnitType)
	api.GET("/unit-types/:id", s.GetUnitTypeByID)
	api.PATCH("/unit-types/:id", s.RenameUnitType)

	api.GET("/projects/:id/installments", s.ListInstallments)
	api.POST("/projects/:id/installments", s.CreateInstallment)
	api.PUT("/projects/:id/installments/:type_sort", s.ReplaceInstallmentSchedule)
	api.DELETE("/installments/:id", s.DeleteInstallment)

	api.GET("/projects/:id/units", s.ListHouseUnits)
	api.POST("/projects/:id/units", s.CreateHouseUnit)
	api.GET("/units/:id", s.GetHouseUnitByID)
	api.PATCH("/units/:id/price", s.UpdateHouseUnitPrice)
	api.GET("/units/:id/contract-price", s.GetContractPrice)
	api.POST("/units/:id/contract-price/recalculate", s.RecalculateContractPrice)

	api.GET("/projects/:id/order-groups", s.ListOrderGroups)
	api.POST("/projects/:id/order-groups", s.CreateOrderGroup)
	api.POST("/order-groups/:id/default", s.SetDefaultOrderGroup)

	api.GET("/projects/:id/contracts", s.ListContracts)
	api.POST("/projects/:id/contracts", s.CreateContract)
	api.GET("/contracts/:id", s.GetContractByID)
	api.POST("/contracts/:id/cancel", s.CancelContract)

	api.POST("/projects/:id/recalculate", s.RecalculateProject)

	api.GET("/projects/:id/payment-status", s.GetPaymentStatus)
	api.GET("/projects/:id/payment-status.pdf", s.ExportPaymentStatusPDF)
	api.GET("/projects/:id/payment-status.xlsx", s.ExportPaymentStatusXLSX)

	api.GET("/audit-logs", s.ListAuditLogs)
	api.GET("/ledger/balances", s.GetLedgerBalances)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
