// Package router wires services and handlers into the HTTP API.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"fundledger/internal/config"
	"fundledger/internal/handlers"
	"fundledger/internal/middleware"
	"fundledger/internal/models"
	"fundledger/internal/services"

	_ "fundledger/internal/docs" // Register swagger docs
)

// Services holds every domain service the API exposes.
type Services struct {
	Users          services.UserServicer
	Assets         services.AssetServicer
	Portfolios     services.PortfolioServicer
	UserPortfolios services.UserPortfolioServicer
	Deposits       services.DepositServicer
	Withdrawals    services.WithdrawalServicer
	Reports        services.ReportServicer
	Audit          services.AuditServicer
}

// NewServices builds the service graph on db. Settlement, cascade and
// subscription transactions share the configured timeout.
func NewServices(db *gorm.DB, cfg *config.Config) Services {
	timeout := cfg.Settlement.Timeout
	engine := services.NewValuationEngine(db, timeout)
	return Services{
		Users:          services.NewUserService(db),
		Assets:         services.NewAssetService(db, timeout),
		Portfolios:     services.NewPortfolioService(db),
		UserPortfolios: services.NewUserPortfolioService(db, engine, timeout),
		Deposits:       services.NewDepositService(db, engine, timeout),
		Withdrawals:    services.NewWithdrawalService(db, engine, timeout),
		Reports:        services.NewReportService(db, timeout, cfg.Reports.RetentionDays, cfg.Reports.Currency),
		Audit:          services.NewAuditService(db),
	}
}

// Setup builds the Gin engine with middleware, swagger, health and the
// /api/v1 routes.
func Setup(db *gorm.DB, svcs Services, cfg *config.Config) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svcs.Users, svcs.Audit)
	assetHandler := handlers.NewAssetHandler(svcs.Assets, svcs.Audit)
	portfolioHandler := handlers.NewPortfolioHandler(svcs.Portfolios, svcs.Audit)
	userPortfolioHandler := handlers.NewUserPortfolioHandler(svcs.UserPortfolios, svcs.Audit)
	depositHandler := handlers.NewDepositHandler(svcs.Deposits, svcs.Audit)
	withdrawalHandler := handlers.NewWithdrawalHandler(svcs.Withdrawals, svcs.Audit)
	reportHandler := handlers.NewReportHandler(svcs.Reports, svcs.UserPortfolios, svcs.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", health(db))

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", authHandler.Login)

	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.Pipeline.APIKey))
	pipeline.POST("/reports/generate-all", reportHandler.GenerateAllReports)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware())
	admin := middleware.RequireRole(models.RoleAdmin)

	protected.GET("/profile", authHandler.GetProfile)

	users := protected.Group("/users")
	users.POST("", admin, authHandler.CreateUser)
	users.GET("/:id", authHandler.GetUser)

	assets := protected.Group("/assets")
	assets.GET("", assetHandler.ListAssets)
	assets.GET("/symbol/:symbol", assetHandler.GetAssetBySymbol)
	assets.GET("/:id", assetHandler.GetAsset)
	assets.POST("", admin, assetHandler.CreateAsset)
	assets.PATCH("/:id", admin, assetHandler.UpdateAsset)
	assets.DELETE("/:id", admin, assetHandler.DeleteAsset)

	portfolios := protected.Group("/portfolios")
	portfolios.GET("", portfolioHandler.ListPortfolios)
	portfolios.GET("/:id", portfolioHandler.GetPortfolio)
	portfolios.GET("/:id/assets", portfolioHandler.ListPortfolioAssets)
	portfolios.POST("", admin, portfolioHandler.CreatePortfolio)
	portfolios.PATCH("/:id", admin, portfolioHandler.UpdatePortfolio)
	portfolios.DELETE("/:id", admin, portfolioHandler.DeletePortfolio)
	portfolios.POST("/:id/assets", admin, portfolioHandler.AddPortfolioAsset)

	portfolioAssets := protected.Group("/portfolio-assets")
	portfolioAssets.GET("/:id", portfolioHandler.GetPortfolioAsset)
	portfolioAssets.PATCH("/:id", admin, portfolioHandler.UpdatePortfolioAsset)
	portfolioAssets.DELETE("/:id", admin, portfolioHandler.RemovePortfolioAsset)

	userPortfolios := protected.Group("/user-portfolios")
	userPortfolios.GET("", userPortfolioHandler.ListUserPortfolios)
	userPortfolios.GET("/:id", userPortfolioHandler.GetUserPortfolio)
	userPortfolios.POST("", admin, userPortfolioHandler.Subscribe)
	userPortfolios.PATCH("/:id", admin, userPortfolioHandler.UpdateUserPortfolio)
	userPortfolios.POST("/:id/recompute", admin, userPortfolioHandler.Recompute)
	userPortfolios.DELETE("/:id", admin, userPortfolioHandler.Unsubscribe)
	userPortfolios.GET("/:id/reports", reportHandler.ListReports)
	userPortfolios.GET("/:id/reports/latest", reportHandler.GetLatestReport)
	userPortfolios.GET("/:id/reports/stats", reportHandler.GetStatistics)
	userPortfolios.POST("/:id/reports", admin, reportHandler.GenerateReport)

	deposits := protected.Group("/deposits")
	deposits.GET("", depositHandler.ListDeposits)
	deposits.GET("/:id", depositHandler.GetDeposit)
	deposits.POST("", admin, depositHandler.CreateDeposit)
	deposits.PATCH("/:id", admin, depositHandler.UpdateDeposit)
	deposits.POST("/:id/approve", admin, depositHandler.ApproveDeposit)
	deposits.POST("/:id/reject", admin, depositHandler.RejectDeposit)
	deposits.POST("/:id/reverse", admin, depositHandler.ReverseDeposit)
	deposits.DELETE("/:id", admin, depositHandler.DeleteDeposit)

	withdrawals := protected.Group("/withdrawals")
	withdrawals.GET("", withdrawalHandler.ListWithdrawals)
	withdrawals.GET("/:id", withdrawalHandler.GetWithdrawal)
	withdrawals.POST("", admin, withdrawalHandler.CreateWithdrawal)
	withdrawals.PATCH("/:id", admin, withdrawalHandler.UpdateWithdrawal)
	withdrawals.POST("/:id/approve", admin, withdrawalHandler.ApproveWithdrawal)
	withdrawals.POST("/:id/reject", admin, withdrawalHandler.RejectWithdrawal)
	withdrawals.DELETE("/:id", admin, withdrawalHandler.DeleteWithdrawal)

	reports := protected.Group("/reports")
	reports.GET("/:id", reportHandler.GetReport)
	reports.POST("/generate-all", admin, reportHandler.GenerateAllReports)
	reports.DELETE("/cleanup", admin, reportHandler.CleanupReports)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// health reports ok when the database answers a ping within two seconds.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
	}
}
