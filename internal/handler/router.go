package handler

import (
	"log/slog"
	"net/http"

	"github.com/sarthakg043/ewallet-guildup/internal/config"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/lock"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, locker lock.Locker, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, locker, cfg, logger)

	api := r.Group("/api/v1")
	{
		// 开户（注册流程调用）
		api.POST("/accounts", h.OpenAccount)
		api.GET("/accounts/:username", h.LookupAccount)

		wallet := api.Group("/wallet", IdentityMiddleware())
		{
			wallet.POST("/deposit", h.Deposit)
			wallet.POST("/withdraw", h.Withdraw)
			wallet.POST("/transfer", h.Transfer)
			wallet.GET("/account", h.GetAccount)
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/transactions", h.ListTransactions)
			wallet.GET("/transactions/:transaction_no", h.GetTransaction)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
