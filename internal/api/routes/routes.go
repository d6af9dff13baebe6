package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fandangolas/wallet-ledger/internal/api/handlers"
	"github.com/fandangolas/wallet-ledger/internal/api/middleware"
	"github.com/fandangolas/wallet-ledger/internal/config"
)

// RegisterRoutes wires the HTTP edge's middleware chain and handlers
// against container dependencies, adapted from the teacher's
// internal/api/routes/routes.go.
func RegisterRoutes(router *gin.Engine, deps handlers.Dependencies, cfg *config.Config) {
	router.Use(middleware.RequestContext())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimit(cfg))
	router.Use(middleware.Prometheus())

	router.GET("/ping", handlers.Ping)

	router.POST("/deposit", handlers.MakeDepositHandler(deps))
	router.POST("/withdraw", handlers.MakeWithdrawHandler(deps))
	router.POST("/transfer", handlers.MakeTransferHandler(deps))
	router.GET("/balance/:walletId", handlers.MakeBalanceHandler(deps))
	router.GET("/transactions/:walletId", handlers.MakeTransactionsHandler(deps))

	router.GET("/metrics/recent", handlers.GetRecentRequests)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
