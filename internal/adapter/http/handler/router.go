package handler

import (
	"p2p-match-engine/internal/adapter/http/middleware"
	redisStore "p2p-match-engine/internal/adapter/storage/redis"
	"p2p-match-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	QueueSvc       ports.QueueService
	StatsSvc       ports.StatsService
	HistoryRepo    ports.HistoryRepository
	TokenSvc       ports.TokenService             // nil = operator auth disabled (dev mode)
	RateLimitStore *redisStore.RateLimitStore     // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies the store and Redis when configured)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Operator auth: applied to moderation and stats routes only; queue
	// submission stays open to the customer-facing channel integrations.
	opAuth := func(c *gin.Context) { c.Next() }
	if deps.TokenSvc != nil {
		opAuth = middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	}

	queueHandler := NewQueueHandler(deps.QueueSvc, deps.HistoryRepo)
	matchHandler := NewMatchHandler(deps.QueueSvc, deps.HistoryRepo)
	statsHandler := NewStatsHandler(deps.StatsSvc)

	// API v1 routes
	v1 := r.Group("/api/v1")

	queue := v1.Group("/queue")
	{
		queue.POST("/withdrawals", rl("enqueue"), queueHandler.EnqueueWithdrawal)
		queue.POST("/deposits", rl("enqueue"), queueHandler.EnqueueDeposit)
		queue.GET("", rl("reads"), queueHandler.ListQueue)
		queue.GET("/:id", rl("reads"), queueHandler.GetItem)
		queue.POST("/:id/cancel", rl("enqueue"), queueHandler.Cancel)
		queue.PUT("/:id/notes", opAuth, rl("operator"), queueHandler.UpdateNotes)
	}

	matches := v1.Group("/matches", opAuth)
	{
		matches.GET("", rl("reads"), matchHandler.ListMatches)
		matches.GET("/:id", rl("reads"), matchHandler.GetMatch)
		matches.POST("/:id/approve", rl("operator"), matchHandler.Approve)
		matches.POST("/:id/reject", rl("operator"), matchHandler.Reject)
		matches.POST("/:id/complete", rl("operator"), matchHandler.Complete)
	}

	stats := v1.Group("/stats", opAuth)
	{
		stats.GET("", rl("stats"), statsHandler.GetStats)
	}

	return r
}
