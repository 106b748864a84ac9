package handler

import (
	"webhook-relay/internal/adapter/http/middleware"
	redisStore "webhook-relay/internal/adapter/storage/redis"
	"webhook-relay/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	IntakeSvc      ports.IntakeService
	AuthSvc        ports.AuthService
	TokenSvc       ports.TokenService
	NotifRepo      ports.NotificationRepository
	Forwarder      ports.QueueForwarder
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	MaxBodyBytes   int
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Public intake endpoint ---
	webhookHandler := NewWebhookHandler(deps.IntakeSvc, deps.MaxBodyBytes, deps.Logger)
	r.POST("/webhooks/:category", rl("intake"), webhookHandler.Receive)

	// --- Operator login ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	r.POST("/api/auth/login", rl("auth_login"), authHandler.Login)

	// --- JWT-authenticated internal API ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	internalHandler := NewInternalHandler(deps.NotifRepo, deps.Forwarder)

	internal := r.Group("/api/internal", jwtAuth)
	{
		internal.GET("/notifications", rl("internal"), internalHandler.List)
		internal.GET("/notifications/:id", rl("internal"), internalHandler.Get)
		internal.PATCH("/notifications/:id/status", rl("internal"), internalHandler.UpdateStatus)
		internal.GET("/queue/stats", rl("internal"), internalHandler.QueueStats)
	}

	return r
}
