package handler

import (
	"time"

	"tutor-ledger/internal/adapter/http/middleware"
	redisStore "tutor-ledger/internal/adapter/storage/redis"
	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WebhookGate    ports.WebhookGate
	NonceStore     ports.NonceStore
	WebhookEvents  ports.WebhookEventRepository // nil = dedup by nonce store only
	WebhookTTL     time.Duration
	PayoutSvc      ports.PayoutService
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	SyncQueue      QueueInspector             // nil = no queue stats route
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	OpenAPISpec    []byte             // empty = no /swagger routes
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if len(deps.OpenAPISpec) > 0 {
		registerSwagger(r.Group("/swagger"), deps.OpenAPISpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Provider callbacks (signature-gated) ---
	webhookHandler := NewWebhookHandler(deps.NonceStore, deps.WebhookEvents, deps.WebhookTTL, deps.Logger)
	webhooks := v1.Group("/webhooks", rl("webhooks"))
	for _, provider := range domain.WebhookProviders {
		webhooks.POST("/"+string(provider),
			middleware.WebhookSignature(deps.WebhookGate, provider, deps.Logger),
			webhookHandler.Receive,
		)
	}

	// --- Back office (JWT-authenticated) ---
	adminHandler := NewAdminHandler(deps.PayoutSvc, deps.LedgerSvc)
	admin := v1.Group("/admin",
		middleware.JWTAuth(deps.TokenSvc, deps.Logger),
		middleware.RequireRole(domain.RoleAdmin, domain.RoleFinance),
	)
	{
		admin.GET("/actors/:actor_id/balances", rl("admin"), adminHandler.GetBalances)
		admin.GET("/actors/:actor_id/payouts", rl("admin"), adminHandler.ListPayouts)
		admin.POST("/payouts/:id/settle", rl("admin_write"), adminHandler.SettlePayout)
		admin.POST("/payouts/auto-run", rl("admin_payout_run"), middleware.RequireRole(domain.RoleAdmin), adminHandler.RunAutoPayouts)
		admin.POST("/earnings/credit", rl("admin_write"), middleware.RequireRole(domain.RoleAdmin), adminHandler.CreditEarning)
		if deps.SyncQueue != nil {
			admin.GET("/sync/queue", rl("admin"), SyncQueueStats(deps.SyncQueue))
		}
	}

	return r
}
