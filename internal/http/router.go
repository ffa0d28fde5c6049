// Package httpapi wires the HTTP transport (Gin) to the messaging services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Webhook endpoints acknowledge aggressively: the provider retries on
//     non-2xx, and redelivery cannot fix a routing failure
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/bryanriosb/beauty-business-sub002/internal/config"
	"github.com/bryanriosb/beauty-business-sub002/internal/entitlement"
	"github.com/bryanriosb/beauty-business-sub002/internal/http/handlers"
	"github.com/bryanriosb/beauty-business-sub002/internal/http/middleware"
	"github.com/bryanriosb/beauty-business-sub002/internal/notify"
	"github.com/bryanriosb/beauty-business-sub002/internal/provider"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
	"github.com/bryanriosb/beauty-business-sub002/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and
// rate limiting, CORS and security headers, health and metrics endpoints,
// the provider webhook, and the versioned operator API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing (customer phone
//     numbers must never reach logs)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per account/IP, bypass on replay)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, sender provider.Sender, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-Hub-Signature-256", // webhook signature carries key material
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, accountID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotencyByKey(ctx, db, accountID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per account/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAccountOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Account-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Account-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Compress JSON list responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Optional Swagger UI
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/provider
	configSvc := services.NewConfigService(db, services.DefaultConfigRepo())
	convSvc := services.NewConversationService(db)
	convSvc.Window = cfg.ConversationWindow

	var checker entitlement.Checker = &entitlement.DBChecker{DB: db}
	if cfg.EntitlementMode == "allow_all" {
		checker = entitlement.AllowAll{}
	}

	dispatchSvc := &services.DispatchService{
		DB:             db,
		Configs:        configSvc,
		Conversations:  convSvc,
		Sender:         sender,
		Entitlements:   checker,
		Catalog:        notify.DefaultCatalog(),
		Language:       cfg.TemplateLanguage,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	inboundSvc := services.NewInboundService(db, configSvc, convSvc)
	statusSvc := services.NewStatusService(db)

	h := handlers.New(dispatchSvc, inboundSvc, statusSvc, convSvc, configSvc)

	// Provider webhook (unversioned; the callback URL is registered with Meta)
	r.GET("/webhooks/whatsapp", h.VerifyWebhook)
	r.POST("/webhooks/whatsapp", h.ReceiveWebhook)

	// Operator API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Notifications
		api.POST("/notifications", h.PostNotification)

		// Conversations
		api.GET("/conversations", h.ListConversations)
		api.GET("/conversations/:id/messages", h.ListConversationMessages)

		// Channel configuration
		api.POST("/configs", h.CreateConfig)
		api.GET("/configs", h.ListConfigs)
		api.PATCH("/configs/:id", h.UpdateConfig)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
