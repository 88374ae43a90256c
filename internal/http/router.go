// Package httpapi wires the HTTP transport (Gin) to the purchase and outbox
// services. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, actor resolution, logging/redaction, panic recovery,
// metrics, CORS, security headers, idempotency, rate limiting and compression.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/config"
	"github.com/tbourn/go-purchase-backend/internal/http/docs"
	"github.com/tbourn/go-purchase-backend/internal/http/handlers"
	"github.com/tbourn/go-purchase-backend/internal/http/middleware"
	"github.com/tbourn/go-purchase-backend/internal/repo"
)

// Deps are the collaborators mounted by RegisterRoutes. DB backs idempotency
// lookups and ETags; Worker may be nil, in which case POST /outbox/tick
// answers 503.
type Deps struct {
	DB        *gorm.DB
	Purchases handlers.PurchaseService
	Outbox    handlers.OutboxService
	Worker    handlers.Ticker
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the purchase API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. Actor (X-User-ID), so logs and rate limiting see the user
//  4. Access logger (plain Logger at debug level, RedactingLogger otherwise)
//  5. Recovery
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP)
//  10. CORS, security headers, gzip
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Actor())
	r.Use(accessLogger(cfg.LogLevel))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	createPath := joinPath(cfg.APIBasePath, "/purchases")
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == createPath {
					return handlers.ScopeCreatePurchase
				}
				return middleware.RouteScope(c)
			},
		},
		idempotencyLookup(d.DB),
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Purchases:      d.Purchases,
		Outbox:         d.Outbox,
		Worker:         d.Worker,
		DB:             d.DB,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/purchases", h.CreatePurchase)
		api.GET("/purchases", h.ListPurchases)
		api.GET("/purchases/:id", h.GetPurchase)
		api.GET("/purchases/:id/events", h.ListEvents)
		api.POST("/purchases/:id/take", h.Take)
		api.POST("/purchases/:id/bought", h.MarkBought)
		api.POST("/purchases/:id/cancel", h.Cancel)
		api.POST("/purchases/:id/comments", h.AddComment)

		api.GET("/outbox", h.ListOutbox)
		api.POST("/outbox/tick", h.Tick)
	}
}

// idempotencyLookup reports whether a live idempotency record exists for the
// acting user. Anonymous callers never replay.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		actor, err := strconv.ParseInt(userID, 10, 64)
		if err != nil {
			return false, nil
		}
		rec, err := repo.GetIdempotency(ctx, db, actor, scope, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO on every response, including requests without Origin.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, found := allowed[origin]; found {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// accessLogger keeps raw query strings and user agents out of the logs
// unless the service runs at debug level.
func accessLogger(level string) gin.HandlerFunc {
	if level == "debug" {
		return middleware.Logger()
	}
	return middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Bot-Token"},
	})
}

// limitBody caps the request body at maxBytes; oversized bodies fail on read.
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

func joinPath(prefix, p string) string {
	if prefix == "" || prefix == "/" {
		return p
	}
	return prefix + p
}
