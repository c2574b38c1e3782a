// Package api wires the HTTP surface: router assembly, request handlers for
// reports, appeals, and the action log, and the write-after-mutation glue
// that appends a ledger record after every successful entity mutation.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/modplane/modplane/internal/audit"
	"github.com/modplane/modplane/internal/config"
	"github.com/modplane/modplane/internal/ledger"
	"github.com/modplane/modplane/internal/middleware"
)

// BackgroundServices holds long-running helpers started by NewRouter so the
// caller can stop them during graceful shutdown.
type BackgroundServices struct {
	limiters []middleware.Limiter
}

// Shutdown stops all background services.
func (bs *BackgroundServices) Shutdown() {
	for _, l := range bs.limiters {
		l.Stop()
	}
}

// NewRouter assembles the gin engine: global middleware, health and version
// endpoints, and the authenticated /api/v1 moderation surface.
func NewRouter(cfg *config.Config, database *sqlx.DB, ledgerHandle *ledger.Handle, shipper audit.Shipper) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	h := NewHandlers(database, ledgerHandle, shipper)

	router.GET("/health", h.HealthHandler())
	router.GET("/version", versionHandler())

	bg := &BackgroundServices{}

	// Dev-only token issuance, blocked outside dev mode. Unauthenticated on
	// purpose: it exists to hand out the first token.
	dev := router.Group("/api/v1/dev", DevModeMiddleware())
	dev.POST("/login", h.DevLoginHandler())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(h.users))

	if cfg.Security.RateLimiting.Enabled {
		general := middleware.NewLimiter(middleware.DefaultRateLimitConfig(), cfg.Redis)
		bg.limiters = append(bg.limiters, general)
		v1.Use(middleware.RateLimitMiddleware(general, middleware.DefaultRateLimitConfig().RequestsPerMinute))
	}

	// Report submission gets a tighter limiter than the rest of the API.
	reportCfg := middleware.ReportRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		reportCfg.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		reportCfg.BurstSize = cfg.Security.RateLimiting.Burst
	}
	createReport := []gin.HandlerFunc{h.CreateReportHandler()}
	if cfg.Security.RateLimiting.Enabled {
		reportLimiter := middleware.NewLimiter(reportCfg, cfg.Redis)
		bg.limiters = append(bg.limiters, reportLimiter)
		createReport = append([]gin.HandlerFunc{
			middleware.RateLimitMiddleware(reportLimiter, reportCfg.RequestsPerMinute),
		}, createReport...)
	}

	v1.POST("/reports", createReport...)
	v1.GET("/reports/:id", h.GetReportHandler())
	v1.GET("/reports/:id/appeals", h.ListReportAppealsHandler())
	v1.POST("/reports/:id/override", middleware.RequireModerator(), h.ApplyOverrideHandler())
	v1.POST("/reports/:id/appeals", h.CreateAppealHandler())
	v1.GET("/appeals/:id", h.GetAppealHandler())
	v1.POST("/appeals/:id/decision", middleware.RequireAdmin(), h.DecideAppealHandler())
	v1.GET("/moderation/actions", middleware.RequireModerator(), h.ActionLogHandler())
	v1.POST("/auth/signout", h.SignOutHandler())

	return router, bg
}

// LoggerMiddleware emits one structured log line per request.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
