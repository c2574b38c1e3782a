package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modplane/modplane/internal/ledger"
	"github.com/modplane/modplane/internal/telemetry"
)

// Version is the build version, overridden at link time:
//
//	go build -ldflags "-X github.com/modplane/modplane/internal/api.Version=v1.2.3"
var Version = "dev"

// HealthHandler reports database connectivity and the integrity of the audit
// chain. A broken chain degrades the status but keeps the endpoint at 200:
// the service still serves reads, and the verification detail tells the
// operator where the chain failed.
func (h *Handlers) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}

		records, err := h.ledger.ReadAll()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "ledger unreadable",
			})
			return
		}

		verification := ledger.Verify(records)
		telemetry.RecordChainVerification(verification.Valid)

		status := "healthy"
		if !verification.Valid {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":             status,
			"version":            Version,
			"chain_verification": verification,
		})
	}
}

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	}
}
