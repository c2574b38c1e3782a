// sessions.go implements sign-in/sign-out recording and the dev-mode token
// endpoint. Tokens are stateless JWTs, so sign-out does not invalidate
// anything; it exists to put the auth.signed_out fact into the ledger.
package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modplane/modplane/internal/auth"
	"github.com/modplane/modplane/internal/ledger"
	"github.com/modplane/modplane/internal/middleware"
)

const devTokenLifetime = 24 * time.Hour

// IsDevMode reports whether dev endpoints are enabled. Requires explicit
// opt-in via DEV_MODE=true or DEV_MODE=1.
func IsDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	return devMode == "true" || devMode == "1"
}

// DevModeMiddleware blocks dev endpoints outside dev mode.
func DevModeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsDevMode() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Development endpoints are disabled in production",
			})
			return
		}
		c.Next()
	}
}

type devLoginRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// DevLoginHandler issues a JWT for an existing user without credentials and
// records the sign-in in the ledger.
// POST /api/v1/dev/login
func (h *Handlers) DevLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		user, err := h.users.GetByID(c.Request.Context(), req.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Handle, user.Role, devTokenLifetime)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		if _, ok := h.appendRecord(c, user.ID, ledger.ActionSignedIn, "user", user.ID, nil); !ok {
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"user":       user,
			"expires_in": int(devTokenLifetime.Seconds()),
		})
	}
}

// SignOutHandler records a sign-out for the authenticated actor.
// POST /api/v1/auth/signout
func (h *Handlers) SignOutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.CurrentActor(c)
		if _, ok := h.appendRecord(c, actor.ID, ledger.ActionSignedOut, "user", actor.ID, nil); !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
	}
}
