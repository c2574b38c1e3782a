// auth.go validates bearer JWTs, loads the acting user, and stores the actor
// identity in the gin context for handlers and downstream middleware.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modplane/modplane/internal/auth"
	"github.com/modplane/modplane/internal/db/models"
	"github.com/modplane/modplane/internal/db/repositories"
)

const (
	// ActorKey is the gin.Context key holding the loaded *models.User.
	ActorKey = "actor"
	// ActorIDKey is the gin.Context key holding the actor's user ID. This is
	// the value stamped into every audit ledger record the request produces.
	ActorIDKey = "actor_id"
	// ActorRoleKey is the gin.Context key holding the actor's role string.
	ActorRoleKey = "actor_role"
)

// AuthMiddleware validates the Authorization bearer token and loads the user
// it identifies. Requests without a valid session are rejected with 401; the
// token's claims are cross-checked against the users table so a deleted user
// cannot keep acting on a stale token.
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		user, err := userRepo.GetByID(c.Request.Context(), claims.ActorID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		// The role stored in the users table wins over the role baked into the
		// token, so demotions take effect without waiting for token expiry.
		c.Set(ActorKey, user)
		c.Set(ActorIDKey, user.ID)
		c.Set(ActorRoleKey, user.Role)

		c.Next()
	}
}

// RequireRole returns middleware that rejects the request with 403 unless the
// authenticated actor holds one of the given roles. Must be registered after
// AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ActorRoleKey)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Insufficient role for this operation",
		})
	}
}

// RequireModerator allows moderators and admins.
func RequireModerator() gin.HandlerFunc {
	return RequireRole(models.RoleModerator, models.RoleAdmin)
}

// RequireAdmin allows admins only.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// CurrentActor returns the authenticated user loaded by AuthMiddleware, or
// nil when the request is unauthenticated.
func CurrentActor(c *gin.Context) *models.User {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}
