package middlewares

import (
	"net/http"
	"strings"

	"github.com/blomoto/garage_backend/models"
	"github.com/blomoto/garage_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the bearer token into the acting user. Requests
// without a token pass through anonymously; route guards decide whether that
// is acceptable.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			if auth := c.Request.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			c.Next()
			return
		}

		parsed, err := utils.JwtValidate(token)
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		claims, ok := parsed.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), claims.ID)
		ctx = utils.SetUserRoleInContext(ctx, claims.Role)

		if claims.Role == string(models.UserRoleGarage) {
			if garage, gerr := models.GetGarageForOwner(ctx, claims.ID); gerr == nil {
				ctx = utils.SetGarageIdInContext(ctx, garage.ID)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole guards a route group. An anonymous request gets 401; a request
// by a user with the wrong role gets 403.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := utils.GetUserRoleFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		for _, allowed := range roles {
			if role == string(allowed) {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		c.Abort()
	}
}
