package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/auth"
)

const claimsContextName = "claims"

// AuthMiddleware validates "Authorization: Bearer <jwt>" with secret and
// aborts with 401 otherwise. An empty secret disables the check.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if header == "" {
			abortUnauthorized(c, "missing authorization")
			return
		}
		if !strings.HasPrefix(header, prefix) {
			abortUnauthorized(c, "invalid authorization")
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(strings.TrimPrefix(header, prefix)), secret)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(claimsContextName, claims)
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// GetClaims returns the claims set by AuthMiddleware, or nil.
func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsContextName)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": message})
}
