// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tradepost/deal-service/internal/services/marketplace"
)

// principalKey is the gin context key carrying the verified principal.
const principalKey = "principal"

// AuthMiddleware resolves bearer credentials to principals through the
// marketplace identity endpoint.
type AuthMiddleware struct {
	identity marketplace.Client
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(identity marketplace.Client) *AuthMiddleware {
	return &AuthMiddleware{identity: identity}
}

// Authenticate returns a gin middleware that verifies the Bearer token
// and stores the resolved principal in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "missing or malformed authorization header",
			})
			return
		}

		principal, err := m.identity.VerifyToken(c.Request.Context(), token)
		if err != nil {
			HandleError(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// bearerToken extracts the Bearer token from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetPrincipal retrieves the verified principal from the gin context.
func GetPrincipal(c *gin.Context) *marketplace.Principal {
	if v, exists := c.Get(principalKey); exists {
		if p, ok := v.(*marketplace.Principal); ok {
			return p
		}
	}
	return nil
}

// GetPrincipalID retrieves the verified principal's id, or "".
func GetPrincipalID(c *gin.Context) string {
	if p := GetPrincipal(c); p != nil {
		return p.ID
	}
	return ""
}

// SetPrincipal stores a principal in the context. Exposed for handler
// tests.
func SetPrincipal(c *gin.Context, p *marketplace.Principal) {
	c.Set(principalKey, p)
}
