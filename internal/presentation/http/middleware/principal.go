package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/security"
	"github.com/clarident/clarident-go/pkg/config"
)

// PrincipalKey is the gin context key for the authenticated principal.
const PrincipalKey = "principal"

// Principal extracts the authenticated principal from the request's bearer
// token. Requests without a valid token never reach a handler.
func Principal(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := security.ValidateJWT(strings.TrimPrefix(header, "Bearer "), config.JWTSecret)
		if err != nil {
			logger.Auth().Warn("Token validation failed", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		principal, err := security.PrincipalFromClaims(claims)
		if err != nil {
			logger.Auth().Warn("Token missing principal identity", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// GetPrincipal returns the authenticated principal for the request.
func GetPrincipal(c *gin.Context) (scope.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return scope.Principal{}, false
	}
	principal, ok := v.(scope.Principal)
	return principal, ok
}
