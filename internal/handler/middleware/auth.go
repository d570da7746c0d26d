package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keyline/license-backoffice/internal/service"
	"go.uber.org/zap"
)

const (
	authHeader       = "Authorization"
	bearerPrefix     = "Bearer "
	ContextClaimsKey = "operatorClaims"
)

// JWTAuthMiddleware guards operator routes. It verifies the bearer token and
// stores the claims in the gin context for downstream handlers.
func JWTAuthMiddleware(auth *service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("JWTAuthMiddleware")
	return func(c *gin.Context) {
		header := c.GetHeader(authHeader)
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			log.Debug("Authorization header without bearer prefix")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		claims, err := auth.ValidateToken(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			log.Warn("Token validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// ActorFromContext resolves the acting operator for audit attribution.
func ActorFromContext(c *gin.Context) string {
	if v, ok := c.Get(ContextClaimsKey); ok {
		if claims, ok := v.(*service.Claims); ok && claims.Username != "" {
			return claims.Username
		}
	}
	return "system"
}
