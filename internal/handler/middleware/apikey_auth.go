package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keyline/license-backoffice/internal/domain/apikey"
	"github.com/keyline/license-backoffice/internal/util"
)

const (
	apiKeyHeader = "X-API-Key"

	// ContextAPIKeyKey holds the authenticated agent key record for
	// handlers that want the product binding.
	ContextAPIKeyKey = "agentKey"
)

// APIKeyAuthMiddleware guards the public agent surface. Keys are looked up
// by prefix and compared by hash in constant time; the key's scope must
// allow the scope the route requires.
func APIKeyAuthMiddleware(repo apikey.Repository, required apikey.Scope, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("APIKeyAuthMiddleware")
	return func(c *gin.Context) {
		fullKey := c.GetHeader(apiKeyHeader)
		if fullKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		parts := strings.SplitN(fullKey, "_", 3)
		if len(parts) < 3 || parts[0] != "lbo" {
			log.Warn("Invalid API key format received")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key format"})
			return
		}
		prefix := parts[1]

		keyRecord, err := repo.FindByPrefix(c.Request.Context(), prefix)
		if err != nil {
			if errors.Is(err, apikey.ErrAPIKeyNotFound) {
				log.Warn("API key not found or disabled", zap.String("prefix", prefix))
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or disabled API key"})
				return
			}
			log.Error("Failed to query API key repository", zap.String("prefix", prefix), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error during API key validation"})
			return
		}

		receivedHash := util.HashAPIKey(fullKey)
		if subtle.ConstantTimeCompare([]byte(receivedHash), []byte(keyRecord.KeyHash)) != 1 {
			log.Warn("API key hash mismatch", zap.String("prefix", prefix), zap.String("key_id", keyRecord.ID.String()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or disabled API key"})
			return
		}

		if !keyRecord.Scope.Allows(required) {
			log.Warn("API key scope insufficient",
				zap.String("prefix", prefix),
				zap.String("key_scope", string(keyRecord.Scope)),
				zap.String("required_scope", string(required)),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "API key scope does not permit this operation"})
			return
		}

		// last_used_at is advisory; never block the request on it.
		go func(id uuid.UUID) {
			ctxAsync, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if errUpdate := repo.UpdateLastUsed(ctxAsync, id, time.Now().UTC()); errUpdate != nil {
				log.Error("Failed to update API key last used time", zap.String("key_id", id.String()), zap.Error(errUpdate))
			}
		}(keyRecord.ID)

		c.Set(ContextAPIKeyKey, keyRecord)
		c.Next()
	}
}
