package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const healthProbeTimeout = 2 * time.Second

type HealthHandler struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	logger *zap.Logger
}

func NewHealthHandler(db *pgxpool.Pool, redisClient *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redisClient,
		logger: logger.Named("HealthHandler"),
	}
}

// Check probes postgres and redis with a short per-probe timeout so a hung
// dependency cannot stall the health endpoint itself.
func (h *HealthHandler) Check(c *gin.Context) {
	deps := gin.H{}
	healthy := true

	probe := func(name string, fn func(ctx context.Context) error) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			h.logger.Error("Dependency probe failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "error"
			healthy = false
			return
		}
		deps[name] = "ok"
	}

	probe("database", h.db.Ping)
	probe("redis", func(ctx context.Context) error {
		return h.redis.Ping(ctx).Err()
	})

	status := http.StatusOK
	body := gin.H{"status": "ok", "dependencies": deps}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
	}
	c.JSON(status, body)
}
