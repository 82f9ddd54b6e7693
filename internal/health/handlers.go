package health

import (
	"time"

	"kaffa-backend/internal/middleware"
	"kaffa-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type Handlers struct {
	Rdb            *redis.Client
	DB             DBPinger
	HealthAdminKey string
}

// JSON GET /health/json
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := CollectHealth(c.Context(), h.Rdb, h.DB)
	return c.JSON(result)
}

// Reset GET /health/reset?key= — clears traffic counters (admin only).
func (h *Handlers) Reset(c *fiber.Ctx) error {
	if h.HealthAdminKey == "" || c.Query("key") != h.HealthAdminKey {
		return response.Error(c, fiber.StatusForbidden, "Unauthorized")
	}
	if h.Rdb == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "Redis not configured")
	}

	ctx := c.Context()
	h.Rdb.Del(ctx,
		middleware.KeyReqTotal,
		middleware.KeyReqErrors,
		middleware.KeyResTime,
		middleware.KeyResCount,
		middleware.KeyLastReq,
	)
	h.Rdb.Set(ctx, middleware.KeyStartTime, time.Now().UnixMilli(), 0)

	return response.Success(c, "Stats reset successfully", nil)
}
