package health

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Handlers serves the health endpoints. Unauthenticated.
type Handlers struct {
	Rdb   *redis.Client
	DB    DBPinger
	MLURL string
}

// JSON GET /health/json
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := CollectHealth(c.Context(), h.Rdb, h.DB, h.MLURL)
	return c.JSON(result)
}

// Live GET / — cheap liveness probe, no dependency pings.
func (h *Handlers) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
