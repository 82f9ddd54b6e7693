package balance

import (
	"kaffa-backend/internal/pkg/response"
	"kaffa-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// GetBalance GET /api/v1/balances/:address
func (h *Handlers) GetBalance(c *fiber.Ctx) error {
	address := c.Params("address")
	if !validation.IsValidAddress(address) {
		return response.Error(c, 400, "Invalid farmer address format")
	}

	b, err := h.Service.Get(c.Context(), address)
	if err != nil {
		return response.Error(c, 500, "Failed to load farmer balance")
	}
	return response.Success(c, "Farmer balance", b)
}
