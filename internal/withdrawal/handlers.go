package withdrawal

import (
	"strconv"

	"kaffa-backend/internal/pkg/apperr"
	"kaffa-backend/internal/pkg/response"
	"kaffa-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Farmer POST /api/v1/withdrawals/farmer
func (h *Handlers) Farmer(c *fiber.Ctx) error {
	var body struct {
		FarmerAddress string `json:"farmer_address"`
		Amount        int64  `json:"amount"`
		GroveID       *int64 `json:"grove_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, 400, "Invalid request body")
	}
	if !validation.IsValidAddress(body.FarmerAddress) {
		return response.Error(c, 400, "Invalid farmer address format")
	}

	result, err := h.Service.ProcessFarmer(c.Context(), body.FarmerAddress, body.Amount, body.GroveID)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Withdrawal completed", result)
}

// FarmerHistory GET /api/v1/withdrawals/farmer/:address?limit=
func (h *Handlers) FarmerHistory(c *fiber.Ctx) error {
	address := c.Params("address")
	if !validation.IsValidAddress(address) {
		return response.Error(c, 400, "Invalid farmer address format")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	rows, err := h.Service.FarmerHistory(c.Context(), address, limit)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Withdrawal history", rows)
}

// Liquidity POST /api/v1/withdrawals/liquidity
func (h *Handlers) Liquidity(c *fiber.Ctx) error {
	var body struct {
		ProviderAddress string `json:"provider_address"`
		AssetAddress    string `json:"asset_address"`
		LPTokenAmount   int64  `json:"lp_token_amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, 400, "Invalid request body")
	}
	if !validation.IsValidAddress(body.ProviderAddress) {
		return response.Error(c, 400, "Invalid provider address format")
	}
	if body.AssetAddress == "" {
		return response.Error(c, 400, "Missing required field: asset_address")
	}

	result, err := h.Service.ProcessLiquidity(c.Context(), body.ProviderAddress, body.AssetAddress, body.LPTokenAmount)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Liquidity withdrawal completed", result)
}

// LiquidityHistory GET /api/v1/withdrawals/liquidity/:address?limit=
func (h *Handlers) LiquidityHistory(c *fiber.Ctx) error {
	address := c.Params("address")
	if !validation.IsValidAddress(address) {
		return response.Error(c, 400, "Invalid provider address format")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	rows, err := h.Service.LiquidityHistory(c.Context(), address, limit)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Liquidity withdrawal history", rows)
}
