package distribution

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

// Distribute POST /api/v1/distributions/distribute
func (h *Handlers) Distribute(c *fiber.Ctx) error {
	var body struct {
		HarvestID       int64   `json:"harvest_id"`
		TransactionHash *string `json:"transaction_hash"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, 400, "Invalid request body")
	}
	if body.HarvestID == 0 {
		return response.Error(c, 400, "Missing required field: harvest_id")
	}
	if body.TransactionHash != nil && !validation.IsValidTransactionHash(*body.TransactionHash) {
		return response.Error(c, 400, "Invalid transaction hash format")
	}

	calc, err := h.Service.Distribute(c.Context(), body.HarvestID, body.TransactionHash)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Revenue distributed successfully", calc)
}

// Pending GET /api/v1/distributions/pending
func (h *Handlers) Pending(c *fiber.Ctx) error {
	rows, err := h.Service.Pending(c.Context())
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Pending distributions", rows)
}

// Summary GET /api/v1/distributions/summary/:harvestId
func (h *Handlers) Summary(c *fiber.Ctx) error {
	harvestID, err := strconv.ParseInt(c.Params("harvestId"), 10, 64)
	if err != nil {
		return response.Error(c, 400, "Invalid harvest id")
	}

	summary, err := h.Service.GetSummary(c.Context(), harvestID)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Distribution summary", summary)
}

// HolderHistory GET /api/v1/distributions/holder/:address
func (h *Handlers) HolderHistory(c *fiber.Ctx) error {
	address := c.Params("address")
	if !validation.IsValidAddress(address) {
		return response.Error(c, 400, "Invalid holder address format")
	}

	rows, err := h.Service.HolderHistory(c.Context(), address)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Holder distribution history", rows)
}

// HolderEarnings GET /api/v1/distributions/holder/:address/earnings
func (h *Handlers) HolderEarnings(c *fiber.Ctx) error {
	address := c.Params("address")
	if !validation.IsValidAddress(address) {
		return response.Error(c, 400, "Invalid holder address format")
	}

	earnings, err := h.Service.HolderEarnings(c.Context(), address)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Holder earnings", earnings)
}
