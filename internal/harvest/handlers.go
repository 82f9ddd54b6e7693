package harvest

import (
	"strconv"

	"kaffa-backend/internal/pkg/apperr"
	"kaffa-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Report POST /api/v1/harvests/report
func (h *Handlers) Report(c *fiber.Ctx) error {
	var req ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, 400, "Invalid request body")
	}
	if req.GroveName == "" || req.FarmerAddress == "" {
		return response.Error(c, 400, "Missing required fields: grove_name, farmer_address")
	}

	record, err := h.Service.Report(c.Context(), req)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}

	return response.SuccessCreated(c, "Harvest reported successfully", fiber.Map{
		"harvest_id":     record.ID,
		"grove_name":     req.GroveName,
		"yield_kg":       record.YieldKg,
		"quality_grade":  record.QualityGrade,
		"total_revenue":  record.TotalRevenue,
		"farmer_share":   record.FarmerShare,
		"investor_share": record.InvestorShare,
		"harvest_date":   record.HarvestDate,
	})
}

// History GET /api/v1/harvests/history?groveName=&farmerAddress=&distributed=&limit=
func (h *Handlers) History(c *fiber.Ctx) error {
	filter := HistoryFilter{
		GroveName:     c.Query("groveName"),
		FarmerAddress: c.Query("farmerAddress"),
	}
	if v := c.Query("distributed"); v != "" {
		d := v == "true"
		filter.Distributed = &d
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	entries, err := h.Service.History(c.Context(), filter)
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Harvest history", entries)
}

// Stats GET /api/v1/harvests/stats?groveName=&farmerAddress=
func (h *Handlers) Stats(c *fiber.Ctx) error {
	stats, err := h.Service.GetStats(c.Context(), c.Query("groveName"), c.Query("farmerAddress"))
	if err != nil {
		return response.Error(c, apperr.HTTPStatus(err), err.Error())
	}
	return response.Success(c, "Harvest statistics", stats)
}
