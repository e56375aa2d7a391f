package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/dispatch-service/internal/api/dto"
	"github.com/fieldops/dispatch-service/internal/service"
)

// HazardsHandler manages site hazard reports.
type HazardsHandler struct {
	hazards *service.HazardService
}

// NewHazardsHandler constructs handler.
func NewHazardsHandler(hazards *service.HazardService) *HazardsHandler {
	return &HazardsHandler{hazards: hazards}
}

// List GET /api/hazards.
func (h *HazardsHandler) List(c *fiber.Ctx) error {
	hazards, err := h.hazards.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.HazardResponse, 0, len(hazards))
	for i := range hazards {
		items = append(items, dto.NewHazardResponse(&hazards[i]))
	}
	return ok(c, items)
}

// Get GET /api/hazards/:id.
func (h *HazardsHandler) Get(c *fiber.Ctx) error {
	hazard, err := h.hazards.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, dto.NewHazardResponse(hazard))
}

// Create POST /api/hazards.
func (h *HazardsHandler) Create(c *fiber.Ctx) error {
	var req dto.HazardRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	hazard, err := h.hazards.Create(c.UserContext(), hazardInput(req))
	if err != nil {
		return err
	}
	return created(c, "Hazard recorded", dto.NewHazardResponse(hazard))
}

// Update PATCH /api/hazards/:id.
func (h *HazardsHandler) Update(c *fiber.Ctx) error {
	var req dto.HazardRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	hazard, err := h.hazards.Update(c.UserContext(), c.Params("id"), hazardInput(req))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Hazard updated", dto.NewHazardResponse(hazard))
}

// Delete DELETE /api/hazards/:id.
func (h *HazardsHandler) Delete(c *fiber.Ctx) error {
	if err := h.hazards.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Hazard deleted", nil)
}

func hazardInput(req dto.HazardRequest) service.HazardInput {
	return service.HazardInput{
		HazardType:  req.HazardType,
		Description: req.Description,
		RiskLevel:   req.RiskLevel,
		Address:     req.Address,
		Pincode:     req.Pincode,
	}
}
