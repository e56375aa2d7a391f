package handlers

import (
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/dispatch-service/internal/api/dto"
	"github.com/fieldops/dispatch-service/internal/service"
)

// AdminHandler exposes the administrator console endpoints under /api/admin.
type AdminHandler struct {
	admin     *service.AdminService
	lifecycle *service.LifecycleService
	history   *service.HistoryService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(admin *service.AdminService, lifecycle *service.LifecycleService, history *service.HistoryService) *AdminHandler {
	return &AdminHandler{admin: admin, lifecycle: lifecycle, history: history}
}

// ListTickets GET /api/admin/tasks.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.admin.ListTickets(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketList(tickets))
}

// TicketHistory GET /api/admin/tasks/:ticketId/history.
func (h *AdminHandler) TicketHistory(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	entries, err := h.history.ListForTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewTicketHistoryResponse(&entries[i]))
	}
	return ok(c, items)
}

// TicketsByStatus GET /api/admin/status/:status.
func (h *AdminHandler) TicketsByStatus(c *fiber.Ctx) error {
	tickets, err := h.admin.TicketsByStatus(c.UserContext(), c.Params("status"))
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketList(tickets))
}

// TicketsByPriority GET /api/admin/priority/:level.
func (h *AdminHandler) TicketsByPriority(c *fiber.Ctx) error {
	tickets, err := h.admin.TicketsByPriority(c.UserContext(), c.Params("level"))
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketList(tickets))
}

// ListUsers GET /api/admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.admin.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return ok(c, items)
}

// ListEngineers GET /api/admin/engineers.
func (h *AdminHandler) ListEngineers(c *fiber.Ctx) error {
	engineers, err := h.admin.ListApprovedEngineers(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, dto.NewEngineerList(engineers))
}

// PendingEngineers GET /api/admin/approval/engineers.
func (h *AdminHandler) PendingEngineers(c *fiber.Ctx) error {
	engineers, err := h.admin.PendingEngineers(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, dto.NewEngineerList(engineers))
}

// GetEngineer GET /api/admin/engineers/:email.
func (h *AdminHandler) GetEngineer(c *fiber.Ctx) error {
	engineer, err := h.admin.GetEngineer(c.UserContext(), emailParam(c, "email"))
	if err != nil {
		return err
	}
	return ok(c, dto.NewEngineerResponse(engineer))
}

// EngineersByAvailability GET /api/admin/engineers/availability/:day.
func (h *AdminHandler) EngineersByAvailability(c *fiber.Ctx) error {
	engineers, err := h.admin.EngineersByAvailability(c.UserContext(), c.Params("day"))
	if err != nil {
		return err
	}
	return ok(c, dto.NewEngineerList(engineers))
}

// EligibleEngineers GET /api/admin/engineers/eligible/:ticketId/:day.
func (h *AdminHandler) EligibleEngineers(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ranked, err := h.admin.EligibleEngineers(c.UserContext(), id, c.Params("day"))
	if err != nil {
		return err
	}
	items := make([]dto.RankedEngineerResponse, 0, len(ranked))
	for _, r := range ranked {
		item := dto.RankedEngineerResponse{EngineerResponse: dto.NewEngineerResponse(r.Engineer)}
		if !math.IsInf(r.DistanceKm, 0) && !math.IsNaN(r.DistanceKm) {
			distance := r.DistanceKm
			item.DistanceKm = &distance
		}
		items = append(items, item)
	}
	return ok(c, items)
}

// Reassign PATCH /api/admin/reassign/:ticketId/:engineerEmail.
func (h *AdminHandler) Reassign(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.ReassignTicket(c.UserContext(), principal, id, emailParam(c, "engineerEmail"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Ticket reassigned", dto.NewTicketResponse(ticket))
}

// ApproveEngineer PATCH /api/admin/approve-engineer/:email.
func (h *AdminHandler) ApproveEngineer(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	approved := true
	if len(c.Body()) > 0 {
		var req dto.ApprovalRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if req.Approved != nil {
			approved = *req.Approved
		}
	}

	engineer, err := h.admin.ApproveEngineer(c.UserContext(), principal, emailParam(c, "email"), approved)
	if err != nil {
		return err
	}
	message := "Engineer approved"
	if !approved {
		message = "Engineer approval revoked"
	}
	return respond(c, fiber.StatusOK, message, dto.NewEngineerResponse(engineer))
}
