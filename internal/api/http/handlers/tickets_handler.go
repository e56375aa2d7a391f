package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/dispatch-service/internal/api/dto"
	"github.com/fieldops/dispatch-service/internal/service"
)

// TicketsHandler manages ticket listing and lifecycle endpoints under /api/tasks.
type TicketsHandler struct {
	tickets   *service.TicketService
	lifecycle *service.LifecycleService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, lifecycle: lifecycle}
}

// ListTickets GET /api/tasks.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	return h.list(c, service.TicketQuery{Status: c.Query("status"), Priority: c.Query("priority")})
}

// ListByStatus GET /api/tasks/status/:status.
func (h *TicketsHandler) ListByStatus(c *fiber.Ctx) error {
	return h.list(c, service.TicketQuery{Status: c.Params("status")})
}

// ListByPriority GET /api/tasks/priority/:priority.
func (h *TicketsHandler) ListByPriority(c *fiber.Ctx) error {
	return h.list(c, service.TicketQuery{Priority: c.Params("priority")})
}

func (h *TicketsHandler) list(c *fiber.Ctx, query service.TicketQuery) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListForPrincipal(c.UserContext(), principal, query)
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketList(tickets))
}

// GetTicket GET /api/tasks/:ticketId.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketResponse(ticket))
}

// UpdateStatus PATCH /api/tasks/:ticketId/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.StatusUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ticket, err := h.lifecycle.UpdateTicketStatus(c.UserContext(), principal, id, req.Status)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Ticket status updated", dto.NewTicketResponse(ticket))
}

// Accept PATCH /api/tasks/:ticketId/accept.
func (h *TicketsHandler) Accept(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.AcceptTask(c.UserContext(), principal.Email(), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Task accepted", dto.NewTicketResponse(ticket))
}

// Reject PATCH /api/tasks/:ticketId/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.RejectTask(c.UserContext(), principal.Email(), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Task rejected", dto.NewTicketResponse(ticket))
}
