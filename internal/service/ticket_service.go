package service

import (
	"context"
	"strings"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// TicketQuery narrows a principal's ticket listing. Empty strings match everything.
type TicketQuery struct {
	Status   string
	Priority string
}

// TicketService answers read-only ticket queries scoped to the caller.
type TicketService struct {
	tickets repository.TicketRepository
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{tickets: deps.TicketRepo}
}

// ListForPrincipal lists the tickets the caller may see. Deferred tickets are
// hidden from users and engineers unless they filter by status.
func (s *TicketService) ListForPrincipal(ctx context.Context, principal domain.Principal, query TicketQuery) ([]domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	filter, err := ticketFilter(query)
	if err != nil {
		return nil, err
	}
	scope := principal.TicketScope()
	filter.UserEmail = scope.UserEmail
	filter.EngineerEmail = scope.EngineerEmail
	if principal.Role() != domain.RoleAdmin && filter.Status == nil {
		filter.ExcludeDeferred = true
	}

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return nonNilTickets(tickets), nil
}

// GetTicket returns one ticket if the caller may see it.
func (s *TicketService) GetTicket(ctx context.Context, principal domain.Principal, ticketID int64) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if ticketID <= 0 {
		return nil, apperrors.NewValidationError("Invalid ticket ID", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "Ticket", map[string]any{"ticket_id": ticketID})
	}
	if !canSee(principal, ticket) {
		// hide existence from callers outside the ticket's scope
		return nil, apperrors.NewNotFound("Ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func canSee(principal domain.Principal, ticket *domain.Ticket) bool {
	scope := principal.TicketScope()
	if scope.UserEmail != nil && ticket.UserEmail != *scope.UserEmail {
		return false
	}
	if scope.EngineerEmail != nil && !ticket.IsAssignedTo(*scope.EngineerEmail) {
		return false
	}
	return true
}

func ticketFilter(query TicketQuery) (repository.TicketFilter, error) {
	var filter repository.TicketFilter
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return filter, apperrors.NewValidationError("Invalid status: "+raw, map[string]any{"status": raw})
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(query.Priority); raw != "" {
		priority, ok := domain.ParseTicketPriority(raw)
		if !ok {
			return filter, apperrors.NewValidationError("Invalid priority level: "+raw, map[string]any{"priority": raw})
		}
		filter.Priority = &priority
	}
	return filter, nil
}

func nonNilTickets(tickets []domain.Ticket) []domain.Ticket {
	if tickets == nil {
		return []domain.Ticket{}
	}
	return tickets
}
