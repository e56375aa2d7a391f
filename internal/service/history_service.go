package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/events"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// HistoryService records the ticket audit trail from lifecycle events.
type HistoryService struct {
	history    repository.TicketHistoryRepository
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// HistoryDependencies bundles collaborators for the audit trail.
type HistoryDependencies struct {
	HistoryRepo repository.TicketHistoryRepository
	TicketRepo  repository.TicketRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewHistoryService constructs the service.
func NewHistoryService(deps HistoryDependencies) *HistoryService {
	return &HistoryService{
		history:    deps.HistoryRepo,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     defaultLogger(deps.Logger),
	}
}

// RegisterHandlers subscribes to every ticket event.
func (s *HistoryService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		if eventType == events.EventEngineerApprovalChanged {
			continue
		}
		s.dispatcher.Subscribe(eventType, s.record)
	}
}

func (s *HistoryService) record(ctx context.Context, event events.Event) error {
	entry, err := historyEntry(event)
	if err != nil {
		return err
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return fmt.Errorf("record history for ticket %d: %w", event.TicketID, err)
	}
	return nil
}

// ListForTicket returns the audit trail of one ticket, oldest first.
func (s *HistoryService) ListForTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if ticketID <= 0 {
		return nil, apperrors.NewValidationError("Invalid ticket ID", nil)
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, storeError(err, "Ticket", map[string]any{"ticketId": ticketID})
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

func historyEntry(event events.Event) (*domain.TicketHistory, error) {
	entry := &domain.TicketHistory{
		TicketID:   event.TicketID,
		ActorRole:  event.Actor.Role,
		ActorEmail: event.Actor.Email,
		CreatedAt:  event.Timestamp,
	}
	switch payload := event.Payload.(type) {
	case events.TicketRaisedPayload:
		entry.ChangeType = domain.ChangeTypeRaised
		entry.NewValue = map[string]any{
			"serviceType": payload.Ticket.ServiceType,
			"priority":    payload.Ticket.Priority,
			"status":      payload.Ticket.Status,
		}
	case events.TicketAssignedPayload:
		entry.ChangeType = domain.ChangeTypeAssigned
		entry.NewValue = map[string]any{"engineerEmail": payload.EngineerEmail}
		if payload.DistanceKm != nil {
			entry.NewValue["distanceKm"] = *payload.DistanceKm
		}
	case events.TicketEngineerPayload:
		entry.ChangeType = domain.ChangeTypeAccepted
		entry.NewValue = map[string]any{"engineerEmail": payload.EngineerEmail}
		if event.Type == events.EventTicketRejected {
			entry.ChangeType = domain.ChangeTypeRejected
			entry.OldValue, entry.NewValue = entry.NewValue, nil
		}
	case events.TicketReassignedPayload:
		entry.ChangeType = domain.ChangeTypeReassigned
		entry.NewValue = map[string]any{"engineerEmail": payload.NewEngineer}
		if payload.PreviousEngineer != nil {
			entry.OldValue = map[string]any{"engineerEmail": *payload.PreviousEngineer}
		}
	case events.TicketStatusChangedPayload:
		entry.ChangeType = domain.ChangeTypeStatus
		entry.OldValue = map[string]any{"status": payload.OldStatus}
		entry.NewValue = map[string]any{"status": payload.NewStatus}
	default:
		return nil, fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return entry, nil
}
