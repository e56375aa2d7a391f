package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/events"
	"github.com/fieldops/dispatch-service/internal/observability"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// Lifecycle failure messages.
const (
	MsgAlreadyAssigned = "Task already assigned to this engineer"
	MsgAcceptedByOther = "Task already accepted by another engineer"
	MsgNotAssigned     = "Task is not assigned to this engineer"
	MsgSameEngineer    = "Cannot reassign ticket to the same engineer who deferred it"
)

// LifecycleService moves tickets between engineers and through their statuses.
type LifecycleService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	retries    int
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators.
type LifecycleDependencies struct {
	Store           repository.Store
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	MaxWriteRetries int
	Clock           func() time.Time
}

// NewLifecycleService creates the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     defaultLogger(deps.Logger),
		retries:    deps.MaxWriteRetries,
		now:        defaultClock(deps.Clock),
	}
}

// AcceptTask confirms that the engineer takes the ticket. A tentative holder
// other than the engineer loses the ticket from its workload.
func (s *LifecycleService) AcceptTask(ctx context.Context, engineerEmail string, ticketID int64) (*domain.Ticket, error) {
	var accepted *domain.Ticket
	err := s.inTx(ctx, "accept", func(tx repository.Store) error {
		engineer, err := tx.Engineers().GetByEmail(ctx, engineerEmail)
		if err != nil {
			return storeError(err, "Engineer", map[string]any{"email": engineerEmail})
		}
		ticket, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Accepted {
			if ticket.IsAssignedTo(engineer.Email) {
				return apperrors.NewConflict(MsgAlreadyAssigned, map[string]any{"ticket_id": ticketID})
			}
			return apperrors.NewConflict(MsgAcceptedByOther, map[string]any{"ticket_id": ticketID})
		}

		now := s.now()
		if holder, ok := ticket.AssignedEngineer(); ok && holder != engineer.Email {
			if err := releaseTask(ctx, tx, holder, ticket.ID, now); err != nil {
				return err
			}
		}
		if engineer.AddTask(ticket.ID) {
			engineer.UpdatedAt = now
			if err := tx.Engineers().Update(ctx, engineer); err != nil {
				return storeError(err, "Engineer", map[string]any{"email": engineer.Email})
			}
		}
		ticket.AssignTo(engineer.Email)
		ticket.Accepted = true
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return storeError(err, "Ticket", map[string]any{"ticket_id": ticket.ID})
		}
		accepted = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task accepted", zap.Int64("ticket_id", ticketID), zap.String("engineer", engineerEmail))
	publish(ctx, s.dispatcher, events.NewEvent(events.EventTicketAccepted, ticketID,
		actorOf(domain.EngineerPrincipal{EmailAddr: engineerEmail}), s.now(),
		events.TicketEngineerPayload{EngineerEmail: engineerEmail}))
	return accepted, nil
}

// RejectTask hands the ticket back. Its status is left unchanged.
func (s *LifecycleService) RejectTask(ctx context.Context, engineerEmail string, ticketID int64) (*domain.Ticket, error) {
	var rejected *domain.Ticket
	err := s.inTx(ctx, "reject", func(tx repository.Store) error {
		engineer, err := tx.Engineers().GetByEmail(ctx, engineerEmail)
		if err != nil {
			return storeError(err, "Engineer", map[string]any{"email": engineerEmail})
		}
		ticket, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if !ticket.IsAssignedTo(engineer.Email) {
			return apperrors.NewConflict(MsgNotAssigned, map[string]any{"ticket_id": ticketID})
		}

		now := s.now()
		if engineer.RemoveTask(ticket.ID) {
			engineer.UpdatedAt = now
			if err := tx.Engineers().Update(ctx, engineer); err != nil {
				return storeError(err, "Engineer", map[string]any{"email": engineer.Email})
			}
		}
		ticket.ClearEngineer()
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return storeError(err, "Ticket", map[string]any{"ticket_id": ticket.ID})
		}
		rejected = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task rejected", zap.Int64("ticket_id", ticketID), zap.String("engineer", engineerEmail))
	publish(ctx, s.dispatcher, events.NewEvent(events.EventTicketRejected, ticketID,
		actorOf(domain.EngineerPrincipal{EmailAddr: engineerEmail}), s.now(),
		events.TicketEngineerPayload{EngineerEmail: engineerEmail}))
	return rejected, nil
}

// UpdateTicketStatus sets a new status. Engineers may only update tickets they
// hold. Completing a ticket notifies its owner.
func (s *LifecycleService) UpdateTicketStatus(ctx context.Context, actor domain.Principal, ticketID int64, rawStatus string) (*domain.Ticket, error) {
	status, ok := domain.ParseTicketStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Invalid status: %s", rawStatus), map[string]any{
			"allowed": []domain.TicketStatus{
				domain.TicketStatusOpen,
				domain.TicketStatusInProgress,
				domain.TicketStatusCompleted,
				domain.TicketStatusFailed,
				domain.TicketStatusDeferred,
			},
		})
	}

	var (
		updated   *domain.Ticket
		oldStatus domain.TicketStatus
	)
	err := s.inTx(ctx, "update_status", func(tx repository.Store) error {
		ticket, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if eng, isEngineer := actor.(domain.EngineerPrincipal); isEngineer && !ticket.IsAssignedTo(eng.Email()) {
			return apperrors.NewForbidden(MsgNotAssigned)
		}
		oldStatus = ticket.Status
		ticket.Status = status
		ticket.UpdatedAt = s.now()
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return storeError(err, "Ticket", map[string]any{"ticket_id": ticket.ID})
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket status updated",
		zap.Int64("ticket_id", ticketID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(status)))
	publish(ctx, s.dispatcher, events.NewEvent(events.EventTicketStatusChanged, ticketID, actorOf(actor), s.now(),
		events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: status, UserEmail: updated.UserEmail}))
	return updated, nil
}

// ReassignTicket moves a ticket to another engineer as a fresh, unaccepted
// open assignment.
func (s *LifecycleService) ReassignTicket(ctx context.Context, actor domain.Principal, ticketID int64, newEngineerEmail string) (*domain.Ticket, error) {
	var (
		reassigned *domain.Ticket
		previous   *string
	)
	err := s.inTx(ctx, "reassign", func(tx repository.Store) error {
		ticket, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		engineer, err := tx.Engineers().GetByEmail(ctx, newEngineerEmail)
		if err != nil {
			return storeError(err, "Engineer", map[string]any{"email": newEngineerEmail})
		}
		if !engineer.Specialization.Matches(ticket.ServiceType) {
			return apperrors.NewConflict(
				fmt.Sprintf("Engineer specialization (%s) does not match ticket service type (%s)",
					engineer.Specialization, ticket.ServiceType),
				map[string]any{"ticket_id": ticketID, "email": engineer.Email})
		}
		if !engineer.Approved {
			return apperrors.NewConflict("Engineer is not approved", map[string]any{"email": engineer.Email})
		}

		now := s.now()
		previous = nil
		if holder, ok := ticket.AssignedEngineer(); ok {
			if holder == engineer.Email {
				return apperrors.NewConflict(MsgSameEngineer, map[string]any{"ticket_id": ticketID, "email": holder})
			}
			previous = ptr(holder)
			if err := releaseTask(ctx, tx, holder, ticket.ID, now); err != nil {
				return err
			}
		}
		if engineer.AddTask(ticket.ID) {
			engineer.UpdatedAt = now
			if err := tx.Engineers().Update(ctx, engineer); err != nil {
				return storeError(err, "Engineer", map[string]any{"email": engineer.Email})
			}
		}
		ticket.AssignTo(engineer.Email)
		ticket.Accepted = false
		ticket.Status = domain.TicketStatusOpen
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return storeError(err, "Ticket", map[string]any{"ticket_id": ticket.ID})
		}
		reassigned = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket reassigned",
		zap.Int64("ticket_id", ticketID),
		zap.Stringp("from", previous),
		zap.String("to", newEngineerEmail))
	publish(ctx, s.dispatcher, events.NewEvent(events.EventTicketReassigned, ticketID, actorOf(actor), s.now(),
		events.TicketReassignedPayload{PreviousEngineer: previous, NewEngineer: newEngineerEmail}))
	return reassigned, nil
}

func (s *LifecycleService) inTx(ctx context.Context, op string, fn func(tx repository.Store) error) error {
	return retryStale(ctx, s.retries, s.logger, s.metrics, op, func() error {
		return s.store.WithinTx(ctx, fn)
	})
}

func loadTicket(ctx context.Context, tx repository.Store, ticketID int64) (*domain.Ticket, error) {
	if ticketID <= 0 {
		return nil, apperrors.NewValidationError("Invalid ticket ID", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := tx.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "Ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// releaseTask drops the ticket from an engineer's workload. A holder that no
// longer exists is ignored.
func releaseTask(ctx context.Context, tx repository.Store, email string, ticketID int64, now time.Time) error {
	holder, err := tx.Engineers().GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	if !holder.RemoveTask(ticketID) {
		return nil
	}
	holder.UpdatedAt = now
	if err := tx.Engineers().Update(ctx, holder); err != nil {
		return storeError(err, "Engineer", map[string]any{"email": email})
	}
	return nil
}
