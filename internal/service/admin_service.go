package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/dispatch"
	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/events"
	"github.com/fieldops/dispatch-service/internal/observability"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// AdminService backs the administrator console.
type AdminService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	retries    int
	now        func() time.Time
}

// AdminDependencies bundles collaborators.
type AdminDependencies struct {
	Store           repository.Store
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	MaxWriteRetries int
	Clock           func() time.Time
}

// NewAdminService creates the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	return &AdminService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     defaultLogger(deps.Logger),
		retries:    deps.MaxWriteRetries,
		now:        defaultClock(deps.Clock),
	}
}

// ListTickets returns every ticket, deferred ones included.
func (s *AdminService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets().List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return nonNilTickets(tickets), nil
}

// TicketsByStatus lists tickets in one status.
func (s *AdminService) TicketsByStatus(ctx context.Context, rawStatus string) ([]domain.Ticket, error) {
	if rawStatus == "" {
		return nil, apperrors.NewValidationError("status is required", nil)
	}
	filter, err := ticketFilter(TicketQuery{Status: rawStatus})
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return nonNilTickets(tickets), nil
}

// TicketsByPriority lists tickets at one priority level.
func (s *AdminService) TicketsByPriority(ctx context.Context, rawPriority string) ([]domain.Ticket, error) {
	if rawPriority == "" {
		return nil, apperrors.NewValidationError("priority is required", nil)
	}
	filter, err := ticketFilter(TicketQuery{Priority: rawPriority})
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return nonNilTickets(tickets), nil
}

// ListUsers returns every customer account.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// ListApprovedEngineers returns engineers that may log in and receive work.
func (s *AdminService) ListApprovedEngineers(ctx context.Context) ([]*domain.Engineer, error) {
	return s.listEngineers(ctx, repository.EngineerFilter{Approved: ptr(true)})
}

// PendingEngineers returns engineers awaiting an approval decision.
func (s *AdminService) PendingEngineers(ctx context.Context) ([]*domain.Engineer, error) {
	return s.listEngineers(ctx, repository.EngineerFilter{Approved: ptr(false)})
}

func (s *AdminService) listEngineers(ctx context.Context, filter repository.EngineerFilter) ([]*domain.Engineer, error) {
	engineers, err := s.store.Engineers().List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if engineers == nil {
		engineers = []*domain.Engineer{}
	}
	return engineers, nil
}

// GetEngineer returns one engineer.
func (s *AdminService) GetEngineer(ctx context.Context, email string) (*domain.Engineer, error) {
	engineer, err := s.store.Engineers().GetByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "Engineer", map[string]any{"email": email})
	}
	return engineer, nil
}

// EngineersByAvailability lists approved engineers working on day.
func (s *AdminService) EngineersByAvailability(ctx context.Context, day string) ([]*domain.Engineer, error) {
	weekday, err := NormalizeWeekday(day)
	if err != nil {
		return nil, err
	}
	engineers, err := s.store.Engineers().ListAvailable(ctx, repository.AvailabilityQuery{Weekday: weekday})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if engineers == nil {
		engineers = []*domain.Engineer{}
	}
	return engineers, nil
}

// EligibleEngineers ranks the engineers a ticket could be reassigned to on day.
// The current holder is excluded.
func (s *AdminService) EligibleEngineers(ctx context.Context, ticketID int64, day string) ([]dispatch.RankedEngineer, error) {
	weekday, err := NormalizeWeekday(day)
	if err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.store, ticketID)
	if err != nil {
		return nil, err
	}
	query := repository.AvailabilityQuery{Weekday: weekday, Specialization: &ticket.ServiceType}
	if holder, ok := ticket.AssignedEngineer(); ok {
		query.ExcludeEmail = &holder
	}
	engineers, err := s.store.Engineers().ListAvailable(ctx, query)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ranked := dispatch.RankEngineers(dispatch.FilterBySpecialization(engineers, ticket.ServiceType), ticket)
	if ranked == nil {
		ranked = []dispatch.RankedEngineer{}
	}
	return ranked, nil
}

// ApproveEngineer records the approval decision and notifies the engineer.
func (s *AdminService) ApproveEngineer(ctx context.Context, actor domain.Principal, email string, approved bool) (*domain.Engineer, error) {
	var engineer *domain.Engineer
	err := retryStale(ctx, s.retries, s.logger, s.metrics, "approve_engineer", func() error {
		current, err := s.store.Engineers().GetByEmail(ctx, email)
		if err != nil {
			return storeError(err, "Engineer", map[string]any{"email": email})
		}
		current.Approved = approved
		current.UpdatedAt = s.now()
		if err := s.store.Engineers().Update(ctx, current); err != nil {
			return storeError(err, "Engineer", map[string]any{"email": email})
		}
		engineer = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("engineer approval updated", zap.String("engineer", email), zap.Bool("approved", approved))
	publish(ctx, s.dispatcher, events.NewEvent(events.EventEngineerApprovalChanged, 0, actorOf(actor), s.now(),
		events.EngineerApprovalPayload{EngineerEmail: email, Approved: approved}))
	return engineer, nil
}
