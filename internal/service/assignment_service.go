package service

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/config"
	"github.com/fieldops/dispatch-service/internal/dispatch"
	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/events"
	"github.com/fieldops/dispatch-service/internal/geocoder"
	"github.com/fieldops/dispatch-service/internal/observability"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// MsgNoEngineers is reported when auto-assignment finds no eligible engineer.
const MsgNoEngineers = "No available engineers for this day"

// AssignmentResult describes the outcome of auto-assignment.
type AssignmentResult struct {
	Assigned      bool
	EngineerEmail string
	// DistanceKm is nil when the ticket has no coordinates.
	DistanceKm *float64
	Message    string
}

// TicketInput is the payload for raising a ticket.
type TicketInput struct {
	UserEmail   string
	ServiceType string
	Address     string
	Pincode     string
	Description string
}

// RaisedTicket is a freshly created ticket and how it was dispatched.
type RaisedTicket struct {
	Ticket     *domain.Ticket
	Assignment *AssignmentResult
}

// AssignmentService creates tickets and picks the engineer for them.
type AssignmentService struct {
	store      repository.Store
	geocoder   geocoder.Geocoder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	policy     dispatch.PriorityPolicy
	loc        *time.Location
	retries    int
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store      repository.Store
	Geocoder   geocoder.Geocoder
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     config.AssignmentConfig
	Clock      func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) (*AssignmentService, error) {
	policy, err := dispatch.ParsePriorityPolicy(deps.Config.PriorityPolicy)
	if err != nil {
		return nil, err
	}
	loc, err := deps.Config.Location()
	if err != nil {
		return nil, err
	}
	return &AssignmentService{
		store:      deps.Store,
		geocoder:   deps.Geocoder,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     defaultLogger(deps.Logger),
		policy:     policy,
		loc:        loc,
		retries:    deps.Config.MaxWriteRetries,
		now:        defaultClock(deps.Clock),
	}, nil
}

// RaiseTicket creates a ticket on behalf of the signed-in user.
func (s *AssignmentService) RaiseTicket(ctx context.Context, principal domain.Principal, input TicketInput) (*RaisedTicket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	input.UserEmail = principal.Email()
	return s.addTicket(ctx, principal, input)
}

// AddTicket creates a ticket, stores it, and runs auto-assignment.
func (s *AssignmentService) AddTicket(ctx context.Context, input TicketInput) (*RaisedTicket, error) {
	return s.addTicket(ctx, nil, input)
}

func (s *AssignmentService) addTicket(ctx context.Context, principal domain.Principal, input TicketInput) (*RaisedTicket, error) {
	ticket, err := s.newTicket(ctx, input)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Tickets().NextID(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.ID = id
	ticket.Priority = s.policy.InitialPriority(ticket)
	if err := s.store.Tickets().Create(ctx, ticket); err != nil {
		return nil, storeError(err, "Ticket", map[string]any{"ticket_id": id})
	}

	result, err := s.Assign(ctx, ticket)
	if err != nil {
		// the ticket already exists; report it unassigned rather than failing the raise
		s.logger.Error("auto-assignment failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		result = &AssignmentResult{Message: "Assignment failed. An administrator will assign this ticket."}
		if fresh := s.markUnassigned(ctx, ticket.ID); fresh != nil {
			ticket = fresh
		}
	}

	publish(ctx, s.dispatcher, events.NewEvent(events.EventTicketRaised, ticket.ID, actorOf(principal), s.now(),
		events.TicketRaisedPayload{Ticket: *ticket}))
	return &RaisedTicket{Ticket: ticket, Assignment: result}, nil
}

// markUnassigned stores the "Not Assigned" marker on a ticket whose
// auto-assignment failed, unless something else already assigned it.
func (s *AssignmentService) markUnassigned(ctx context.Context, ticketID int64) *domain.Ticket {
	var marked *domain.Ticket
	err := retryStale(ctx, s.retries, s.logger, s.metrics, "mark_unassigned", func() error {
		current, err := s.store.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return storeError(err, "Ticket", map[string]any{"ticket_id": ticketID})
		}
		if _, assigned := current.AssignedEngineer(); !assigned {
			current.MarkNotAssigned()
			current.Accepted = false
			current.UpdatedAt = s.now()
			if err := s.store.Tickets().Update(ctx, current); err != nil {
				return storeError(err, "Ticket", map[string]any{"ticket_id": ticketID})
			}
		}
		marked = current
		return nil
	})
	if err != nil {
		s.logger.Error("could not mark ticket unassigned", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return nil
	}
	return marked
}

func (s *AssignmentService) newTicket(ctx context.Context, input TicketInput) (*domain.Ticket, error) {
	details := map[string]any{}
	email := strings.TrimSpace(input.UserEmail)
	if email == "" {
		details["userEmail"] = "required"
	}
	serviceType, ok := domain.ParseServiceType(input.ServiceType)
	if !ok {
		details["serviceType"] = "must be installation or fault"
	}
	pincode := strings.TrimSpace(input.Pincode)
	if pincode == "" {
		details["pincode"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	now := s.now()
	ticket := &domain.Ticket{
		UserEmail:   email,
		ServiceType: serviceType,
		Address:     strings.TrimSpace(input.Address),
		Pincode:     pincode,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	resolved, err := s.resolve(ctx, pincode)
	if err != nil {
		s.metrics.RecordDispatch(observability.OutcomeGeocodeMiss)
		s.logger.Warn("geocoding failed, raising ticket without coordinates",
			zap.String("pincode", pincode),
			zap.Error(err))
		return ticket, nil
	}
	loc := resolved.Location
	ticket.Location = &loc
	if ticket.Address == "" {
		ticket.Address = resolved.DisplayAddress
	}
	return ticket, nil
}

func (s *AssignmentService) resolve(ctx context.Context, pincode string) (*geocoder.Result, error) {
	if s.geocoder == nil {
		return nil, geocoder.ErrNotFound
	}
	result, err := s.geocoder.Resolve(ctx, pincode)
	if err != nil {
		return nil, err
	}
	if !result.Location.Valid() {
		return nil, geocoder.ErrNotFound
	}
	return result, nil
}

// Assign picks the nearest available engineer for the ticket and records the
// tentative assignment on both records. The ticket is updated in place.
func (s *AssignmentService) Assign(ctx context.Context, ticket *domain.Ticket) (*AssignmentResult, error) {
	if ticket == nil {
		return nil, apperrors.NewValidationError("ticket required", nil)
	}
	var result *AssignmentResult
	var assigned *domain.Ticket
	err := retryStale(ctx, s.retries, s.logger, s.metrics, "assign", func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			current, err := tx.Tickets().GetByID(ctx, ticket.ID)
			if err != nil {
				return storeError(err, "Ticket", map[string]any{"ticket_id": ticket.ID})
			}
			res, err := s.assignWithin(ctx, tx, current)
			if err != nil {
				return err
			}
			result, assigned = res, current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	*ticket = *assigned

	if !result.Assigned {
		s.metrics.RecordDispatch(observability.OutcomeUnassigned)
		s.logger.Info("no engineer available",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("service_type", string(ticket.ServiceType)))
		return result, nil
	}
	s.metrics.RecordDispatch(observability.OutcomeAssigned)
	s.logger.Info("ticket assigned",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("engineer", result.EngineerEmail),
		zap.Float64p("distance_km", result.DistanceKm))
	publish(ctx, s.dispatcher, events.NewEvent(events.EventTicketAssigned, ticket.ID, actorOf(nil), s.now(),
		events.TicketAssignedPayload{EngineerEmail: result.EngineerEmail, DistanceKm: result.DistanceKm}))
	return result, nil
}

func (s *AssignmentService) assignWithin(ctx context.Context, tx repository.Store, ticket *domain.Ticket) (*AssignmentResult, error) {
	day := dispatch.Weekday(ticket.CreatedAt, s.loc)
	available, err := tx.Engineers().ListAvailable(ctx, repository.AvailabilityQuery{Weekday: day})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ranked := dispatch.RankEngineers(dispatch.FilterBySpecialization(available, ticket.ServiceType), ticket)

	ticket.UpdatedAt = s.now()
	if len(ranked) == 0 {
		ticket.MarkNotAssigned()
		ticket.Accepted = false
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return nil, storeError(err, "Ticket", map[string]any{"ticket_id": ticket.ID})
		}
		return &AssignmentResult{Message: MsgNoEngineers}, nil
	}

	best := ranked[0]
	engineer := best.Engineer
	if engineer.AddTask(ticket.ID) {
		engineer.UpdatedAt = ticket.UpdatedAt
		if err := tx.Engineers().Update(ctx, engineer); err != nil {
			return nil, storeError(err, "Engineer", map[string]any{"email": engineer.Email})
		}
	}
	ticket.AssignTo(engineer.Email)
	ticket.Accepted = false
	ticket.Priority = s.policy.AssignedPriority(ticket, engineer)
	if err := tx.Tickets().Update(ctx, ticket); err != nil {
		return nil, storeError(err, "Ticket", map[string]any{"ticket_id": ticket.ID})
	}
	result := &AssignmentResult{Assigned: true, EngineerEmail: engineer.Email}
	if !math.IsInf(best.DistanceKm, 0) && !math.IsNaN(best.DistanceKm) {
		result.DistanceKm = ptr(best.DistanceKm)
	}
	return result, nil
}
