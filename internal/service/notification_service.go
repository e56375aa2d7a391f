package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/events"
	"github.com/fieldops/dispatch-service/internal/notify"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// Email subjects sent by the service.
const (
	SubjectTicketRaised         = "Ticket Raised Successfully"
	SubjectTicketResolved       = "Ticket resolved"
	SubjectRegistrationApproved = "Registration Approved"
	SubjectRegistrationDenied   = "Registration Denied"
)

const (
	approvedBody = "Dear Engineer, \nWelcome! your registration was successfully approved. You can login now.\nBest Regards\nTeam Telecom Services."
	deniedBody   = "Dear Engineer, \nSorry, your registration was denied. Please try again later.\nBest Regards\nTeam Telecom Services."
)

// NotificationService turns lifecycle events into emails and in-app messages.
// Delivery failures are logged and never reach the operation that caused them.
type NotificationService struct {
	dispatcher events.Dispatcher
	deliverer  Deliverer
	inbox      repository.NotificationRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Deliverer  Deliverer
	Inbox      repository.NotificationRepository
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		deliverer:  deps.Deliverer,
		inbox:      deps.Inbox,
		logger:     defaultLogger(deps.Logger),
		now:        defaultClock(deps.Clock),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketRaised, n.handleTicketRaised)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventEngineerApprovalChanged, n.handleApprovalChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketReassigned, n.handleTicketReassigned)
}

func (n *NotificationService) handleTicketRaised(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketRaisedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	ticket := payload.Ticket
	engineer := domain.NotAssigned
	if email, assigned := ticket.AssignedEngineer(); assigned {
		engineer = email
	}
	body := fmt.Sprintf("Dear User, \nTicket with %d raised successfully and assigned to %s.\n"+
		"\nTicket Details:\n"+
		"Ticket ID: %d\n"+
		"Service Type: %s\n"+
		"Description: %s\n"+
		"Location: %s\n"+
		"Created at: %s\n"+
		"Best Regards\nTelecom Services",
		ticket.ID, engineer, ticket.ID, ticket.ServiceType, ticket.Description, ticket.Address,
		ticket.CreatedAt.Format(time.RFC3339))
	return n.deliver(ctx, notify.Message{To: ticket.UserEmail, Subject: SubjectTicketRaised, Body: body})
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.NewStatus != domain.TicketStatusCompleted {
		return nil
	}
	return n.deliver(ctx, notify.Message{
		To:      payload.UserEmail,
		Subject: SubjectTicketResolved,
		Body:    fmt.Sprintf("Your ticket with id %d has been resolved.", event.TicketID),
	})
}

func (n *NotificationService) handleApprovalChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EngineerApprovalPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	msg := notify.Message{To: payload.EngineerEmail, Subject: SubjectRegistrationDenied, Body: deniedBody}
	if payload.Approved {
		msg.Subject, msg.Body = SubjectRegistrationApproved, approvedBody
	}
	return n.deliver(ctx, msg)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return n.post(ctx, payload.EngineerEmail, fmt.Sprintf("Ticket #%d has been assigned to you.", event.TicketID))
}

func (n *NotificationService) handleTicketReassigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReassignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return n.post(ctx, payload.NewEngineer, fmt.Sprintf("Ticket #%d has been reassigned to you.", event.TicketID))
}

func (n *NotificationService) deliver(ctx context.Context, msg notify.Message) error {
	if n.deliverer == nil {
		return nil
	}
	if err := n.deliverer.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("deliver %q to %s: %w", msg.Subject, msg.To, err)
	}
	return nil
}

// post stores an in-app message when an inbox is configured.
func (n *NotificationService) post(ctx context.Context, email, message string) error {
	if n.inbox == nil {
		return nil
	}
	_, err := n.Create(ctx, email, message)
	return err
}

// Send queues an arbitrary email.
func (n *NotificationService) Send(ctx context.Context, msg notify.Message) error {
	details := map[string]any{}
	if strings.TrimSpace(msg.To) == "" {
		details["userEmail"] = "required"
	}
	if strings.TrimSpace(msg.Subject) == "" {
		details["subject"] = "required"
	}
	if strings.TrimSpace(msg.Body) == "" {
		details["emailBody"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("Missing required fields", details)
	}
	if n.deliverer == nil {
		return apperrors.NewCollaboratorError("notification relay", nil)
	}
	if err := n.deliverer.Deliver(ctx, msg); err != nil {
		return apperrors.NewCollaboratorError("notification relay", err)
	}
	return nil
}

// Create stores an in-app message for email.
func (n *NotificationService) Create(ctx context.Context, email, message string) (*domain.Notification, error) {
	email = strings.TrimSpace(email)
	message = strings.TrimSpace(message)
	if email == "" || message == "" {
		return nil, apperrors.NewValidationError("email and message are required", nil)
	}
	notification := &domain.Notification{
		ID:        uuid.NewString(),
		Email:     email,
		Message:   message,
		CreatedAt: n.now(),
	}
	if err := n.inbox.Create(ctx, notification); err != nil {
		return nil, apperrors.MapError(err)
	}
	return notification, nil
}

// ListByEmail returns the in-app messages for email, newest first.
func (n *NotificationService) ListByEmail(ctx context.Context, email string) ([]domain.Notification, error) {
	list, err := n.inbox.ListByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

// MarkRead flags an in-app message as read.
func (n *NotificationService) MarkRead(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid notification id", map[string]any{"id": id})
	}
	return storeError(n.inbox.MarkRead(ctx, id), "Notification", map[string]any{"id": id})
}

// Dismiss deletes an in-app message.
func (n *NotificationService) Dismiss(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid notification id", map[string]any{"id": id})
	}
	return storeError(n.inbox.Delete(ctx, id), "Notification", map[string]any{"id": id})
}
