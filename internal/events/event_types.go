package events

import (
	"time"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketRaised            EventType = "ticket_raised"
	EventTicketAssigned          EventType = "ticket_assigned"
	EventTicketAccepted          EventType = "ticket_accepted"
	EventTicketRejected          EventType = "ticket_rejected"
	EventTicketReassigned        EventType = "ticket_reassigned"
	EventTicketStatusChanged     EventType = "ticket_status_changed"
	EventEngineerApprovalChanged EventType = "engineer_approval_changed"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{
	EventTicketRaised,
	EventTicketAssigned,
	EventTicketAccepted,
	EventTicketRejected,
	EventTicketReassigned,
	EventTicketStatusChanged,
	EventEngineerApprovalChanged,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role  domain.Role `json:"role"`
	Email string      `json:"email,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketRaisedPayload payload.
type TicketRaisedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	EngineerEmail string   `json:"engineer_email"`
	DistanceKm    *float64 `json:"distance_km,omitempty"`
}

// TicketEngineerPayload is used by accept and reject events.
type TicketEngineerPayload struct {
	EngineerEmail string `json:"engineer_email"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	PreviousEngineer *string `json:"previous_engineer,omitempty"`
	NewEngineer      string  `json:"new_engineer"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	UserEmail string              `json:"user_email"`
}

// EngineerApprovalPayload payload.
type EngineerApprovalPayload struct {
	EngineerEmail string `json:"engineer_email"`
	Approved      bool   `json:"approved"`
}
