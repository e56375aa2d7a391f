package domain

import (
	"strings"
	"time"
)

// NotAssigned is stored as the engineer reference when auto-assignment found nobody.
const NotAssigned = "Not Assigned"

// ServiceType enumerates the kind of field work a ticket requests.
type ServiceType string

const (
	ServiceTypeInstallation ServiceType = "installation"
	ServiceTypeFault        ServiceType = "fault"
)

// ParseServiceType normalizes and validates a service type.
func ParseServiceType(raw string) (ServiceType, bool) {
	switch st := ServiceType(strings.ToLower(strings.TrimSpace(raw))); st {
	case ServiceTypeInstallation, ServiceTypeFault:
		return st, true
	default:
		return "", false
	}
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusFailed     TicketStatus = "failed"
	TicketStatusDeferred   TicketStatus = "deferred"
)

// ParseTicketStatus validates a status against the fixed set.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	switch st := TicketStatus(raw); st {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusCompleted, TicketStatusFailed, TicketStatusDeferred:
		return st, true
	default:
		return "", false
	}
}

// TicketPriority enumerates dispatch urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ParseTicketPriority validates a priority level.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	switch p := TicketPriority(strings.ToLower(raw)); p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return p, true
	default:
		return "", false
	}
}

// Ticket is the aggregate for a field-service request raised by a user.
type Ticket struct {
	ID            int64
	UserEmail     string
	ServiceType   ServiceType
	Location      *Location
	Address       string
	Pincode       string
	Description   string
	Priority      TicketPriority
	Status        TicketStatus
	Accepted      bool
	EngineerEmail *string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AssignedEngineer returns the engineer currently referenced by the ticket.
// The "Not Assigned" sentinel counts as no engineer.
func (t *Ticket) AssignedEngineer() (string, bool) {
	if t == nil || t.EngineerEmail == nil {
		return "", false
	}
	email := *t.EngineerEmail
	if email == "" || email == NotAssigned {
		return "", false
	}
	return email, true
}

// AssignTo points the ticket at an engineer.
func (t *Ticket) AssignTo(email string) {
	t.EngineerEmail = &email
}

// ClearEngineer drops the engineer reference.
func (t *Ticket) ClearEngineer() {
	t.EngineerEmail = nil
	t.Accepted = false
}

// MarkNotAssigned records that auto-assignment produced no engineer.
func (t *Ticket) MarkNotAssigned() {
	label := NotAssigned
	t.EngineerEmail = &label
}

// IsAssignedTo reports whether the ticket references the given engineer.
func (t *Ticket) IsAssignedTo(email string) bool {
	current, ok := t.AssignedEngineer()
	return ok && current == email
}
