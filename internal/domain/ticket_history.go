package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeRaised     TicketChangeType = "RAISED"
	ChangeTypeAssigned   TicketChangeType = "ASSIGNED"
	ChangeTypeAccepted   TicketChangeType = "ACCEPTED"
	ChangeTypeRejected   TicketChangeType = "REJECTED"
	ChangeTypeReassigned TicketChangeType = "REASSIGNED"
	ChangeTypeStatus     TicketChangeType = "STATUS_CHANGE"
)

// TicketHistory is an immutable audit trail entry for one lifecycle step.
type TicketHistory struct {
	ID         int64
	TicketID   int64
	ActorRole  Role
	ActorEmail string
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
