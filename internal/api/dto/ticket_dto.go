package dto

import (
	"time"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// RaiseTicketRequest payload. The owner comes from the authenticated caller.
type RaiseTicketRequest struct {
	ServiceType string `json:"serviceType"`
	Address     string `json:"address"`
	Pincode     string `json:"pincode"`
	Description string `json:"description"`
}

// StatusUpdateRequest payload for PATCH /api/tasks/:ticketId/status.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// ApprovalRequest payload for engineer approval. Missing means approve.
type ApprovalRequest struct {
	Approved *bool `json:"approved"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	ID            int64                 `json:"ticketId"`
	UserEmail     string                `json:"userEmail"`
	ServiceType   domain.ServiceType    `json:"serviceType"`
	Location      *domain.Location      `json:"location,omitempty"`
	Address       string                `json:"address"`
	Pincode       string                `json:"pincode"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	Accepted      bool                  `json:"accepted"`
	EngineerEmail *string               `json:"engineerEmail"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// AssignmentResponse summarizes the auto-assignment outcome.
type AssignmentResponse struct {
	Assigned      bool     `json:"assigned"`
	EngineerEmail string   `json:"engineerEmail,omitempty"`
	DistanceKm    *float64 `json:"distanceKm,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// RaiseTicketResponse bundles the stored ticket and its assignment.
type RaiseTicketResponse struct {
	Ticket     TicketResponse      `json:"ticket"`
	Assignment *AssignmentResponse `json:"assignment,omitempty"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		UserEmail:     t.UserEmail,
		ServiceType:   t.ServiceType,
		Location:      t.Location,
		Address:       t.Address,
		Pincode:       t.Pincode,
		Description:   t.Description,
		Priority:      t.Priority,
		Status:        t.Status,
		Accepted:      t.Accepted,
		EngineerEmail: t.EngineerEmail,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewTicketList maps a slice of tickets, never returning nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID         int64                   `json:"id"`
	ChangeType domain.TicketChangeType `json:"changeType"`
	ActorRole  domain.Role             `json:"actorRole"`
	ActorEmail string                  `json:"actorEmail,omitempty"`
	OldValue   map[string]any          `json:"oldValue,omitempty"`
	NewValue   map[string]any          `json:"newValue,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// NewTicketHistoryResponse maps a domain history entry.
func NewTicketHistoryResponse(h *domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:         h.ID,
		ChangeType: h.ChangeType,
		ActorRole:  h.ActorRole,
		ActorEmail: h.ActorEmail,
		OldValue:   h.OldValue,
		NewValue:   h.NewValue,
		CreatedAt:  h.CreatedAt,
	}
}
