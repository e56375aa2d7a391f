package dispatch

import (
	"fmt"
	"math"

	"github.com/fieldops/dispatch-service/internal/domain"
)

const (
	highPriorityMaxKm   = 5.0
	mediumPriorityMaxKm = 15.0
)

// PriorityPolicy selects how a raised ticket's priority is derived.
type PriorityPolicy string

const (
	// PolicyProximity scores once at creation, before any engineer is assigned.
	PolicyProximity PriorityPolicy = "proximity"
	// PolicyProximityRescore scores again from the assigned engineer's distance.
	PolicyProximityRescore PriorityPolicy = "proximity_rescore"
	// PolicyServiceType ranks faults high and installations medium.
	PolicyServiceType PriorityPolicy = "service_type"
)

// ParsePriorityPolicy validates a configured policy name.
func ParsePriorityPolicy(raw string) (PriorityPolicy, error) {
	switch p := PriorityPolicy(raw); p {
	case PolicyProximity, PolicyProximityRescore, PolicyServiceType:
		return p, nil
	case "":
		return PolicyProximity, nil
	default:
		return "", fmt.Errorf("unknown priority policy %q", raw)
	}
}

// PriorityForDistance maps a ticket-to-engineer distance onto a priority.
// Both bounds are inclusive. NaN is treated as unknown and yields low.
func PriorityForDistance(km float64) domain.TicketPriority {
	switch {
	case math.IsNaN(km):
		return domain.TicketPriorityLow
	case km <= highPriorityMaxKm:
		return domain.TicketPriorityHigh
	case km <= mediumPriorityMaxKm:
		return domain.TicketPriorityMedium
	default:
		return domain.TicketPriorityLow
	}
}

// ScorePriority derives a priority from the proximity of the assigned engineer.
// A missing engineer or a missing location on either side yields low.
func ScorePriority(ticket *domain.Ticket, engineer *domain.Engineer) domain.TicketPriority {
	if ticket == nil || engineer == nil {
		return domain.TicketPriorityLow
	}
	return PriorityForDistance(DistanceBetween(ticket.Location, engineer.Location))
}

// PriorityForServiceType ranks faults above installations.
func PriorityForServiceType(serviceType domain.ServiceType) domain.TicketPriority {
	if serviceType == domain.ServiceTypeFault {
		return domain.TicketPriorityHigh
	}
	return domain.TicketPriorityMedium
}

// InitialPriority is the priority stored when a ticket is first persisted.
func (p PriorityPolicy) InitialPriority(ticket *domain.Ticket) domain.TicketPriority {
	if p == PolicyServiceType {
		return PriorityForServiceType(ticket.ServiceType)
	}
	return ScorePriority(ticket, nil)
}

// AssignedPriority is the priority after auto-assignment picked engineer, which may be nil.
func (p PriorityPolicy) AssignedPriority(ticket *domain.Ticket, engineer *domain.Engineer) domain.TicketPriority {
	switch p {
	case PolicyProximityRescore:
		return ScorePriority(ticket, engineer)
	default:
		return ticket.Priority
	}
}
