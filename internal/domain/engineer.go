package domain

import (
	"strings"
	"time"
)

// Specialization is the kind of work an engineer is qualified for.
type Specialization string

const (
	SpecializationInstallation Specialization = "Installation"
	SpecializationFault        Specialization = "Fault"
)

// Matches compares a specialization with a ticket service type, ignoring case.
func (s Specialization) Matches(serviceType ServiceType) bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), strings.TrimSpace(string(serviceType)))
}

// Engineer is a field technician who can be assigned tickets.
type Engineer struct {
	Email              string
	Name               string
	Phone              string
	Specialization     Specialization
	Availability       []string
	Address            string
	City               string
	Pincode            string
	Location           *Location
	CurrentTasks       int
	AssignedTasks      []int64
	Approved           bool
	SecurityQuestion   string
	SecurityAnswerHash string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AvailableOn reports whether the engineer works on the given weekday.
func (e *Engineer) AvailableOn(weekday string) bool {
	for _, day := range e.Availability {
		if strings.EqualFold(day, weekday) {
			return true
		}
	}
	return false
}

// HasTask reports whether the ticket id is in the engineer's workload.
func (e *Engineer) HasTask(ticketID int64) bool {
	for _, id := range e.AssignedTasks {
		if id == ticketID {
			return true
		}
	}
	return false
}

// AddTask appends a ticket to the workload. Returns false if it was already present.
func (e *Engineer) AddTask(ticketID int64) bool {
	if e.HasTask(ticketID) {
		return false
	}
	e.AssignedTasks = append(e.AssignedTasks, ticketID)
	e.CurrentTasks = len(e.AssignedTasks)
	return true
}

// RemoveTask drops a ticket from the workload. Returns false if it was not present.
func (e *Engineer) RemoveTask(ticketID int64) bool {
	kept := make([]int64, 0, len(e.AssignedTasks))
	removed := false
	for _, id := range e.AssignedTasks {
		if id == ticketID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	e.AssignedTasks = kept
	e.CurrentTasks = len(e.AssignedTasks)
	return removed
}
