package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineerWorkloadKeepsCountInSync(t *testing.T) {
	e := &Engineer{}

	assert.True(t, e.AddTask(7))
	assert.False(t, e.AddTask(7))
	assert.True(t, e.AddTask(9))
	assert.Equal(t, 2, e.CurrentTasks)

	assert.True(t, e.RemoveTask(7))
	assert.False(t, e.RemoveTask(7))
	assert.Equal(t, []int64{9}, e.AssignedTasks)
	assert.Equal(t, 1, e.CurrentTasks)

	assert.True(t, e.RemoveTask(9))
	assert.False(t, e.RemoveTask(9))
	assert.Equal(t, 0, e.CurrentTasks)
}

func TestTicketAssignedEngineer(t *testing.T) {
	ticket := &Ticket{}
	_, ok := ticket.AssignedEngineer()
	assert.False(t, ok)

	ticket.MarkNotAssigned()
	_, ok = ticket.AssignedEngineer()
	assert.False(t, ok)

	ticket.AssignTo("eng@example.com")
	email, ok := ticket.AssignedEngineer()
	assert.True(t, ok)
	assert.Equal(t, "eng@example.com", email)
	assert.True(t, ticket.IsAssignedTo("eng@example.com"))

	ticket.Accepted = true
	ticket.ClearEngineer()
	assert.Nil(t, ticket.EngineerEmail)
	assert.False(t, ticket.Accepted)
}

func TestLocationValid(t *testing.T) {
	var nilLoc *Location
	assert.False(t, nilLoc.Valid())
	assert.False(t, (&Location{Latitude: math.NaN()}).Valid())
	assert.False(t, (&Location{Latitude: math.Inf(1)}).Valid())
	assert.False(t, (&Location{Latitude: 91}).Valid())
	assert.False(t, (&Location{Longitude: -181}).Valid())
	assert.True(t, (&Location{Latitude: 12.97, Longitude: 77.59}).Valid())
}

func TestParsers(t *testing.T) {
	_, ok := ParseTicketStatus("bogus")
	assert.False(t, ok)
	st, ok := ParseTicketStatus("in-progress")
	assert.True(t, ok)
	assert.Equal(t, TicketStatusInProgress, st)

	svc, ok := ParseServiceType(" Fault ")
	assert.True(t, ok)
	assert.Equal(t, ServiceTypeFault, svc)

	assert.True(t, Specialization("INSTALLATION").Matches(ServiceTypeInstallation))
	assert.False(t, SpecializationFault.Matches(ServiceTypeInstallation))
}

func TestPrincipalScopes(t *testing.T) {
	user, ok := NewPrincipal(RoleUser, "u@x")
	assert.True(t, ok)
	assert.Equal(t, "u@x", *user.TicketScope().UserEmail)
	assert.Nil(t, user.TicketScope().EngineerEmail)

	eng, _ := NewPrincipal(RoleEngineer, "e@x")
	assert.Equal(t, "e@x", *eng.TicketScope().EngineerEmail)

	admin, _ := NewPrincipal(RoleAdmin, "a@x")
	assert.Equal(t, TicketScope{}, admin.TicketScope())

	_, ok = NewPrincipal(Role("root"), "r@x")
	assert.False(t, ok)
}
