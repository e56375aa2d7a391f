package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/config"
	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/events"
	"github.com/fieldops/dispatch-service/internal/geocoder"
	"github.com/fieldops/dispatch-service/internal/observability"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

var bangalore = domain.Location{Latitude: 12.97, Longitude: 77.59}

// kmNorth returns a point km kilometres due north of origin.
func kmNorth(origin domain.Location, km float64) *domain.Location {
	const kmPerDegree = 6371.0 * 3.141592653589793 / 180
	return &domain.Location{Latitude: origin.Latitude + km/kmPerDegree, Longitude: origin.Longitude}
}

type harness struct {
	store      *memStore
	geo        *stubGeocoder
	mail       *recordingDeliverer
	inbox      *memInbox
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	assign     *AssignmentService
	lifecycle  *LifecycleService
	admin      *AdminService
}

func newHarness(t *testing.T, policy string) *harness {
	t.Helper()
	h := &harness{
		store:      newMemStore(),
		geo:        &stubGeocoder{places: map[string]domain.Location{"560001": bangalore}},
		mail:       &recordingDeliverer{},
		inbox:      newMemInbox(),
		metrics:    observability.NewMetrics(),
		dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
	}
	NewNotificationService(NotificationDependencies{
		Dispatcher: h.dispatcher,
		Deliverer:  h.mail,
		Inbox:      h.inbox,
		Clock:      fixedClock,
	}).RegisterHandlers()

	var err error
	h.assign, err = NewAssignmentService(AssignmentDependencies{
		Store:      h.store,
		Geocoder:   h.geo,
		Dispatcher: h.dispatcher,
		Metrics:    h.metrics,
		Config:     config.AssignmentConfig{PriorityPolicy: policy, Timezone: "UTC", MaxWriteRetries: 3},
		Clock:      fixedClock,
	})
	require.NoError(t, err)
	h.lifecycle = NewLifecycleService(LifecycleDependencies{
		Store:           h.store,
		Dispatcher:      h.dispatcher,
		Metrics:         h.metrics,
		MaxWriteRetries: 3,
		Clock:           fixedClock,
	})
	h.admin = NewAdminService(AdminDependencies{
		Store:           h.store,
		Dispatcher:      h.dispatcher,
		Metrics:         h.metrics,
		MaxWriteRetries: 3,
		Clock:           fixedClock,
	})
	return h
}

func engineerAt(email string, spec domain.Specialization, loc *domain.Location, tasks ...int64) domain.Engineer {
	return domain.Engineer{
		Email:          email,
		Name:           strings.Split(email, "@")[0],
		Specialization: spec,
		Availability:   []string{"monday", "Tuesday"},
		Location:       loc,
		AssignedTasks:  tasks,
		Approved:       true,
	}
}

func installationInput() TicketInput {
	return TicketInput{
		ServiceType: "installation",
		Pincode:     "560001",
		Description: "new fibre line",
	}
}

func TestRaiseTicketAssignsNearestEngineer(t *testing.T) {
	h := newHarness(t, "proximity")
	h.store.putEngineer(engineerAt("near@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 3)))
	h.store.putEngineer(engineerAt("far@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 10)))
	h.store.putEngineer(engineerAt("fault@x.com", domain.SpecializationFault, kmNorth(bangalore, 1)))
	offDay := engineerAt("weekend@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 0.5))
	offDay.Availability = []string{"Saturday"}
	h.store.putEngineer(offDay)

	raised, err := h.assign.RaiseTicket(context.Background(), domain.UserPrincipal{EmailAddr: "owner@x.com"}, installationInput())
	require.NoError(t, err)

	ticket := raised.Ticket
	assert.Equal(t, int64(1), ticket.ID)
	assert.Equal(t, "owner@x.com", ticket.UserEmail)
	require.NotNil(t, ticket.EngineerEmail)
	assert.Equal(t, "near@x.com", *ticket.EngineerEmail)
	assert.False(t, ticket.Accepted)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityLow, ticket.Priority)
	assert.Equal(t, "Area 560001", ticket.Address)

	require.True(t, raised.Assignment.Assigned)
	require.NotNil(t, raised.Assignment.DistanceKm)
	assert.InDelta(t, 3.0, *raised.Assignment.DistanceKm, 0.01)

	stored := h.store.ticket(1)
	assert.Equal(t, "near@x.com", *stored.EngineerEmail)
	near := h.store.engineer("near@x.com")
	assert.Equal(t, []int64{1}, near.AssignedTasks)
	assert.Equal(t, 1, near.CurrentTasks)
	assert.Empty(t, h.store.engineer("far@x.com").AssignedTasks)

	sent := h.mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, SubjectTicketRaised, sent[0].Subject)
	assert.Equal(t, "owner@x.com", sent[0].To)
	assert.Contains(t, sent[0].Body, "assigned to near@x.com")

	inbox, _ := h.inbox.ListByEmail(context.Background(), "near@x.com")
	assert.Len(t, inbox, 1)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Dispatch[observability.OutcomeAssigned])
}

func TestRaiseTicketPriorityPolicies(t *testing.T) {
	t.Run("rescore after assignment", func(t *testing.T) {
		h := newHarness(t, "proximity_rescore")
		h.store.putEngineer(engineerAt("near@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 3)))

		raised, err := h.assign.AddTicket(context.Background(), TicketInput{UserEmail: "u@x.com", ServiceType: "Installation", Pincode: "560001"})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketPriorityHigh, raised.Ticket.Priority)
	})

	t.Run("service type", func(t *testing.T) {
		h := newHarness(t, "service_type")
		raised, err := h.assign.AddTicket(context.Background(), TicketInput{UserEmail: "u@x.com", ServiceType: "fault", Pincode: "560001"})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketPriorityHigh, raised.Ticket.Priority)
	})
}

func TestRaiseTicketWithNoAvailableEngineer(t *testing.T) {
	h := newHarness(t, "proximity")
	h.store.putEngineer(engineerAt("fault@x.com", domain.SpecializationFault, kmNorth(bangalore, 1)))

	raised, err := h.assign.AddTicket(context.Background(), TicketInput{UserEmail: "u@x.com", ServiceType: "installation", Pincode: "560001"})
	require.NoError(t, err)

	assert.False(t, raised.Assignment.Assigned)
	assert.Equal(t, MsgNoEngineers, raised.Assignment.Message)
	require.NotNil(t, raised.Ticket.EngineerEmail)
	assert.Equal(t, domain.NotAssigned, *raised.Ticket.EngineerEmail)
	_, assigned := raised.Ticket.AssignedEngineer()
	assert.False(t, assigned)
	assert.Equal(t, domain.NotAssigned, *h.store.ticket(raised.Ticket.ID).EngineerEmail)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Dispatch[observability.OutcomeUnassigned])

	sent := h.mail.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "assigned to Not Assigned")
}

func TestRaiseTicketWhenGeocoderFails(t *testing.T) {
	h := newHarness(t, "proximity")
	h.geo.err = context.DeadlineExceeded
	h.store.putEngineer(engineerAt("busy@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 1), 11, 12))
	h.store.putEngineer(engineerAt("idle@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 20)))

	raised, err := h.assign.AddTicket(context.Background(), TicketInput{
		UserEmail:   "u@x.com",
		ServiceType: "installation",
		Pincode:     "999999",
		Address:     "12 Main Road",
	})
	require.NoError(t, err)

	assert.Nil(t, raised.Ticket.Location)
	assert.Equal(t, "12 Main Road", raised.Ticket.Address)
	assert.Equal(t, "idle@x.com", *raised.Ticket.EngineerEmail)
	assert.Nil(t, raised.Assignment.DistanceKm)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Dispatch[observability.OutcomeGeocodeMiss])
}

func TestRaiseTicketValidation(t *testing.T) {
	h := newHarness(t, "proximity")

	_, err := h.assign.AddTicket(context.Background(), TicketInput{UserEmail: "u@x.com", ServiceType: "plumbing", Pincode: ""})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Contains(t, de.Details, "serviceType")
	assert.Contains(t, de.Details, "pincode")
	assert.Empty(t, h.store.tickets)

	_, err = h.assign.RaiseTicket(context.Background(), nil, installationInput())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestAssignRetriesStaleWrites(t *testing.T) {
	h := newHarness(t, "proximity")
	h.store.putEngineer(engineerAt("near@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 3)))
	h.store.staleEngineerWrites = 1

	raised, err := h.assign.AddTicket(context.Background(), TicketInput{UserEmail: "u@x.com", ServiceType: "installation", Pincode: "560001"})
	require.NoError(t, err)

	assert.True(t, raised.Assignment.Assigned)
	assert.Equal(t, []int64{raised.Ticket.ID}, h.store.engineer("near@x.com").AssignedTasks)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Dispatch[observability.OutcomeStaleRetry])
}

func TestAddTicketKeepsTicketWhenAssignmentKeepsFailing(t *testing.T) {
	h := newHarness(t, "proximity")
	h.store.putEngineer(engineerAt("near@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 3)))
	h.store.staleEngineerWrites = 10

	raised, err := h.assign.AddTicket(context.Background(), TicketInput{UserEmail: "u@x.com", ServiceType: "installation", Pincode: "560001"})
	require.NoError(t, err)

	assert.False(t, raised.Assignment.Assigned)
	assert.NotEmpty(t, raised.Assignment.Message)
	stored := h.store.ticket(raised.Ticket.ID)
	require.NotNil(t, stored.EngineerEmail)
	assert.Equal(t, domain.NotAssigned, *stored.EngineerEmail)
	assert.False(t, stored.Accepted)
	require.NotNil(t, raised.Ticket.EngineerEmail)
	assert.Equal(t, domain.NotAssigned, *raised.Ticket.EngineerEmail)
	assert.Empty(t, h.store.engineer("near@x.com").AssignedTasks)
	assert.Equal(t, int64(3), h.metrics.Snapshot().Dispatch[observability.OutcomeStaleRetry])
}

func TestNewAssignmentServiceRejectsBadConfig(t *testing.T) {
	_, err := NewAssignmentService(AssignmentDependencies{Config: config.AssignmentConfig{PriorityPolicy: "random", Timezone: "UTC"}})
	assert.Error(t, err)
}

func TestRaiseTicketWhenGeocodeCacheStalls(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(upstream.Close)
	stalled := redis.NewClient(&redis.Options{
		Addr:       "redis.invalid:6379",
		MaxRetries: -1,
		Dialer: func(ctx context.Context, _, _ string) (net.Conn, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return nil, errors.New("dial stalled")
			}
		},
	})
	t.Cleanup(func() { _ = stalled.Close() })

	h := newHarness(t, "proximity")
	nominatim := geocoder.NewNominatimClient(config.GeocoderConfig{BaseURL: upstream.URL, TimeoutMS: 50})
	h.assign.geocoder = geocoder.NewCachedGeocoder(nominatim, stalled, time.Hour, 50*time.Millisecond, zap.NewNop())
	h.store.putEngineer(engineerAt("idle@x.com", domain.SpecializationInstallation, kmNorth(bangalore, 4)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()

	raised, err := h.assign.RaiseTicket(ctx, domain.UserPrincipal{EmailAddr: "owner@x.com"}, TicketInput{
		ServiceType: "installation",
		Pincode:     "560001",
		Address:     "12 Main Road",
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, raised.Ticket.Location)
	assert.Equal(t, "12 Main Road", raised.Ticket.Address)
	require.NotNil(t, raised.Ticket.EngineerEmail)
	assert.Equal(t, "idle@x.com", *raised.Ticket.EngineerEmail)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Dispatch[observability.OutcomeGeocodeMiss])
}
