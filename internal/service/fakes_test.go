package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/geocoder"
	"github.com/fieldops/dispatch-service/internal/notify"
	"github.com/fieldops/dispatch-service/internal/repository"
)

// memStore is an in-memory repository.Store with versioned writes and
// snapshot rollback.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	tickets   map[int64]domain.Ticket
	engineers map[string]domain.Engineer
	users     map[string]domain.User
	admins    map[string]domain.Admin
	creds     map[string]domain.Credential

	// staleEngineerWrites makes the next n engineer updates fail as stale.
	staleEngineerWrites int
}

func newMemStore() *memStore {
	return &memStore{
		tickets:   map[int64]domain.Ticket{},
		engineers: map[string]domain.Engineer{},
		users:     map[string]domain.User{},
		admins:    map[string]domain.Admin{},
		creds:     map[string]domain.Credential{},
	}
}

func (s *memStore) Tickets() repository.TicketRepository         { return memTickets{s} }
func (s *memStore) Engineers() repository.EngineerRepository     { return memEngineers{s} }
func (s *memStore) Users() repository.UserRepository             { return memUsers{s} }
func (s *memStore) Admins() repository.AdminRepository           { return memAdmins{s} }
func (s *memStore) Credentials() repository.CredentialRepository { return memCreds{s} }

func (s *memStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()
	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	tickets   map[int64]domain.Ticket
	engineers map[string]domain.Engineer
	users     map[string]domain.User
	admins    map[string]domain.Admin
	creds     map[string]domain.Credential
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		tickets:   map[int64]domain.Ticket{},
		engineers: map[string]domain.Engineer{},
		users:     map[string]domain.User{},
		admins:    map[string]domain.Admin{},
		creds:     map[string]domain.Credential{},
	}
	for k, v := range s.tickets {
		snap.tickets[k] = copyTicket(v)
	}
	for k, v := range s.engineers {
		snap.engineers[k] = copyEngineer(v)
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.admins {
		snap.admins[k] = v
	}
	for k, v := range s.creds {
		snap.creds[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.tickets = snap.tickets
	s.engineers = snap.engineers
	s.users = snap.users
	s.admins = snap.admins
	s.creds = snap.creds
}

func (s *memStore) putEngineer(e domain.Engineer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.CurrentTasks = len(e.AssignedTasks)
	e.Version = 1
	s.engineers[e.Email] = copyEngineer(e)
}

func (s *memStore) putTicket(t domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Version = 1
	if t.ID > s.nextID {
		s.nextID = t.ID
	}
	s.tickets[t.ID] = copyTicket(t)
}

func (s *memStore) engineer(email string) domain.Engineer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEngineer(s.engineers[email])
}

func (s *memStore) ticket(id int64) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTicket(s.tickets[id])
}

func copyTicket(t domain.Ticket) domain.Ticket {
	if t.Location != nil {
		loc := *t.Location
		t.Location = &loc
	}
	if t.EngineerEmail != nil {
		email := *t.EngineerEmail
		t.EngineerEmail = &email
	}
	return t
}

func copyEngineer(e domain.Engineer) domain.Engineer {
	if e.Location != nil {
		loc := *e.Location
		e.Location = &loc
	}
	e.Availability = append([]string(nil), e.Availability...)
	e.AssignedTasks = append([]int64(nil), e.AssignedTasks...)
	return e
}

type memTickets struct{ s *memStore }

func (r memTickets) NextID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextID++
	return r.s.nextID, nil
}

func (r memTickets) Create(ctx context.Context, t *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[t.ID]; ok {
		return repository.ErrDuplicate
	}
	t.Version = 1
	r.s.tickets[t.ID] = copyTicket(*t)
	return nil
}

func (r memTickets) Update(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.tickets[t.ID]
	if !ok || current.Version != t.Version {
		return repository.ErrStaleWrite
	}
	t.Version++
	r.s.tickets[t.ID] = copyTicket(*t)
	return nil
}

func (r memTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := copyTicket(t)
	return &c, nil
}

func (r memTickets) List(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if f.UserEmail != nil && t.UserEmail != *f.UserEmail {
			continue
		}
		if f.EngineerEmail != nil && (t.EngineerEmail == nil || *t.EngineerEmail != *f.EngineerEmail) {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			continue
		}
		if f.ExcludeDeferred && t.Status == domain.TicketStatusDeferred {
			continue
		}
		out = append(out, copyTicket(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memEngineers struct{ s *memStore }

func (r memEngineers) Create(_ context.Context, e *domain.Engineer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.engineers[e.Email]; ok {
		return repository.ErrDuplicate
	}
	e.Version = 1
	e.CurrentTasks = len(e.AssignedTasks)
	r.s.engineers[e.Email] = copyEngineer(*e)
	return nil
}

func (r memEngineers) GetByEmail(_ context.Context, email string) (*domain.Engineer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.engineers[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := copyEngineer(e)
	return &c, nil
}

func (r memEngineers) Update(_ context.Context, e *domain.Engineer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.staleEngineerWrites > 0 {
		r.s.staleEngineerWrites--
		return repository.ErrStaleWrite
	}
	current, ok := r.s.engineers[e.Email]
	if !ok || current.Version != e.Version {
		return repository.ErrStaleWrite
	}
	e.Version++
	e.CurrentTasks = len(e.AssignedTasks)
	r.s.engineers[e.Email] = copyEngineer(*e)
	return nil
}

func (r memEngineers) ListAvailable(_ context.Context, q repository.AvailabilityQuery) ([]*domain.Engineer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Engineer
	for _, e := range r.s.engineers {
		if !e.Approved || !e.AvailableOn(q.Weekday) {
			continue
		}
		if q.Specialization != nil && !strings.EqualFold(string(e.Specialization), string(*q.Specialization)) {
			continue
		}
		if q.ExcludeEmail != nil && e.Email == *q.ExcludeEmail {
			continue
		}
		c := copyEngineer(e)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r memEngineers) List(_ context.Context, f repository.EngineerFilter) ([]*domain.Engineer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Engineer
	for _, e := range r.s.engineers {
		if f.Approved != nil && e.Approved != *f.Approved {
			continue
		}
		c := copyEngineer(e)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.Email]; ok {
		return repository.ErrDuplicate
	}
	r.s.users[u.Email] = *u
	return nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r memUsers) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.Email]; !ok {
		return pgx.ErrNoRows
	}
	r.s.users[u.Email] = *u
	return nil
}

func (r memUsers) List(context.Context) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memAdmins struct{ s *memStore }

func (r memAdmins) Create(_ context.Context, a *domain.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.admins[a.Email]; ok {
		return repository.ErrDuplicate
	}
	r.s.admins[a.Email] = *a
	return nil
}

func (r memAdmins) GetByEmail(_ context.Context, email string) (*domain.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.admins[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

type memCreds struct{ s *memStore }

func (r memCreds) Create(_ context.Context, c *domain.Credential) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.creds[c.Email]; ok {
		return repository.ErrDuplicate
	}
	r.s.creds[c.Email] = *c
	return nil
}

func (r memCreds) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.creds[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (r memCreds) UpdatePassword(_ context.Context, email, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.creds[email]
	if !ok {
		return pgx.ErrNoRows
	}
	c.PasswordHash = hash
	r.s.creds[email] = c
	return nil
}

// stubGeocoder resolves from a fixed table; unknown codes fail.
type stubGeocoder struct {
	places map[string]domain.Location
	err    error
	calls  int
}

func (g *stubGeocoder) Resolve(_ context.Context, code string) (*geocoder.Result, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	loc, ok := g.places[code]
	if !ok {
		return nil, geocoder.ErrNotFound
	}
	return &geocoder.Result{Location: loc, DisplayAddress: "Area " + code}, nil
}

type recordingDeliverer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (d *recordingDeliverer) Deliver(_ context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

func (d *recordingDeliverer) messages() []notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Message(nil), d.sent...)
}

type memInbox struct {
	mu    sync.Mutex
	items map[string]domain.Notification
}

func newMemInbox() *memInbox {
	return &memInbox{items: map[string]domain.Notification{}}
}

func (m *memInbox) Create(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[n.ID] = *n
	return nil
}

func (m *memInbox) ListByEmail(_ context.Context, email string) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.items {
		if n.Email == email {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memInbox) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	n.IsRead = true
	m.items[id] = n
	return nil
}

func (m *memInbox) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

var (
	errRelayDown = errors.New("relay down")
	errNoRows    = pgx.ErrNoRows
)

// monday is 2024-01-01, a Monday, at noon UTC.
var monday = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return monday }
