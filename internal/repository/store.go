package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// ErrStaleWrite is returned when a versioned update lost a race with another writer.
var ErrStaleWrite = errors.New("record was modified concurrently")

// ErrDuplicate is returned when an insert collides with an existing key.
var ErrDuplicate = errors.New("record already exists")

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories whose records change together.
type Store interface {
	Tickets() TicketRepository
	Engineers() EngineerRepository
	Users() UserRepository
	Admins() AdminRepository
	Credentials() CredentialRepository
	// WithinTx runs fn against a transactional Store. Returning an error rolls back.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewStore builds a Store backed by the pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tickets() TicketRepository         { return NewTicketRepository(s.db) }
func (s *pgStore) Engineers() EngineerRepository     { return NewEngineerRepository(s.db) }
func (s *pgStore) Users() UserRepository             { return NewUserRepository(s.db) }
func (s *pgStore) Admins() AdminRepository           { return NewAdminRepository(s.db) }
func (s *pgStore) Credentials() CredentialRepository { return NewCredentialRepository(s.db) }

func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// already inside a transaction
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgStore{db: tx})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func locationArgs(loc *domain.Location) (lat, lon *float64) {
	if !loc.Valid() {
		return nil, nil
	}
	la, lo := loc.Latitude, loc.Longitude
	return &la, &lo
}

func locationFrom(lat, lon *float64) *domain.Location {
	if lat == nil || lon == nil {
		return nil
	}
	return &domain.Location{Latitude: *lat, Longitude: *lon}
}
