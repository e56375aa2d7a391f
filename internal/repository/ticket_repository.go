package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// TicketFilter narrows a ticket listing. Zero values match everything.
type TicketFilter struct {
	UserEmail       *string
	EngineerEmail   *string
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	ExcludeDeferred bool
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	NextID(ctx context.Context) (int64, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, user_email, service_type, latitude, longitude, address, pincode, description,
               priority, status, accepted, engineer_email, version, created_at, updated_at`

func (r *ticketRepository) NextID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT nextval('ticket_id_seq')`).Scan(&id)
	return id, err
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, user_email, service_type, latitude, longitude, address, pincode, description,
                             priority, status, accepted, engineer_email, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
        RETURNING version, created_at, updated_at`
	lat, lon := locationArgs(ticket.Location)
	err := r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.UserEmail,
		ticket.ServiceType,
		lat,
		lon,
		ticket.Address,
		ticket.Pincode,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.Accepted,
		ticket.EngineerEmail,
		ticket.CreatedAt,
	).Scan(&ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Update writes the ticket if nobody changed it since it was read.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET latitude=$1, longitude=$2, address=$3, description=$4, priority=$5, status=$6,
            accepted=$7, engineer_email=$8, version=version+1, updated_at=NOW()
        WHERE id=$9 AND version=$10
        RETURNING version, updated_at`
	lat, lon := locationArgs(ticket.Location)
	err := r.db.QueryRow(ctx, query,
		lat,
		lon,
		ticket.Address,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.Accepted,
		ticket.EngineerEmail,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleWrite
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserEmail != nil {
		args = append(args, *filter.UserEmail)
		clauses = append(clauses, fmt.Sprintf("user_email=$%d", len(args)))
	}
	if filter.EngineerEmail != nil {
		args = append(args, *filter.EngineerEmail)
		clauses = append(clauses, fmt.Sprintf("engineer_email=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.ExcludeDeferred {
		args = append(args, domain.TicketStatusDeferred)
		clauses = append(clauses, fmt.Sprintf("status<>$%d", len(args)))
	}

	query := base + " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY id"
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		lat, lon *float64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserEmail,
		&ticket.ServiceType,
		&lat,
		&lon,
		&ticket.Address,
		&ticket.Pincode,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Accepted,
		&ticket.EngineerEmail,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.Location = locationFrom(lat, lon)
	return &ticket, nil
}
