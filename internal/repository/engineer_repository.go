package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// AvailabilityQuery selects approved engineers working on a weekday.
type AvailabilityQuery struct {
	Weekday        string
	Specialization *domain.ServiceType
	ExcludeEmail   *string
}

// EngineerFilter narrows an engineer listing.
type EngineerFilter struct {
	Approved *bool
}

// EngineerRepository encapsulates engineer persistence.
type EngineerRepository interface {
	Create(ctx context.Context, engineer *domain.Engineer) error
	GetByEmail(ctx context.Context, email string) (*domain.Engineer, error)
	Update(ctx context.Context, engineer *domain.Engineer) error
	ListAvailable(ctx context.Context, q AvailabilityQuery) ([]*domain.Engineer, error)
	List(ctx context.Context, filter EngineerFilter) ([]*domain.Engineer, error)
}

type engineerRepository struct {
	db DBTX
}

// NewEngineerRepository instantiates repository.
func NewEngineerRepository(db DBTX) EngineerRepository {
	return &engineerRepository{db: db}
}

const engineerColumns = `email, name, phone, specialization, availability, address, city, pincode,
               latitude, longitude, current_tasks, assigned_tasks, approved, security_question,
               security_answer_hash, version, created_at, updated_at`

func (r *engineerRepository) Create(ctx context.Context, engineer *domain.Engineer) error {
	const query = `
        INSERT INTO engineers (email, name, phone, specialization, availability, address, city, pincode,
                               latitude, longitude, current_tasks, assigned_tasks, approved,
                               security_question, security_answer_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING version, created_at, updated_at`
	lat, lon := locationArgs(engineer.Location)
	err := r.db.QueryRow(ctx, query,
		engineer.Email,
		engineer.Name,
		engineer.Phone,
		engineer.Specialization,
		nonNilStrings(engineer.Availability),
		engineer.Address,
		engineer.City,
		engineer.Pincode,
		lat,
		lon,
		len(engineer.AssignedTasks),
		nonNilIDs(engineer.AssignedTasks),
		engineer.Approved,
		engineer.SecurityQuestion,
		engineer.SecurityAnswerHash,
	).Scan(&engineer.Version, &engineer.CreatedAt, &engineer.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *engineerRepository) GetByEmail(ctx context.Context, email string) (*domain.Engineer, error) {
	query := `SELECT ` + engineerColumns + ` FROM engineers WHERE email=$1`
	return scanEngineer(r.db.QueryRow(ctx, query, email))
}

// Update writes profile, approval and workload if nobody changed the engineer since it was read.
// current_tasks is always derived from assigned_tasks.
func (r *engineerRepository) Update(ctx context.Context, engineer *domain.Engineer) error {
	const query = `
        UPDATE engineers SET name=$1, phone=$2, specialization=$3, availability=$4, address=$5, city=$6,
            pincode=$7, latitude=$8, longitude=$9, current_tasks=$10, assigned_tasks=$11, approved=$12,
            version=version+1, updated_at=NOW()
        WHERE email=$13 AND version=$14
        RETURNING version, updated_at`
	lat, lon := locationArgs(engineer.Location)
	engineer.CurrentTasks = len(engineer.AssignedTasks)
	err := r.db.QueryRow(ctx, query,
		engineer.Name,
		engineer.Phone,
		engineer.Specialization,
		nonNilStrings(engineer.Availability),
		engineer.Address,
		engineer.City,
		engineer.Pincode,
		lat,
		lon,
		engineer.CurrentTasks,
		nonNilIDs(engineer.AssignedTasks),
		engineer.Approved,
		engineer.Email,
		engineer.Version,
	).Scan(&engineer.Version, &engineer.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleWrite
	}
	return err
}

func (r *engineerRepository) ListAvailable(ctx context.Context, q AvailabilityQuery) ([]*domain.Engineer, error) {
	clauses := []string{"approved", "$1 ILIKE ANY(availability)"}
	args := []any{q.Weekday}

	if q.Specialization != nil {
		args = append(args, string(*q.Specialization))
		clauses = append(clauses, fmt.Sprintf("LOWER(specialization)=LOWER($%d)", len(args)))
	}
	if q.ExcludeEmail != nil {
		args = append(args, *q.ExcludeEmail)
		clauses = append(clauses, fmt.Sprintf("email<>$%d", len(args)))
	}
	query := `SELECT ` + engineerColumns + ` FROM engineers WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY email`
	return r.query(ctx, query, args...)
}

func (r *engineerRepository) List(ctx context.Context, filter EngineerFilter) ([]*domain.Engineer, error) {
	query := `SELECT ` + engineerColumns + ` FROM engineers`
	args := []any{}
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		query += " WHERE approved=$1"
	}
	return r.query(ctx, query+" ORDER BY email", args...)
}

func (r *engineerRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Engineer, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var engineers []*domain.Engineer
	for rows.Next() {
		engineer, err := scanEngineer(rows)
		if err != nil {
			return nil, err
		}
		engineers = append(engineers, engineer)
	}
	return engineers, rows.Err()
}

func scanEngineer(row pgx.Row) (*domain.Engineer, error) {
	var (
		engineer domain.Engineer
		lat, lon *float64
	)
	if err := row.Scan(
		&engineer.Email,
		&engineer.Name,
		&engineer.Phone,
		&engineer.Specialization,
		&engineer.Availability,
		&engineer.Address,
		&engineer.City,
		&engineer.Pincode,
		&lat,
		&lon,
		&engineer.CurrentTasks,
		&engineer.AssignedTasks,
		&engineer.Approved,
		&engineer.SecurityQuestion,
		&engineer.SecurityAnswerHash,
		&engineer.Version,
		&engineer.CreatedAt,
		&engineer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	engineer.Location = locationFrom(lat, lon)
	return &engineer, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilIDs(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}
