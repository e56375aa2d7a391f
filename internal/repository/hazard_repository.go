package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// HazardRepository persists site hazard reports.
type HazardRepository interface {
	Create(ctx context.Context, hazard *domain.Hazard) error
	GetByID(ctx context.Context, id string) (*domain.Hazard, error)
	Update(ctx context.Context, hazard *domain.Hazard) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Hazard, error)
}

type hazardRepository struct {
	db DBTX
}

// NewHazardRepository creates repository.
func NewHazardRepository(db DBTX) HazardRepository {
	return &hazardRepository{db: db}
}

const hazardColumns = `id, hazard_type, description, risk_level, address, pincode, latitude, longitude, created_at, updated_at`

func (r *hazardRepository) Create(ctx context.Context, hazard *domain.Hazard) error {
	const query = `
        INSERT INTO hazards (id, hazard_type, description, risk_level, address, pincode, latitude, longitude)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`
	lat, lon := locationArgs(hazard.Location)
	return r.db.QueryRow(ctx, query,
		hazard.ID,
		hazard.HazardType,
		hazard.Description,
		hazard.RiskLevel,
		hazard.Address,
		hazard.Pincode,
		lat,
		lon,
	).Scan(&hazard.CreatedAt, &hazard.UpdatedAt)
}

func (r *hazardRepository) GetByID(ctx context.Context, id string) (*domain.Hazard, error) {
	return scanHazard(r.db.QueryRow(ctx, `SELECT `+hazardColumns+` FROM hazards WHERE id=$1`, id))
}

func (r *hazardRepository) Update(ctx context.Context, hazard *domain.Hazard) error {
	const query = `
        UPDATE hazards SET hazard_type=$1, description=$2, risk_level=$3, address=$4, pincode=$5,
            latitude=$6, longitude=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	lat, lon := locationArgs(hazard.Location)
	return r.db.QueryRow(ctx, query,
		hazard.HazardType,
		hazard.Description,
		hazard.RiskLevel,
		hazard.Address,
		hazard.Pincode,
		lat,
		lon,
		hazard.ID,
	).Scan(&hazard.UpdatedAt)
}

func (r *hazardRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM hazards WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *hazardRepository) List(ctx context.Context) ([]domain.Hazard, error) {
	rows, err := r.db.Query(ctx, `SELECT `+hazardColumns+` FROM hazards ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hazards []domain.Hazard
	for rows.Next() {
		hazard, err := scanHazard(rows)
		if err != nil {
			return nil, err
		}
		hazards = append(hazards, *hazard)
	}
	return hazards, rows.Err()
}

func scanHazard(row pgx.Row) (*domain.Hazard, error) {
	var (
		hazard   domain.Hazard
		lat, lon *float64
	)
	if err := row.Scan(
		&hazard.ID,
		&hazard.HazardType,
		&hazard.Description,
		&hazard.RiskLevel,
		&hazard.Address,
		&hazard.Pincode,
		&lat,
		&lon,
		&hazard.CreatedAt,
		&hazard.UpdatedAt,
	); err != nil {
		return nil, err
	}
	hazard.Location = locationFrom(lat, lon)
	return &hazard, nil
}
