package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// UserRepository manages customer accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository creates repository.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, name, phone, address, pincode, security_question, security_answer_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		user.Email,
		user.Name,
		user.Phone,
		user.Address,
		user.Pincode,
		user.SecurityQuestion,
		user.SecurityAnswerHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT email, name, phone, address, pincode, security_question, security_answer_hash, created_at, updated_at
        FROM users WHERE email=$1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, phone=$2, address=$3, pincode=$4, updated_at=NOW()
        WHERE email=$5
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query, user.Name, user.Phone, user.Address, user.Pincode, user.Email).Scan(&user.UpdatedAt)
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT email, name, phone, address, pincode, security_question, security_answer_hash, created_at, updated_at
        FROM users ORDER BY email`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.Address,
		&user.Pincode,
		&user.SecurityQuestion,
		&user.SecurityAnswerHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// AdminRepository manages administrator accounts.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
}

type adminRepository struct {
	db DBTX
}

// NewAdminRepository creates repository.
func NewAdminRepository(db DBTX) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	const query = `
        INSERT INTO admins (email, name, phone, security_question, security_answer_hash)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		admin.Email, admin.Name, admin.Phone, admin.SecurityQuestion, admin.SecurityAnswerHash,
	).Scan(&admin.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	const query = `
        SELECT email, name, phone, security_question, security_answer_hash, created_at
        FROM admins WHERE email=$1`
	var admin domain.Admin
	if err := r.db.QueryRow(ctx, query, email).Scan(
		&admin.Email,
		&admin.Name,
		&admin.Phone,
		&admin.SecurityQuestion,
		&admin.SecurityAnswerHash,
		&admin.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &admin, nil
}

// CredentialRepository stores login secrets for every role.
type CredentialRepository interface {
	Create(ctx context.Context, cred *domain.Credential) error
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

type credentialRepository struct {
	db DBTX
}

// NewCredentialRepository creates repository.
func NewCredentialRepository(db DBTX) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	_, err := r.db.Exec(ctx, `INSERT INTO credentials (email, password_hash, role) VALUES ($1,$2,$3)`,
		cred.Email, cred.PasswordHash, cred.Role)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *credentialRepository) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var cred domain.Credential
	if err := r.db.QueryRow(ctx, `SELECT email, password_hash, role FROM credentials WHERE email=$1`, email).
		Scan(&cred.Email, &cred.PasswordHash, &cred.Role); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE credentials SET password_hash=$1 WHERE email=$2`, passwordHash, email)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
