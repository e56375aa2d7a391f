package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByEmail(ctx context.Context, email string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO notifications (id, email, message, is_read) VALUES ($1,$2,$3,$4) RETURNING created_at`,
		n.ID, n.Email, n.Message, n.IsRead,
	).Scan(&n.CreatedAt)
}

func (r *notificationRepository) ListByEmail(ctx context.Context, email string) ([]domain.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, email, message, is_read, created_at FROM notifications WHERE email=$1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Email, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1`, id)
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM notifications WHERE id=$1`, id)
}

func (r *notificationRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
