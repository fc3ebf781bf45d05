package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles notifications data access.
type Repository interface {
	Create(ctx context.Context, userID, message string) (Notification, error)
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, userID, message string) (Notification, error) {
	const query = `
		INSERT INTO notifications (user_id, message)
		VALUES ($1, $2)
		RETURNING id, user_id, message, read, created_at`

	var n Notification
	err := r.pool.QueryRow(ctx, query, userID, message).Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("notify: insert notification: %w", err)
	}
	return n, nil
}

func (r *PGRepository) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	const query = `
		SELECT id, user_id, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PGRepository) MarkRead(ctx context.Context, userID, id string) error {
	const query = `UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`

	if _, err := r.pool.Exec(ctx, query, id, userID); err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	return nil
}

func (r *PGRepository) MarkAllRead(ctx context.Context, userID string) error {
	const query = `UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("notify: mark all read: %w", err)
	}
	return nil
}
