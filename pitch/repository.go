package pitch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sunny-Hasho/Eventura-v1/fault"
)

const selectColumns = `id, request_id, provider_id, message, proposed_price, status, created_at`

// Repository handles pitches data access.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Pitch, error)
	GetByID(ctx context.Context, id string) (Pitch, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (Pitch, error)
	ListByRequest(ctx context.Context, requestID string) ([]Pitch, error)
	ListByProvider(ctx context.Context, providerID string) ([]Pitch, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status) error
	RejectPendingSiblingsTx(ctx context.Context, tx pgx.Tx, requestID, exceptID string) ([]Pitch, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Pitch, error) {
	const query = `
		INSERT INTO pitches (request_id, provider_id, message, proposed_price, status)
		VALUES ($1, $2, $3, $4, 'PENDING')
		RETURNING ` + selectColumns

	p, err := scanPitch(r.pool.QueryRow(ctx, query, params.RequestID, params.ProviderID, params.Message, params.ProposedPrice))
	if err != nil {
		return Pitch{}, fmt.Errorf("pitch: create: %w", err)
	}
	return p, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Pitch, error) {
	const query = `SELECT ` + selectColumns + ` FROM pitches WHERE id = $1`

	p, err := scanPitch(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pitch{}, fault.NotFound("pitch %s not found", id)
		}
		return Pitch{}, fmt.Errorf("pitch: get by id: %w", err)
	}
	return p, nil
}

func (r *PGRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (Pitch, error) {
	const query = `SELECT ` + selectColumns + ` FROM pitches WHERE id = $1 FOR UPDATE`

	p, err := scanPitch(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pitch{}, fault.NotFound("pitch %s not found", id)
		}
		return Pitch{}, fmt.Errorf("pitch: lock for update: %w", err)
	}
	return p, nil
}

func (r *PGRepository) ListByRequest(ctx context.Context, requestID string) ([]Pitch, error) {
	const query = `SELECT ` + selectColumns + ` FROM pitches WHERE request_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, requestID)
}

func (r *PGRepository) ListByProvider(ctx context.Context, providerID string) ([]Pitch, error) {
	const query = `SELECT ` + selectColumns + ` FROM pitches WHERE provider_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, providerID)
}

func (r *PGRepository) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status) error {
	const query = `UPDATE pitches SET status = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("pitch: set status: %w", err)
	}
	return nil
}

// RejectPendingSiblingsTx rejects every PENDING pitch on the request except
// the accepted one, returning the rejected rows so their providers can be
// notified after commit.
func (r *PGRepository) RejectPendingSiblingsTx(ctx context.Context, tx pgx.Tx, requestID, exceptID string) ([]Pitch, error) {
	const query = `
		UPDATE pitches
		SET status = 'REJECTED'
		WHERE request_id = $1 AND id <> $2 AND status = 'PENDING'
		RETURNING ` + selectColumns

	rows, err := tx.Query(ctx, query, requestID, exceptID)
	if err != nil {
		return nil, fmt.Errorf("pitch: reject siblings: %w", err)
	}
	defer rows.Close()

	out := make([]Pitch, 0, 4)
	for rows.Next() {
		p, err := scanPitch(rows)
		if err != nil {
			return nil, fmt.Errorf("pitch: scan rejected sibling: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pitch: iterate rejected siblings: %w", err)
	}
	return out, nil
}

func (r *PGRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM pitches WHERE id = $1`, id); err != nil {
		return fmt.Errorf("pitch: delete: %w", err)
	}
	return nil
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Pitch, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pitch: list: %w", err)
	}
	defer rows.Close()

	out := make([]Pitch, 0, 8)
	for rows.Next() {
		p, err := scanPitch(rows)
		if err != nil {
			return nil, fmt.Errorf("pitch: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pitch: iterate: %w", err)
	}
	return out, nil
}

func scanPitch(row pgx.Row) (Pitch, error) {
	var p Pitch
	err := row.Scan(
		&p.ID,
		&p.RequestID,
		&p.ProviderID,
		&p.Message,
		&p.ProposedPrice,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		return Pitch{}, err
	}
	return p, nil
}
