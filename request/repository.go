package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sunny-Hasho/Eventura-v1/fault"
)

const selectColumns = `id, client_id, title, description, assigned_provider_id, assigned_price, status, created_at, updated_at`

// Repository handles service_requests data access. The Tx-suffixed methods
// run inside a caller-owned transaction so the pitch and payment managers can
// mutate a request together with their own rows.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (ServiceRequest, error)
	GetByID(ctx context.Context, id string) (ServiceRequest, error)
	List(ctx context.Context, filters Filters) ([]ServiceRequest, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (ServiceRequest, error)
	AssignTx(ctx context.Context, tx pgx.Tx, id, providerID string, price float64) error
	ClearAssignmentTx(ctx context.Context, tx pgx.Tx, id string) error
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (ServiceRequest, error) {
	const query = `
		INSERT INTO service_requests (client_id, title, description, status)
		VALUES ($1, $2, $3, 'OPEN')
		RETURNING ` + selectColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query, params.ClientID, params.Title, params.Description))
	if err != nil {
		return ServiceRequest{}, fmt.Errorf("request: create: %w", err)
	}
	return req, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (ServiceRequest, error) {
	const query = `SELECT ` + selectColumns + ` FROM service_requests WHERE id = $1`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceRequest{}, fault.NotFound("service request %s not found", id)
		}
		return ServiceRequest{}, fmt.Errorf("request: get by id: %w", err)
	}
	return req, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]ServiceRequest, error) {
	query := `SELECT ` + selectColumns + ` FROM service_requests WHERE 1=1`
	args := []any{}
	if filters.ClientID != "" {
		args = append(args, filters.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("request: list: %w", err)
	}
	defer rows.Close()

	out := make([]ServiceRequest, 0, 8)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("request: scan: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("request: iterate: %w", err)
	}
	return out, nil
}

// GetForUpdateTx loads a request and locks its row until the transaction
// ends. Concurrent accept calls on the same request serialize here.
func (r *PGRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (ServiceRequest, error) {
	const query = `SELECT ` + selectColumns + ` FROM service_requests WHERE id = $1 FOR UPDATE`

	req, err := scanRequest(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceRequest{}, fault.NotFound("service request %s not found", id)
		}
		return ServiceRequest{}, fmt.Errorf("request: lock for update: %w", err)
	}
	return req, nil
}

func (r *PGRepository) AssignTx(ctx context.Context, tx pgx.Tx, id, providerID string, price float64) error {
	const query = `
		UPDATE service_requests
		SET assigned_provider_id = $2,
		    assigned_price = $3,
		    status = 'ASSIGNED',
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, id, providerID, price); err != nil {
		return fmt.Errorf("request: assign: %w", err)
	}
	return nil
}

// ClearAssignmentTx reverts a request to OPEN, dropping provider and price.
func (r *PGRepository) ClearAssignmentTx(ctx context.Context, tx pgx.Tx, id string) error {
	const query = `
		UPDATE service_requests
		SET assigned_provider_id = NULL,
		    assigned_price = NULL,
		    status = 'OPEN',
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("request: clear assignment: %w", err)
	}
	return nil
}

func (r *PGRepository) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status) error {
	const query = `UPDATE service_requests SET status = $2, updated_at = now() WHERE id = $1`
	if _, err := tx.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("request: set status: %w", err)
	}
	return nil
}

func scanRequest(row pgx.Row) (ServiceRequest, error) {
	var req ServiceRequest
	err := row.Scan(
		&req.ID,
		&req.ClientID,
		&req.Title,
		&req.Description,
		&req.AssignedProviderID,
		&req.AssignedPrice,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return ServiceRequest{}, err
	}
	return req, nil
}
