package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sunny-Hasho/Eventura-v1/fault"
)

const selectColumns = `id, request_id, client_id, provider_id, amount, platform_fee, provider_amount, status, transaction_id, created_at, updated_at`

// Repository handles payments data access. Tx-suffixed methods run inside a
// caller-owned transaction; the managers always pair a payment write with the
// owning request's status write under the same transaction.
type Repository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, params CreateParams) (Payment, error)
	GetByID(ctx context.Context, id string) (Payment, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (Payment, error)
	FindActiveByRequestTx(ctx context.Context, tx pgx.Tx, requestID string) (Payment, bool, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status, transactionID *string) error
	GetLatestByRequest(ctx context.Context, requestID string) (Payment, error)
	ListByClient(ctx context.Context, clientID string) ([]Payment, error)
	ListByProvider(ctx context.Context, providerID string) ([]Payment, error)
	ListByStatus(ctx context.Context, status Status) ([]Payment, error)
	ExpireStaleTx(ctx context.Context, tx pgx.Tx, cutoff time.Time) ([]Payment, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateTx(ctx context.Context, tx pgx.Tx, params CreateParams) (Payment, error) {
	const query = `
		INSERT INTO payments (request_id, client_id, provider_id, amount, platform_fee, provider_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'AWAITING_PAYMENT')
		RETURNING ` + selectColumns

	p, err := scanPayment(tx.QueryRow(ctx, query,
		params.RequestID,
		params.ClientID,
		params.ProviderID,
		params.Amount,
		params.PlatformFee,
		params.ProviderAmount,
	))
	if err != nil {
		return Payment{}, fmt.Errorf("payment: create: %w", err)
	}
	return p, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Payment, error) {
	const query = `SELECT ` + selectColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, fault.NotFound("payment %s not found", id)
		}
		return Payment{}, fmt.Errorf("payment: get by id: %w", err)
	}
	return p, nil
}

// GetForUpdateTx loads a payment and locks its row until the transaction
// ends, so a transition guard cannot race another transition.
func (r *PGRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (Payment, error) {
	const query = `SELECT ` + selectColumns + ` FROM payments WHERE id = $1 FOR UPDATE`

	p, err := scanPayment(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, fault.NotFound("payment %s not found", id)
		}
		return Payment{}, fmt.Errorf("payment: lock for update: %w", err)
	}
	return p, nil
}

// FindActiveByRequestTx returns the non-terminal payment for a request, if
// one exists. Used to enforce the one-active-payment rule at creation time.
func (r *PGRepository) FindActiveByRequestTx(ctx context.Context, tx pgx.Tx, requestID string) (Payment, bool, error) {
	const query = `
		SELECT ` + selectColumns + `
		FROM payments
		WHERE request_id = $1
		  AND status NOT IN ('RELEASED', 'REFUNDED', 'EXPIRED')
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := scanPayment(tx.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, false, nil
		}
		return Payment{}, false, fmt.Errorf("payment: find active by request: %w", err)
	}
	return p, true, nil
}

func (r *PGRepository) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status, transactionID *string) error {
	const query = `
		UPDATE payments
		SET status = $2,
		    transaction_id = COALESCE($3, transaction_id),
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, id, status, transactionID); err != nil {
		return fmt.Errorf("payment: set status: %w", err)
	}
	return nil
}

// GetLatestByRequest returns the most recent payment for a request, matching
// the original API's most-recent-payment lookup.
func (r *PGRepository) GetLatestByRequest(ctx context.Context, requestID string) (Payment, error) {
	const query = `
		SELECT ` + selectColumns + `
		FROM payments
		WHERE request_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, fault.NotFound("no payment found for request %s", requestID)
		}
		return Payment{}, fmt.Errorf("payment: get latest by request: %w", err)
	}
	return p, nil
}

func (r *PGRepository) ListByClient(ctx context.Context, clientID string) ([]Payment, error) {
	const query = `SELECT ` + selectColumns + ` FROM payments WHERE client_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, clientID)
}

func (r *PGRepository) ListByProvider(ctx context.Context, providerID string) ([]Payment, error) {
	const query = `SELECT ` + selectColumns + ` FROM payments WHERE provider_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, providerID)
}

func (r *PGRepository) ListByStatus(ctx context.Context, status Status) ([]Payment, error) {
	if status == "" {
		const query = `SELECT ` + selectColumns + ` FROM payments ORDER BY created_at DESC`
		return r.list(ctx, query)
	}
	const query = `SELECT ` + selectColumns + ` FROM payments WHERE status = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, status)
}

// ExpireStaleTx moves AWAITING_PAYMENT rows older than the cutoff to EXPIRED.
// The status predicate in the WHERE clause is the transition guard.
func (r *PGRepository) ExpireStaleTx(ctx context.Context, tx pgx.Tx, cutoff time.Time) ([]Payment, error) {
	const query = `
		UPDATE payments
		SET status = 'EXPIRED', updated_at = now()
		WHERE status = 'AWAITING_PAYMENT' AND created_at < $1
		RETURNING ` + selectColumns

	rows, err := tx.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("payment: expire stale: %w", err)
	}
	defer rows.Close()

	out := make([]Payment, 0, 4)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("payment: scan expired: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment: iterate expired: %w", err)
	}
	return out, nil
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payment: list: %w", err)
	}
	defer rows.Close()

	out := make([]Payment, 0, 8)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("payment: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment: iterate: %w", err)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.RequestID,
		&p.ClientID,
		&p.ProviderID,
		&p.Amount,
		&p.PlatformFee,
		&p.ProviderAmount,
		&p.Status,
		&p.TransactionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}
