package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/fault"
	"github.com/Sunny-Hasho/Eventura-v1/payment"
	"github.com/Sunny-Hasho/Eventura-v1/pitch"
)

// tolerable reports whether an error is expected under contention: a guard
// rejection, a lost race, a row another actor already consumed, or a
// transaction Postgres aborted to break a deadlock.
func tolerable(err error) bool {
	if err == nil ||
		errors.Is(err, fault.ErrNotFound) ||
		errors.Is(err, fault.ErrUnauthorized) ||
		errors.Is(err, fault.ErrInvalidState) ||
		errors.Is(err, fault.ErrConflict) ||
		errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40P01" || pgErr.Code == "40001")
}

// Pitcher keeps submitting pitches against the same request, so the pool of
// PENDING pitches never drains while accepters race over them.
func Pitcher(ctx context.Context, svc *pitch.Service, provider auth.Actor, requestID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Create(ctx, provider, pitch.CreateParams{
			RequestID:     requestID,
			Message:       "stress pitch",
			ProposedPrice: float64(100 + rand.Intn(900)),
		})
		if !tolerable(err) {
			return fmt.Errorf("pitcher create: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Accepter picks any PENDING pitch on the request and tries to accept it.
// Concurrent accepters serialize on the request row; only one may win per
// open window, the rest fail with InvalidState or Conflict.
func Accepter(ctx context.Context, svc *pitch.Service, pool *pgxpool.Pool, client auth.Actor, requestID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var pitchID string
		err := pool.QueryRow(ctx, `SELECT id FROM pitches WHERE request_id=$1 AND status='PENDING' LIMIT 1`, requestID).Scan(&pitchID)
		if err == nil {
			if _, err := svc.Accept(ctx, client, pitchID); !tolerable(err) {
				return fmt.Errorf("accepter accept: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
			return fmt.Errorf("accepter lookup: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Payer confirms AWAITING_PAYMENT payments as the client.
func Payer(ctx context.Context, svc *payment.Service, pool *pgxpool.Pool, client auth.Actor, requestID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var paymentID string
		err := pool.QueryRow(ctx, `SELECT id FROM payments WHERE request_id=$1 AND status='AWAITING_PAYMENT' LIMIT 1`, requestID).Scan(&paymentID)
		if err == nil {
			txnID := "txn-" + uuid.NewString()
			if _, err := svc.MarkAsPaid(ctx, client, paymentID, txnID); !tolerable(err) {
				return fmt.Errorf("payer mark paid: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
			return fmt.Errorf("payer lookup: %w", err)
		}
		time.Sleep(time.Duration(25+rand.Intn(50)) * time.Millisecond)
	}
}

// Worker marks ESCROWED payments complete as the earning provider.
func Worker(ctx context.Context, svc *payment.Service, pool *pgxpool.Pool, provider auth.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var paymentID string
		err := pool.QueryRow(ctx, `SELECT id FROM payments WHERE provider_id=$1 AND status='ESCROWED' LIMIT 1`, provider.ID).Scan(&paymentID)
		if err == nil {
			if _, err := svc.MarkWorkComplete(ctx, provider, paymentID); !tolerable(err) {
				return fmt.Errorf("worker complete: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
			return fmt.Errorf("worker lookup: %w", err)
		}
		time.Sleep(time.Duration(25+rand.Intn(50)) * time.Millisecond)
	}
}

// Releaser settles PENDING_RELEASE payments as the client: mostly releases,
// occasionally disputes instead. Disputed payments are left for the Arbiter.
func Releaser(ctx context.Context, svc *payment.Service, pool *pgxpool.Pool, client auth.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var paymentID string
		err := pool.QueryRow(ctx, `SELECT id FROM payments WHERE client_id=$1 AND status='PENDING_RELEASE' LIMIT 1`, client.ID).Scan(&paymentID)
		if err == nil {
			if rand.Intn(4) == 0 {
				if _, err := svc.Dispute(ctx, client, paymentID, "stress dispute"); !tolerable(err) {
					return fmt.Errorf("releaser dispute: %w", err)
				}
			} else {
				if _, err := svc.Release(ctx, client, paymentID); !tolerable(err) {
					return fmt.Errorf("releaser release: %w", err)
				}
			}
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
			return fmt.Errorf("releaser lookup: %w", err)
		}
		time.Sleep(time.Duration(30+rand.Intn(60)) * time.Millisecond)
	}
}

// Arbiter refunds DISPUTED payments as the admin.
func Arbiter(ctx context.Context, svc *payment.Service, pool *pgxpool.Pool, admin auth.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var paymentID string
		err := pool.QueryRow(ctx, `SELECT id FROM payments WHERE status='DISPUTED' LIMIT 1`).Scan(&paymentID)
		if err == nil {
			if _, err := svc.Refund(ctx, admin, paymentID, "stress resolution"); !tolerable(err) {
				return fmt.Errorf("arbiter refund: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
			return fmt.Errorf("arbiter lookup: %w", err)
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// Withdrawer pulls the provider's own pitches back, including accepted ones
// still waiting on payment, which reopens the request for the next accept.
func Withdrawer(ctx context.Context, svc *pitch.Service, pool *pgxpool.Pool, provider auth.Actor, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var pitchID string
		err := pool.QueryRow(ctx, `SELECT id FROM pitches WHERE provider_id=$1 ORDER BY random() LIMIT 1`, provider.ID).Scan(&pitchID)
		if err == nil {
			if err := svc.Withdraw(ctx, provider, pitchID); !tolerable(err) {
				return fmt.Errorf("withdrawer withdraw: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
			return fmt.Errorf("withdrawer lookup: %w", err)
		}
		time.Sleep(time.Duration(80+rand.Intn(120)) * time.Millisecond)
	}
}
