package pitch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/fault"
	"github.com/Sunny-Hasho/Eventura-v1/payment"
	"github.com/Sunny-Hasho/Eventura-v1/request"
)

// TestAcceptance_Integration connects to a real PostgreSQL via DATABASE_URL
// and verifies the full acceptance transaction: pitch accepted, siblings
// rejected, provider assigned, escrow payment opened, and the loser of a
// second accept rejected.
func TestAcceptance_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "service_requests") || !tableExists(ctx, t, pool, "pitches") || !tableExists(ctx, t, pool, "payments") {
		t.Skip("database schema missing; apply migrations/ first")
	}

	var clientID, providerA, providerB, requestID string

	insertUser := func(role string) string {
		var id string
		err := pool.QueryRow(ctx,
			`INSERT INTO users (email, password_hash, full_name, role) VALUES ($1, 'x', 'Integration User', $2) RETURNING id`,
			fmt.Sprintf("itest+%d@example.com", time.Now().UnixNano()), role,
		).Scan(&id)
		if err != nil {
			t.Fatalf("seed %s user: %v", role, err)
		}
		return id
	}

	clientID = insertUser("CLIENT")
	providerA = insertUser("PROVIDER")
	providerB = insertUser("PROVIDER")

	if err := pool.QueryRow(ctx,
		`INSERT INTO service_requests (client_id, title, description) VALUES ($1, 'Integration request', '') RETURNING id`,
		clientID,
	).Scan(&requestID); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM payments WHERE request_id = $1`, requestID)
		pool.Exec(ctx2, `DELETE FROM service_requests WHERE id = $1`, requestID)
		pool.Exec(ctx2, `DELETE FROM notifications WHERE user_id IN ($1, $2, $3)`, clientID, providerA, providerB)
		pool.Exec(ctx2, `DELETE FROM users WHERE id IN ($1, $2, $3)`, clientID, providerA, providerB)
	})

	requestRepo := request.NewRepository(pool)
	paymentRepo := payment.NewRepository(pool)
	paymentSvc := payment.NewService(pool, paymentRepo, requestRepo, nil, nil, 10)
	svc := NewService(pool, NewRepository(pool), requestRepo, paymentSvc, paymentRepo, nil, nil)

	client := auth.Actor{ID: clientID, Role: auth.RoleClient}

	pitchA, err := svc.Create(ctx, auth.Actor{ID: providerA, Role: auth.RoleProvider}, CreateParams{
		RequestID:     requestID,
		Message:       "first offer",
		ProposedPrice: 1000,
	})
	if err != nil {
		t.Fatalf("create pitch A: %v", err)
	}
	pitchB, err := svc.Create(ctx, auth.Actor{ID: providerB, Role: auth.RoleProvider}, CreateParams{
		RequestID:     requestID,
		Message:       "second offer",
		ProposedPrice: 800,
	})
	if err != nil {
		t.Fatalf("create pitch B: %v", err)
	}

	res, err := svc.Accept(ctx, client, pitchA.ID)
	if err != nil {
		t.Fatalf("accept pitch A: %v", err)
	}

	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM pitches WHERE id = $1`, pitchB.ID).Scan(&status); err != nil {
		t.Fatalf("verify sibling: %v", err)
	}
	if status != "REJECTED" {
		t.Fatalf("expected sibling pitch REJECTED, got %q", status)
	}

	var reqStatus string
	var assignedProvider *string
	var assignedPrice *float64
	if err := pool.QueryRow(ctx, `SELECT status, assigned_provider_id, assigned_price FROM service_requests WHERE id = $1`, requestID).Scan(&reqStatus, &assignedProvider, &assignedPrice); err != nil {
		t.Fatalf("verify request: %v", err)
	}
	if reqStatus != "ASSIGNED" || assignedProvider == nil || *assignedProvider != providerA || assignedPrice == nil || *assignedPrice != 1000 {
		t.Fatalf("unexpected assignment state: status=%s provider=%v price=%v", reqStatus, assignedProvider, assignedPrice)
	}

	if res.Payment.Status != payment.StatusAwaitingPayment {
		t.Fatalf("expected AWAITING_PAYMENT payment, got %q", res.Payment.Status)
	}
	if math.Abs(res.Payment.Amount-(res.Payment.PlatformFee+res.Payment.ProviderAmount)) > 1e-9 {
		t.Fatalf("fee split does not sum: %v + %v != %v", res.Payment.PlatformFee, res.Payment.ProviderAmount, res.Payment.Amount)
	}

	// the request is no longer open; a second accept must lose
	if _, err := svc.Accept(ctx, client, pitchB.ID); !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("expected second accept to fail with InvalidState, got %v", err)
	}

	paid, err := paymentSvc.MarkAsPaid(ctx, client, res.Payment.ID, fmt.Sprintf("itest-txn-%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("mark as paid: %v", err)
	}
	if paid.Status != payment.StatusEscrowed {
		t.Fatalf("expected ESCROWED, got %q", paid.Status)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
