package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against a live database under load.
// Each query selects violating rows; an empty result means the invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_accepted_pitch",
			SQL: `SELECT request_id, COUNT(*) FROM pitches
                  WHERE status = 'ACCEPTED'
                  GROUP BY request_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_single_active_payment",
			SQL: `SELECT request_id, COUNT(*) FROM payments
                  WHERE status NOT IN ('RELEASED','REFUNDED','EXPIRED')
                  GROUP BY request_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_amount_split",
			SQL: `SELECT id, amount, platform_fee, provider_amount FROM payments
                  WHERE abs(amount - (platform_fee + provider_amount)) > 1e-6`,
		},
		{
			Name: "O4_payment_request_lockstep",
			SQL: `SELECT p.id, p.status, r.status FROM payments p
                  JOIN service_requests r ON r.id = p.request_id
                  WHERE (p.status IN ('ESCROWED','PENDING_RELEASE','DISPUTED') AND r.status <> 'ASSIGNED')
                     OR (p.status = 'RELEASED' AND r.status <> 'COMPLETED')
                     OR (p.status = 'REFUNDED' AND r.status <> 'CANCELLED')`,
		},
		{
			Name: "O5_assignment_matches_accepted_pitch",
			SQL: `SELECT r.id FROM service_requests r
                  WHERE r.status = 'ASSIGNED'
                    AND (r.assigned_provider_id IS NULL OR r.assigned_price IS NULL)
                  UNION ALL
                  SELECT p.request_id FROM pitches p
                  JOIN service_requests r ON r.id = p.request_id
                  WHERE p.status = 'ACCEPTED' AND r.status = 'ASSIGNED'
                    AND r.assigned_provider_id <> p.provider_id`,
		},
		{
			Name: "O6_payment_parties_immutable",
			SQL: `SELECT p.id FROM payments p
                  JOIN service_requests r ON r.id = p.request_id
                  WHERE p.client_id <> r.client_id`,
		},
		{
			Name: "O7_assigned_request_has_payment",
			SQL: `SELECT r.id FROM service_requests r
                  WHERE r.status = 'ASSIGNED'
                    AND NOT EXISTS (
                        SELECT 1 FROM payments p
                        WHERE p.request_id = r.id
                          AND p.status NOT IN ('RELEASED','REFUNDED','EXPIRED'))`,
		},
		{
			Name: "O8_paid_payment_has_transaction",
			SQL: `SELECT id FROM payments
                  WHERE status IN ('ESCROWED','PENDING_RELEASE','RELEASED','DISPUTED')
                    AND transaction_id IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and a sample
// row) or an empty name if every invariant holds.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
