package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/fault"
	"github.com/Sunny-Hasho/Eventura-v1/request"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RequestStore is the slice of the request repository the escrow engine
// needs: the owning request's status is always written in the same
// transaction as the payment's (lock-step rule).
type RequestStore interface {
	GetByID(ctx context.Context, id string) (request.ServiceRequest, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (request.ServiceRequest, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status request.Status) error
}

// Notifier delivers a best-effort message to one user.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// Broadcaster pushes a fire-and-forget event to all connected dashboards.
type Broadcaster interface {
	Publish(entityType, action string)
}

// Service is the payment escrow engine. Every transition is a guarded
// read-modify-write on one locked payment row; side effects run only after
// the transaction commits and never affect the outcome.
type Service struct {
	pool        TxBeginner
	repo        Repository
	requests    RequestStore
	notifier    Notifier
	broadcaster Broadcaster
	feePct      float64
}

func NewService(pool TxBeginner, repo Repository, requests RequestStore, notifier Notifier, broadcaster Broadcaster, feePct float64) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		requests:    requests,
		notifier:    notifier,
		broadcaster: broadcaster,
		feePct:      feePct,
	}
}

// EscrowParams carries the inputs for opening an escrow payment.
type EscrowParams struct {
	RequestID  string
	ClientID   string
	ProviderID string
	Amount     float64
}

// CreateEscrowTx inserts a new AWAITING_PAYMENT row inside the caller's
// transaction. The pitch manager invokes it from the acceptance transaction
// so that assignment and payment creation commit or roll back together.
// Returns Conflict when a non-terminal payment already exists for the
// request. The caller is responsible for NotifyCreated after commit.
func (s *Service) CreateEscrowTx(ctx context.Context, tx pgx.Tx, params EscrowParams) (Payment, error) {
	if params.Amount <= 0 {
		return Payment{}, fmt.Errorf("payment: amount must be positive, got %v", params.Amount)
	}

	if _, exists, err := s.repo.FindActiveByRequestTx(ctx, tx, params.RequestID); err != nil {
		return Payment{}, err
	} else if exists {
		return Payment{}, fault.Conflict("an active payment already exists for request %s", params.RequestID)
	}

	platformFee := params.Amount * (s.feePct / 100.0)
	p, err := s.repo.CreateTx(ctx, tx, CreateParams{
		RequestID:      params.RequestID,
		ClientID:       params.ClientID,
		ProviderID:     params.ProviderID,
		Amount:         params.Amount,
		PlatformFee:    platformFee,
		ProviderAmount: params.Amount - platformFee,
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// CreateEscrow opens an escrow payment outside the acceptance flow, for a
// request that already has an assigned provider.
func (s *Service) CreateEscrow(ctx context.Context, actor auth.Actor, requestID string) (Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Payment{}, fmt.Errorf("payment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := s.requests.GetForUpdateTx(ctx, tx, requestID)
	if err != nil {
		return Payment{}, err
	}
	if req.ClientID != actor.ID && !actor.IsAdmin() {
		return Payment{}, fault.Unauthorized("only the request's client can open a payment")
	}
	if req.AssignedProviderID == nil || req.AssignedPrice == nil {
		return Payment{}, fault.InvalidState("request %s has no assigned provider", requestID)
	}

	p, err := s.CreateEscrowTx(ctx, tx, EscrowParams{
		RequestID:  req.ID,
		ClientID:   req.ClientID,
		ProviderID: *req.AssignedProviderID,
		Amount:     *req.AssignedPrice,
	})
	if err != nil {
		return Payment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Payment{}, fmt.Errorf("payment: commit escrow creation: %w", err)
	}

	s.NotifyCreated(ctx, p)
	return p, nil
}

// NotifyCreated performs the post-commit side effects of escrow creation:
// ask the client to pay and refresh the dashboards.
func (s *Service) NotifyCreated(ctx context.Context, p Payment) {
	s.notify(ctx, p.ClientID, fmt.Sprintf("Please complete payment of Rs %.2f to confirm your provider", p.Amount))
	s.publish("CREATED")
}

// MarkAsPaid records that the client has paid and the money is escrowed.
func (s *Service) MarkAsPaid(ctx context.Context, actor auth.Actor, paymentID, transactionID string) (Payment, error) {
	if transactionID == "" {
		return Payment{}, fmt.Errorf("payment: transaction id is required")
	}

	p, err := s.transition(ctx, paymentID, StatusEscrowed, &transactionID, request.StatusAssigned, func(p Payment) error {
		if p.ClientID != actor.ID {
			return fault.Unauthorized("only the client can confirm payment")
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.notify(ctx, p.ProviderID, fmt.Sprintf("Payment of Rs %.2f has been secured for your request. You can start work!", p.Amount))
	s.publish("ESCROWED")
	return p, nil
}

// MarkWorkComplete is the provider's signal that the work is done; the
// payment waits for the client's approval before release.
func (s *Service) MarkWorkComplete(ctx context.Context, actor auth.Actor, paymentID string) (Payment, error) {
	p, err := s.transition(ctx, paymentID, StatusPendingRelease, nil, "", func(p Payment) error {
		if p.ProviderID != actor.ID {
			return fault.Unauthorized("only the provider can mark work complete")
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.notify(ctx, p.ClientID, "The provider marked the work complete. Review it and release the payment.")
	s.publish("PENDING_RELEASE")
	return p, nil
}

// Release moves the escrowed money to the provider and completes the request.
func (s *Service) Release(ctx context.Context, actor auth.Actor, paymentID string) (Payment, error) {
	p, err := s.transition(ctx, paymentID, StatusReleased, nil, request.StatusCompleted, func(p Payment) error {
		if p.ClientID != actor.ID && !actor.IsAdmin() {
			return fault.Unauthorized("only the client or an admin can release payment")
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.notify(ctx, p.ProviderID, fmt.Sprintf("Payment of Rs %.2f has been released! You received Rs %.2f (after platform fee).", p.Amount, p.ProviderAmount))
	s.notify(ctx, p.ClientID, fmt.Sprintf("Your payment of Rs %.2f has been successfully released to the provider.", p.Amount))
	s.publish("RELEASED")
	return p, nil
}

// Dispute blocks release pending admin review.
func (s *Service) Dispute(ctx context.Context, actor auth.Actor, paymentID, reason string) (Payment, error) {
	p, err := s.transition(ctx, paymentID, StatusDisputed, nil, "", func(p Payment) error {
		if p.ClientID != actor.ID {
			return fault.Unauthorized("only the client can dispute payment")
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.notify(ctx, p.ProviderID, fmt.Sprintf("The client has disputed the payment for your request. Reason: %s. An admin will review.", reason))
	s.publish("DISPUTED")
	return p, nil
}

// Refund returns the money to the client and cancels the request. Admin only.
func (s *Service) Refund(ctx context.Context, actor auth.Actor, paymentID, reason string) (Payment, error) {
	p, err := s.transition(ctx, paymentID, StatusRefunded, nil, request.StatusCancelled, func(p Payment) error {
		if !actor.IsAdmin() {
			return fault.Unauthorized("only admins can issue refunds")
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.notify(ctx, p.ClientID, fmt.Sprintf("Your payment of Rs %.2f has been refunded. Reason: %s", p.Amount, reason))
	s.notify(ctx, p.ProviderID, fmt.Sprintf("The payment for your request has been refunded to the client. Reason: %s", reason))
	s.publish("REFUNDED")
	return p, nil
}

// ExpireStale moves AWAITING_PAYMENT payments older than olderThan to
// EXPIRED. Nothing schedules this; it exists for operators or a future
// sweeper and uses the same guarded write as every other transition.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("payment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	expired, err := s.repo.ExpireStaleTx(ctx, tx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("payment: commit expiry: %w", err)
	}

	for _, p := range expired {
		s.notify(ctx, p.ClientID, "Your payment window has expired. The provider has not been confirmed.")
	}
	if len(expired) > 0 {
		s.publish("EXPIRED")
	}
	return len(expired), nil
}

// ListByClient returns the actor's payments as the paying client.
func (s *Service) ListByClient(ctx context.Context, actor auth.Actor) ([]Payment, error) {
	return s.repo.ListByClient(ctx, actor.ID)
}

// ListByProvider returns the actor's payments as the earning provider.
func (s *Service) ListByProvider(ctx context.Context, actor auth.Actor) ([]Payment, error) {
	return s.repo.ListByProvider(ctx, actor.ID)
}

// ListAll returns payments across all users, optionally filtered by status.
// Admin only.
func (s *Service) ListAll(ctx context.Context, actor auth.Actor, status Status) ([]Payment, error) {
	if !actor.IsAdmin() {
		return nil, fault.Unauthorized("only admins can list all payments")
	}
	return s.repo.ListByStatus(ctx, status)
}

// GetStatus returns a payment for its client, its provider, or an admin.
func (s *Service) GetStatus(ctx context.Context, actor auth.Actor, paymentID string) (Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if p.ClientID != actor.ID && p.ProviderID != actor.ID && !actor.IsAdmin() {
		return Payment{}, fault.Unauthorized("not authorized to view this payment")
	}
	return p, nil
}

// GetStatusByRequest returns the most recent payment on a request, for the
// request's client, its assigned provider, or an admin.
func (s *Service) GetStatusByRequest(ctx context.Context, actor auth.Actor, requestID string) (Payment, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return Payment{}, err
	}
	isProvider := req.AssignedProviderID != nil && *req.AssignedProviderID == actor.ID
	if req.ClientID != actor.ID && !isProvider && !actor.IsAdmin() {
		return Payment{}, fault.Unauthorized("not authorized to view payments for this request")
	}
	return s.repo.GetLatestByRequest(ctx, requestID)
}

// transition runs one guarded read-modify-write: lock the payment row, check
// the actor guard, validate the edge against the transition table, write the
// new status, and sync the owning request's status when the lock-step rule
// demands it. Guard failures leave no partial write.
func (s *Service) transition(ctx context.Context, paymentID string, to Status, transactionID *string, reqStatus request.Status, guard func(Payment) error) (Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Payment{}, fmt.Errorf("payment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.repo.GetForUpdateTx(ctx, tx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if err := guard(p); err != nil {
		return Payment{}, err
	}
	if err := validateTransition(p.Status, to); err != nil {
		return Payment{}, err
	}

	if err := s.repo.SetStatusTx(ctx, tx, p.ID, to, transactionID); err != nil {
		return Payment{}, err
	}
	if reqStatus != "" {
		if err := s.requests.SetStatusTx(ctx, tx, p.RequestID, reqStatus); err != nil {
			return Payment{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Payment{}, fmt.Errorf("payment: commit transition to %s: %w", to, err)
	}

	p.Status = to
	if transactionID != nil {
		p.TransactionID = transactionID
	}
	return p, nil
}

func (s *Service) notify(ctx context.Context, userID, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, message); err != nil {
		log.Printf("payment: notify user %s: %v", userID, err)
	}
}

func (s *Service) publish(action string) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish("PAYMENT", action)
}
