package pitch

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/fault"
	"github.com/Sunny-Hasho/Eventura-v1/payment"
	"github.com/Sunny-Hasho/Eventura-v1/request"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RequestStore is the slice of the request repository the pitch manager
// needs inside and outside the acceptance transaction.
type RequestStore interface {
	GetByID(ctx context.Context, id string) (request.ServiceRequest, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (request.ServiceRequest, error)
	AssignTx(ctx context.Context, tx pgx.Tx, id, providerID string, price float64) error
	ClearAssignmentTx(ctx context.Context, tx pgx.Tx, id string) error
}

// EscrowEngine is the payment engine surface invoked exactly once, at
// acceptance time, inside the acceptance transaction.
type EscrowEngine interface {
	CreateEscrowTx(ctx context.Context, tx pgx.Tx, params payment.EscrowParams) (payment.Payment, error)
	NotifyCreated(ctx context.Context, p payment.Payment)
}

// PaymentStore gives withdrawal its view of the active payment on a request.
type PaymentStore interface {
	FindActiveByRequestTx(ctx context.Context, tx pgx.Tx, requestID string) (payment.Payment, bool, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status payment.Status, transactionID *string) error
}

// Notifier delivers a best-effort message to one user.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// Broadcaster pushes a fire-and-forget event to all connected dashboards.
type Broadcaster interface {
	Publish(entityType, action string)
}

// Service is the pitch lifecycle manager.
type Service struct {
	pool        TxBeginner
	repo        Repository
	requests    RequestStore
	escrow      EscrowEngine
	payments    PaymentStore
	notifier    Notifier
	broadcaster Broadcaster
}

func NewService(pool TxBeginner, repo Repository, requests RequestStore, escrow EscrowEngine, payments PaymentStore, notifier Notifier, broadcaster Broadcaster) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		requests:    requests,
		escrow:      escrow,
		payments:    payments,
		notifier:    notifier,
		broadcaster: broadcaster,
	}
}

// Create submits a new PENDING pitch. Providers only. A provider may pitch
// against any existing request regardless of its status; the race against a
// concurrent acceptance is resolved at acceptance time, not here.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Pitch, error) {
	if actor.Role != auth.RoleProvider {
		return Pitch{}, fault.Unauthorized("only providers can create pitches")
	}
	if params.ProposedPrice <= 0 {
		return Pitch{}, fmt.Errorf("pitch: proposed price must be positive, got %v", params.ProposedPrice)
	}

	req, err := s.requests.GetByID(ctx, params.RequestID)
	if err != nil {
		return Pitch{}, err
	}

	params.ProviderID = actor.ID
	p, err := s.repo.Create(ctx, params)
	if err != nil {
		return Pitch{}, err
	}

	s.notify(ctx, req.ClientID, "A new pitch has arrived for your service request")
	s.publish("CREATED")
	return p, nil
}

// AcceptResult bundles the accepted pitch with the escrow payment the
// acceptance opened.
type AcceptResult struct {
	Pitch   Pitch
	Payment payment.Payment
}

// Accept runs the acceptance transaction: lock the pitch and its owning
// request, re-check that the request is still OPEN under the lock, accept
// this pitch, reject the PENDING siblings, assign the provider and price,
// and open the escrow payment. A concurrent accept on the same request
// serializes on the request row lock; the loser observes ASSIGNED and fails
// with InvalidState. Side effects run only after the commit.
func (s *Service) Accept(ctx context.Context, actor auth.Actor, pitchID string) (AcceptResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("pitch: begin acceptance tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.repo.GetForUpdateTx(ctx, tx, pitchID)
	if err != nil {
		return AcceptResult{}, err
	}
	req, err := s.requests.GetForUpdateTx(ctx, tx, p.RequestID)
	if err != nil {
		return AcceptResult{}, err
	}

	if req.ClientID != actor.ID {
		return AcceptResult{}, fault.Unauthorized("only the client who created the request can accept pitches")
	}
	if req.Status != request.StatusOpen {
		return AcceptResult{}, fault.InvalidState("request is not accepting pitches (status %s)", req.Status)
	}
	if p.Status != StatusPending {
		return AcceptResult{}, fault.InvalidState("pitch is %s, only a PENDING pitch can be accepted", p.Status)
	}

	if err := s.repo.SetStatusTx(ctx, tx, p.ID, StatusAccepted); err != nil {
		return AcceptResult{}, err
	}
	rejected, err := s.repo.RejectPendingSiblingsTx(ctx, tx, req.ID, p.ID)
	if err != nil {
		return AcceptResult{}, err
	}
	if err := s.requests.AssignTx(ctx, tx, req.ID, p.ProviderID, p.ProposedPrice); err != nil {
		return AcceptResult{}, err
	}

	pay, err := s.escrow.CreateEscrowTx(ctx, tx, payment.EscrowParams{
		RequestID:  req.ID,
		ClientID:   req.ClientID,
		ProviderID: p.ProviderID,
		Amount:     p.ProposedPrice,
	})
	if err != nil {
		return AcceptResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return AcceptResult{}, fmt.Errorf("pitch: commit acceptance: %w", err)
	}

	for _, sibling := range rejected {
		s.notify(ctx, sibling.ProviderID, "Your pitch for the service request was not selected")
	}
	s.notify(ctx, p.ProviderID, fmt.Sprintf("Your pitch of Rs %.2f was accepted! Waiting for client payment to start work.", p.ProposedPrice))
	s.escrow.NotifyCreated(ctx, pay)
	s.publish("ACCEPTED")

	p.Status = StatusAccepted
	return AcceptResult{Pitch: p, Payment: pay}, nil
}

// UpdateStatus is the client's manual status edit, an explicit REJECTED (or
// back to PENDING) without the full acceptance flow. Accepting must go
// through Accept so the assignment and escrow creation cannot be skipped.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, pitchID string, status Status) (Pitch, error) {
	if status != StatusPending && status != StatusRejected {
		return Pitch{}, fault.InvalidState("pitch status can only be set to PENDING or REJECTED directly; use accept for ACCEPTED")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Pitch{}, fmt.Errorf("pitch: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.repo.GetForUpdateTx(ctx, tx, pitchID)
	if err != nil {
		return Pitch{}, err
	}
	req, err := s.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return Pitch{}, err
	}
	if req.ClientID != actor.ID {
		return Pitch{}, fault.Unauthorized("only the client who created the request can update pitch status")
	}
	if p.Status == StatusAccepted {
		return Pitch{}, fault.InvalidState("an accepted pitch cannot be edited directly")
	}

	if err := s.repo.SetStatusTx(ctx, tx, p.ID, status); err != nil {
		return Pitch{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Pitch{}, fmt.Errorf("pitch: commit status update: %w", err)
	}

	s.notify(ctx, p.ProviderID, fmt.Sprintf("Your pitch has been marked as %s", status))
	p.Status = status
	return p, nil
}

// Withdraw deletes the provider's own pitch. A PENDING pitch withdraws
// freely. An ACCEPTED pitch withdraws only while its payment is still
// AWAITING_PAYMENT; the payment expires, the request reopens, and the
// assignment is cleared in the same transaction. Once money is escrowed the
// withdrawal is rejected.
func (s *Service) Withdraw(ctx context.Context, actor auth.Actor, pitchID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pitch: begin withdrawal tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.repo.GetForUpdateTx(ctx, tx, pitchID)
	if err != nil {
		return err
	}
	if p.ProviderID != actor.ID {
		return fault.Unauthorized("you are not authorized to withdraw this pitch")
	}

	req, err := s.requests.GetForUpdateTx(ctx, tx, p.RequestID)
	if err != nil {
		return err
	}

	switch p.Status {
	case StatusPending:
		// nothing to unwind
	case StatusAccepted:
		if req.Status != request.StatusAssigned {
			return fault.InvalidState("pitch cannot be withdrawn, request is %s", req.Status)
		}
		pay, exists, err := s.payments.FindActiveByRequestTx(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if exists && pay.Status != payment.StatusAwaitingPayment {
			return fault.InvalidState("pitch cannot be withdrawn once payment is %s", pay.Status)
		}
		if exists {
			if err := s.payments.SetStatusTx(ctx, tx, pay.ID, payment.StatusExpired, nil); err != nil {
				return err
			}
		}
		if err := s.requests.ClearAssignmentTx(ctx, tx, req.ID); err != nil {
			return err
		}
	default:
		return fault.InvalidState("a %s pitch cannot be withdrawn", p.Status)
	}

	if err := s.repo.DeleteTx(ctx, tx, p.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pitch: commit withdrawal: %w", err)
	}

	s.notify(ctx, req.ClientID, "A pitch for your service request has been withdrawn")
	s.publish("WITHDRAWN")
	return nil
}

// GetByID returns a single pitch.
func (s *Service) GetByID(ctx context.Context, id string) (Pitch, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByRequest returns every pitch on a request. The request's client,
// pitching providers and admins all read through this.
func (s *Service) ListByRequest(ctx context.Context, requestID string) ([]Pitch, error) {
	if _, err := s.requests.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.ListByRequest(ctx, requestID)
}

// ListMine returns the provider's own pitches.
func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]Pitch, error) {
	if actor.Role != auth.RoleProvider {
		return nil, fault.Unauthorized("only providers can view their own pitches")
	}
	return s.repo.ListByProvider(ctx, actor.ID)
}

func (s *Service) notify(ctx context.Context, userID, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, message); err != nil {
		log.Printf("pitch: notify user %s: %v", userID, err)
	}
}

func (s *Service) publish(action string) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish("PITCH", action)
}
