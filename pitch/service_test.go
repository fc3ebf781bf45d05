package pitch

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/fault"
	"github.com/Sunny-Hasho/Eventura-v1/payment"
	"github.com/Sunny-Hasho/Eventura-v1/request"
)

func TestCreate_OnlyProviders(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeRequests{}, &fakeEscrow{}, &fakePayments{})

	_, err := svc.Create(context.Background(), auth.Actor{ID: "client-1", Role: auth.RoleClient}, CreateParams{
		RequestID:     "req-1",
		ProposedPrice: 500,
	})
	if !errors.Is(err, fault.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestCreate_RequestMustExist(t *testing.T) {
	requests := &fakeRequests{getErr: fault.NotFound("request missing-req not found")}
	svc := newTestService(&fakeRepo{}, requests, &fakeEscrow{}, &fakePayments{})

	_, err := svc.Create(context.Background(), auth.Actor{ID: "prov-1", Role: auth.RoleProvider}, CreateParams{
		RequestID:     "missing-req",
		ProposedPrice: 500,
	})
	if !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCreate_RejectsNonPositivePrice(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeRequests{}, &fakeEscrow{}, &fakePayments{})

	_, err := svc.Create(context.Background(), auth.Actor{ID: "prov-1", Role: auth.RoleProvider}, CreateParams{
		RequestID:     "req-1",
		ProposedPrice: 0,
	})
	if err == nil {
		t.Fatalf("expected error for zero price")
	}
}

func TestCreate_SetsProviderFromActor(t *testing.T) {
	repo := &fakeRepo{}
	requests := &fakeRequests{req: openRequest()}
	notifier := &fakeNotifier{}
	svc := NewService(&fakePool{}, repo, requests, &fakeEscrow{}, &fakePayments{}, notifier, nil)

	p, err := svc.Create(context.Background(), auth.Actor{ID: "prov-9", Role: auth.RoleProvider}, CreateParams{
		RequestID:     "req-1",
		ProviderID:    "someone-else",
		Message:       "I can do this",
		ProposedPrice: 750,
	})
	if err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	if p.ProviderID != "prov-9" {
		t.Errorf("expected provider id from actor, got %q", p.ProviderID)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].userID != "client-1" {
		t.Errorf("expected client notification, got %+v", notifier.sent)
	}
}

func TestAccept_Success(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{pitch: pendingPitch()}
	requests := &fakeRequests{req: openRequest()}
	escrow := &fakeEscrow{}
	notifier := &fakeNotifier{}
	svc := NewService(pool, repo, requests, escrow, &fakePayments{}, notifier, nil)

	res, err := svc.Accept(context.Background(), auth.Actor{ID: "client-1", Role: auth.RoleClient}, "pitch-1")
	if err != nil {
		t.Fatalf("expected accept to succeed, got %v", err)
	}

	if !pool.tx.committed {
		t.Errorf("expected transaction to commit")
	}
	if repo.setStatus != StatusAccepted {
		t.Errorf("expected pitch set ACCEPTED, got %q", repo.setStatus)
	}
	if !repo.rejectedSiblings {
		t.Errorf("expected pending siblings to be rejected")
	}
	if requests.assignedProvider != "prov-1" || requests.assignedPrice != 500 {
		t.Errorf("expected assignment prov-1/500, got %s/%v", requests.assignedProvider, requests.assignedPrice)
	}
	if escrow.params.Amount != 500 || escrow.params.ClientID != "client-1" || escrow.params.ProviderID != "prov-1" {
		t.Errorf("unexpected escrow params %+v", escrow.params)
	}
	if !escrow.notified {
		t.Errorf("expected escrow notification after commit")
	}
	if res.Pitch.Status != StatusAccepted {
		t.Errorf("expected returned pitch ACCEPTED, got %q", res.Pitch.Status)
	}
}

func TestAccept_OnlyRequestClient(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{pitch: pendingPitch()}
	requests := &fakeRequests{req: openRequest()}
	svc := newTestServiceWithPool(pool, repo, requests, &fakeEscrow{}, &fakePayments{})

	_, err := svc.Accept(context.Background(), auth.Actor{ID: "other-client", Role: auth.RoleClient}, "pitch-1")
	if !errors.Is(err, fault.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if pool.tx.committed {
		t.Errorf("expected no commit on authorization failure")
	}
	if !pool.tx.rolled {
		t.Errorf("expected rollback")
	}
}

func TestAccept_RaceLoserSeesAssignedRequest(t *testing.T) {
	pool := &fakePool{}
	req := openRequest()
	req.Status = request.StatusAssigned
	repo := &fakeRepo{pitch: pendingPitch()}
	svc := newTestServiceWithPool(pool, repo, &fakeRequests{req: req}, &fakeEscrow{}, &fakePayments{})

	_, err := svc.Accept(context.Background(), auth.Actor{ID: "client-1", Role: auth.RoleClient}, "pitch-1")
	if !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
	if pool.tx.committed {
		t.Errorf("expected no commit when request is no longer open")
	}
}

func TestAccept_PitchMustBePending(t *testing.T) {
	p := pendingPitch()
	p.Status = StatusRejected
	svc := newTestService(&fakeRepo{pitch: p}, &fakeRequests{req: openRequest()}, &fakeEscrow{}, &fakePayments{})

	_, err := svc.Accept(context.Background(), auth.Actor{ID: "client-1", Role: auth.RoleClient}, "pitch-1")
	if !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestAccept_EscrowConflictAbortsAcceptance(t *testing.T) {
	pool := &fakePool{}
	escrow := &fakeEscrow{createErr: fault.Conflict("an active payment already exists for request req-1")}
	svc := newTestServiceWithPool(pool, &fakeRepo{pitch: pendingPitch()}, &fakeRequests{req: openRequest()}, escrow, &fakePayments{})

	_, err := svc.Accept(context.Background(), auth.Actor{ID: "client-1", Role: auth.RoleClient}, "pitch-1")
	if !errors.Is(err, fault.ErrConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
	if pool.tx.committed {
		t.Errorf("expected acceptance to roll back with the payment")
	}
	if escrow.notified {
		t.Errorf("expected no escrow notification on rollback")
	}
}

func TestUpdateStatus_CannotSetAcceptedDirectly(t *testing.T) {
	svc := newTestService(&fakeRepo{pitch: pendingPitch()}, &fakeRequests{req: openRequest()}, &fakeEscrow{}, &fakePayments{})

	_, err := svc.UpdateStatus(context.Background(), auth.Actor{ID: "client-1", Role: auth.RoleClient}, "pitch-1", StatusAccepted)
	if !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestUpdateStatus_Reject(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{pitch: pendingPitch()}
	svc := newTestServiceWithPool(pool, repo, &fakeRequests{req: openRequest()}, &fakeEscrow{}, &fakePayments{})

	p, err := svc.UpdateStatus(context.Background(), auth.Actor{ID: "client-1", Role: auth.RoleClient}, "pitch-1", StatusRejected)
	if err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}
	if p.Status != StatusRejected {
		t.Errorf("expected REJECTED, got %q", p.Status)
	}
	if !pool.tx.committed {
		t.Errorf("expected commit")
	}
}

func TestWithdraw_PendingPitch(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{pitch: pendingPitch()}
	requests := &fakeRequests{req: openRequest()}
	svc := newTestServiceWithPool(pool, repo, requests, &fakeEscrow{}, &fakePayments{})

	err := svc.Withdraw(context.Background(), auth.Actor{ID: "prov-1", Role: auth.RoleProvider}, "pitch-1")
	if err != nil {
		t.Fatalf("expected withdrawal to succeed, got %v", err)
	}
	if !repo.deleted {
		t.Errorf("expected pitch to be deleted")
	}
	if requests.cleared {
		t.Errorf("expected assignment untouched for a pending pitch")
	}
}

func TestWithdraw_OnlyOwner(t *testing.T) {
	svc := newTestService(&fakeRepo{pitch: pendingPitch()}, &fakeRequests{req: openRequest()}, &fakeEscrow{}, &fakePayments{})

	err := svc.Withdraw(context.Background(), auth.Actor{ID: "prov-other", Role: auth.RoleProvider}, "pitch-1")
	if !errors.Is(err, fault.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestWithdraw_AcceptedBeforePayment(t *testing.T) {
	pool := &fakePool{}
	p := pendingPitch()
	p.Status = StatusAccepted
	repo := &fakeRepo{pitch: p}
	req := openRequest()
	req.Status = request.StatusAssigned
	requests := &fakeRequests{req: req}
	payments := &fakePayments{
		active:    payment.Payment{ID: "pay-1", RequestID: "req-1", Status: payment.StatusAwaitingPayment},
		hasActive: true,
	}
	svc := newTestServiceWithPool(pool, repo, requests, &fakeEscrow{}, payments)

	err := svc.Withdraw(context.Background(), auth.Actor{ID: "prov-1", Role: auth.RoleProvider}, "pitch-1")
	if err != nil {
		t.Fatalf("expected withdrawal to succeed, got %v", err)
	}
	if payments.setStatus != payment.StatusExpired {
		t.Errorf("expected payment expired, got %q", payments.setStatus)
	}
	if !requests.cleared {
		t.Errorf("expected assignment to be cleared")
	}
	if !repo.deleted {
		t.Errorf("expected pitch to be deleted")
	}
	if !pool.tx.committed {
		t.Errorf("expected a single committed transaction")
	}
}

func TestWithdraw_BlockedOnceEscrowed(t *testing.T) {
	pool := &fakePool{}
	p := pendingPitch()
	p.Status = StatusAccepted
	req := openRequest()
	req.Status = request.StatusAssigned
	payments := &fakePayments{
		active:    payment.Payment{ID: "pay-1", RequestID: "req-1", Status: payment.StatusEscrowed},
		hasActive: true,
	}
	svc := newTestServiceWithPool(pool, &fakeRepo{pitch: p}, &fakeRequests{req: req}, &fakeEscrow{}, payments)

	err := svc.Withdraw(context.Background(), auth.Actor{ID: "prov-1", Role: auth.RoleProvider}, "pitch-1")
	if !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
	if pool.tx.committed {
		t.Errorf("expected no commit once money is escrowed")
	}
}

func TestWithdraw_BlockedOnceRequestSettled(t *testing.T) {
	p := pendingPitch()
	p.Status = StatusAccepted
	req := openRequest()
	req.Status = request.StatusCompleted
	svc := newTestService(&fakeRepo{pitch: p}, &fakeRequests{req: req}, &fakeEscrow{}, &fakePayments{})

	err := svc.Withdraw(context.Background(), auth.Actor{ID: "prov-1", Role: auth.RoleProvider}, "pitch-1")
	if !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestListMine_OnlyProviders(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeRequests{}, &fakeEscrow{}, &fakePayments{})

	_, err := svc.ListMine(context.Background(), auth.Actor{ID: "client-1", Role: auth.RoleClient})
	if !errors.Is(err, fault.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func pendingPitch() Pitch {
	return Pitch{
		ID:            "pitch-1",
		RequestID:     "req-1",
		ProviderID:    "prov-1",
		Message:       "hire me",
		ProposedPrice: 500,
		Status:        StatusPending,
	}
}

func openRequest() request.ServiceRequest {
	return request.ServiceRequest{
		ID:       "req-1",
		ClientID: "client-1",
		Title:    "Wedding photography",
		Status:   request.StatusOpen,
	}
}

func newTestService(repo *fakeRepo, requests *fakeRequests, escrow *fakeEscrow, payments *fakePayments) *Service {
	return newTestServiceWithPool(&fakePool{}, repo, requests, escrow, payments)
}

func newTestServiceWithPool(pool *fakePool, repo *fakeRepo, requests *fakeRequests, escrow *fakeEscrow, payments *fakePayments) *Service {
	return NewService(pool, repo, requests, escrow, payments, nil, nil)
}

type fakeRepo struct {
	pitch            Pitch
	created          *Pitch
	setStatus        Status
	rejectedSiblings bool
	deleted          bool
}

func (f *fakeRepo) Create(ctx context.Context, params CreateParams) (Pitch, error) {
	p := Pitch{
		ID:            "pitch-new",
		RequestID:     params.RequestID,
		ProviderID:    params.ProviderID,
		Message:       params.Message,
		ProposedPrice: params.ProposedPrice,
		Status:        StatusPending,
	}
	f.created = &p
	return p, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (Pitch, error) {
	if f.pitch.ID == "" {
		return Pitch{}, fault.NotFound("pitch %s not found", id)
	}
	return f.pitch, nil
}

func (f *fakeRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (Pitch, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRepo) ListByRequest(ctx context.Context, requestID string) ([]Pitch, error) {
	return []Pitch{f.pitch}, nil
}

func (f *fakeRepo) ListByProvider(ctx context.Context, providerID string) ([]Pitch, error) {
	return []Pitch{f.pitch}, nil
}

func (f *fakeRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status) error {
	f.setStatus = status
	return nil
}

func (f *fakeRepo) RejectPendingSiblingsTx(ctx context.Context, tx pgx.Tx, requestID, exceptID string) ([]Pitch, error) {
	f.rejectedSiblings = true
	return []Pitch{{ID: "pitch-2", RequestID: requestID, ProviderID: "prov-2", Status: StatusRejected}}, nil
}

func (f *fakeRepo) DeleteTx(ctx context.Context, tx pgx.Tx, id string) error {
	f.deleted = true
	return nil
}

type fakeRequests struct {
	req              request.ServiceRequest
	getErr           error
	assignedProvider string
	assignedPrice    float64
	cleared          bool
}

func (f *fakeRequests) GetByID(ctx context.Context, id string) (request.ServiceRequest, error) {
	if f.getErr != nil {
		return request.ServiceRequest{}, f.getErr
	}
	return f.req, nil
}

func (f *fakeRequests) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (request.ServiceRequest, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRequests) AssignTx(ctx context.Context, tx pgx.Tx, id, providerID string, price float64) error {
	f.assignedProvider = providerID
	f.assignedPrice = price
	return nil
}

func (f *fakeRequests) ClearAssignmentTx(ctx context.Context, tx pgx.Tx, id string) error {
	f.cleared = true
	return nil
}

type fakeEscrow struct {
	params    payment.EscrowParams
	createErr error
	notified  bool
}

func (f *fakeEscrow) CreateEscrowTx(ctx context.Context, tx pgx.Tx, params payment.EscrowParams) (payment.Payment, error) {
	if f.createErr != nil {
		return payment.Payment{}, f.createErr
	}
	f.params = params
	return payment.Payment{
		ID:         "pay-new",
		RequestID:  params.RequestID,
		ClientID:   params.ClientID,
		ProviderID: params.ProviderID,
		Amount:     params.Amount,
		Status:     payment.StatusAwaitingPayment,
	}, nil
}

func (f *fakeEscrow) NotifyCreated(ctx context.Context, p payment.Payment) {
	f.notified = true
}

type fakePayments struct {
	active    payment.Payment
	hasActive bool
	setStatus payment.Status
}

func (f *fakePayments) FindActiveByRequestTx(ctx context.Context, tx pgx.Tx, requestID string) (payment.Payment, bool, error) {
	return f.active, f.hasActive, nil
}

func (f *fakePayments) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status payment.Status, transactionID *string) error {
	f.setStatus = status
	return nil
}

type fakeNotifier struct {
	sent []sentNotification
}

type sentNotification struct {
	userID  string
	message string
}

func (f *fakeNotifier) Notify(ctx context.Context, userID, message string) error {
	f.sent = append(f.sent, sentNotification{userID: userID, message: message})
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
