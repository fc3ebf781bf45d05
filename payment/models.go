package payment

import "time"

type Status string

const (
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusEscrowed        Status = "ESCROWED"
	StatusPendingRelease  Status = "PENDING_RELEASE"
	StatusReleased        Status = "RELEASED"
	StatusRefunded        Status = "REFUNDED"
	StatusDisputed        Status = "DISPUTED"
	StatusExpired         Status = "EXPIRED"
)

// Payment mirrors the payments table. Client, provider and the money split
// are immutable after creation; only Status, TransactionID and UpdatedAt
// change afterwards.
type Payment struct {
	ID             string
	RequestID      string
	ClientID       string
	ProviderID     string
	Amount         float64
	PlatformFee    float64
	ProviderAmount float64
	Status         Status
	TransactionID  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateParams enumerates the write parameters for a new escrow payment.
// The fee split is computed by the service before the insert.
type CreateParams struct {
	RequestID      string
	ClientID       string
	ProviderID     string
	Amount         float64
	PlatformFee    float64
	ProviderAmount float64
}
