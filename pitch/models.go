package pitch

import "time"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Pitch mirrors the pitches table: a provider's priced proposal against an
// open service request.
type Pitch struct {
	ID            string
	RequestID     string
	ProviderID    string
	Message       string
	ProposedPrice float64
	Status        Status
	CreatedAt     time.Time
}

// CreateParams enumerates the fields required to submit a pitch.
type CreateParams struct {
	RequestID     string
	ProviderID    string
	Message       string
	ProposedPrice float64
}
