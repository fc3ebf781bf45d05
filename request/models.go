package request

import "time"

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusAssigned  Status = "ASSIGNED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ServiceRequest mirrors the service_requests table. AssignedProviderID and
// AssignedPrice stay nil until a pitch is accepted.
type ServiceRequest struct {
	ID                 string
	ClientID           string
	Title              string
	Description        string
	AssignedProviderID *string
	AssignedPrice      *float64
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CreateParams enumerates the fields required to open a new request.
type CreateParams struct {
	ClientID    string
	Title       string
	Description string
}

// Filters narrows request listings.
type Filters struct {
	ClientID string
	Status   Status
	Limit    int
}
