package request

import (
	"context"
	"fmt"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/fault"
)

// Service exposes the request-creation collaborator around the core managers.
// Status mutations stay exclusive to the pitch and payment managers; this
// service only opens requests and serves reads.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create opens a new service request in status OPEN. Clients only.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (ServiceRequest, error) {
	if actor.Role != auth.RoleClient {
		return ServiceRequest{}, fault.Unauthorized("only clients can create service requests")
	}
	if params.Title == "" {
		return ServiceRequest{}, fmt.Errorf("request: title is required")
	}
	params.ClientID = actor.ID
	return s.repo.Create(ctx, params)
}

// GetByID returns a single request.
func (s *Service) GetByID(ctx context.Context, id string) (ServiceRequest, error) {
	return s.repo.GetByID(ctx, id)
}

// ListOpen returns open requests for provider discovery.
func (s *Service) ListOpen(ctx context.Context, limit int) ([]ServiceRequest, error) {
	return s.repo.List(ctx, Filters{Status: StatusOpen, Limit: limit})
}

// ListMine returns the actor's own requests.
func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]ServiceRequest, error) {
	return s.repo.List(ctx, Filters{ClientID: actor.ID})
}
