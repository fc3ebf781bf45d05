package notify

import (
	"context"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
)

// Direct persists notifications synchronously, bypassing the queue. Used
// when no redis address is configured, and by the test harness.
type Direct struct {
	repo Repository
}

func NewDirect(repo Repository) *Direct {
	return &Direct{repo: repo}
}

func (d *Direct) Notify(ctx context.Context, userID, message string) error {
	_, err := d.repo.Create(ctx, userID, message)
	return err
}

// Service exposes a user's own notification feed.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]Notification, error) {
	return s.repo.ListByUser(ctx, actor.ID)
}

func (s *Service) MarkRead(ctx context.Context, actor auth.Actor, id string) error {
	return s.repo.MarkRead(ctx, actor.ID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, actor auth.Actor) error {
	return s.repo.MarkAllRead(ctx, actor.ID)
}
