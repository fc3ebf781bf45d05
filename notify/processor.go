package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// Processor consumes queued alerts and persists them as notifications.
type Processor struct {
	server *asynq.Server
	repo   Repository
}

func NewProcessor(redisAddr string, repo Repository) *Processor {
	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"alerts": 10,
		},
	})
	return &Processor{server: server, repo: repo}
}

// Start runs the worker in the background until Shutdown.
func (p *Processor) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskUserAlert, p.handleUserAlert)

	go func() {
		if err := p.server.Run(mux); err != nil {
			log.Printf("notify: worker stopped: %v", err)
		}
	}()
}

func (p *Processor) Shutdown() {
	p.server.Shutdown()
}

func (p *Processor) handleUserAlert(ctx context.Context, t *asynq.Task) error {
	var payload UserAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}

	if _, err := p.repo.Create(ctx, payload.UserID, payload.Message); err != nil {
		log.Printf("notify: persist alert for user %s failed: %v", payload.UserID, err)
		return err
	}
	log.Printf("notify: alert delivered -> user=%s", payload.UserID)
	return nil
}
