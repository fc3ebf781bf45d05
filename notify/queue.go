package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskUserAlert = "notify:user_alert"

// UserAlertPayload is the task body carried through redis.
type UserAlertPayload struct {
	UserID  string    `json:"user_id"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Queue enqueues user alerts onto redis for the processor to deliver.
// It satisfies the Notifier interface of the lifecycle managers.
type Queue struct {
	client *asynq.Client
}

func NewQueue(redisAddr string) *Queue {
	return &Queue{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (q *Queue) Notify(ctx context.Context, userID, message string) error {
	payload, err := json.Marshal(UserAlertPayload{UserID: userID, Message: message, SentAt: time.Now()})
	if err != nil {
		return fmt.Errorf("notify: marshal alert payload: %w", err)
	}
	task := asynq.NewTask(TaskUserAlert, payload)
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue("alerts")); err != nil {
		return fmt.Errorf("notify: enqueue alert for user %s: %w", userID, err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
