package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Notification kinds the email worker knows how to render.
const (
	KindVerificationEmail  = "verification_email"
	KindPasswordResetEmail = "password_reset_email"
	KindTaskAssigned       = "task_assigned"
)

// Message is the envelope pushed onto the notification queue.
type Message struct {
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
}

// Publisher enqueues notifications. Callers treat enqueueing as
// fire-and-forget: a failed publish is logged by the caller and never fails
// or rolls back the mutation that triggered it.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Queue is a redis-list backed Publisher.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

// Publish pushes the JSON-encoded message onto the list
func (q *Queue) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	return nil
}
