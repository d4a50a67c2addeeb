package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-griya/internal/events"
)

// Task type names registered with the asynq server.
const (
	TaskOrderCreated  = "notify:order_created"
	TaskOrderPaid     = "notify:order_paid"
	TaskPaymentFailed = "notify:payment_failed"
)

// TaskPayload is the envelope carried by every notification task.
type TaskPayload struct {
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
}

// taskTypeFor maps a domain event topic to its queue task type. Topics without
// a mapping produce no notification.
func taskTypeFor(topic string) (string, bool) {
	switch topic {
	case events.TopicOrderCreated:
		return TaskOrderCreated, true
	case events.TopicOrderPaid:
		return TaskOrderPaid, true
	case events.TopicPaymentFailed:
		return TaskPaymentFailed, true
	default:
		return "", false
	}
}

// NewTask builds the asynq task for a domain event, or nil when the topic has
// no notification.
func NewTask(topic, aggregateID string, payload []byte) (*asynq.Task, error) {
	taskType, ok := taskTypeFor(topic)
	if !ok {
		return nil, nil
	}
	body, err := json.Marshal(TaskPayload{Topic: topic, AggregateID: aggregateID, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("notify: encode task: %w", err)
	}
	return asynq.NewTask(taskType, body), nil
}
