package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-griya/internal/store"
)

// Enqueuer publishes notification tasks for emitted domain events. It
// implements events.Notifier.
type Enqueuer struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
	Log      zerolog.Logger
}

// Notify enqueues the notification task for the event. Topics without a task
// mapping are skipped.
func (e Enqueuer) Notify(ctx context.Context, event store.DomainEvent) error {
	if e.Client == nil {
		return nil
	}
	task, err := NewTask(event.Topic, store.UUIDString(event.AggregateID), event.Payload)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}
	queue := e.Queue
	if queue == "" {
		queue = "notifications"
	}
	maxRetry := e.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	info, err := e.Client.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", task.Type(), err)
	}
	e.Log.Debug().Str("task_id", info.ID).Str("type", task.Type()).Msg("notification enqueued")
	return nil
}
