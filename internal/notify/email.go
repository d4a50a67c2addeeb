package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/events"
)

// EmailWorker turns notification tasks into transactional emails. Tasks whose
// payload carries no recipient are acknowledged without sending.
type EmailWorker struct {
	Mail common.EmailSender
	Now  func() time.Time
	Log  zerolog.Logger
}

// Register attaches the worker's handlers to the mux.
func (w EmailWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskOrderCreated, w.Handle)
	mux.HandleFunc(TaskOrderPaid, w.Handle)
	mux.HandleFunc(TaskPaymentFailed, w.Handle)
}

// Handle processes one notification task.
func (w EmailWorker) Handle(_ context.Context, task *asynq.Task) error {
	if w.Mail == nil {
		return nil
	}
	var envelope TaskPayload
	if err := json.Unmarshal(task.Payload(), &envelope); err != nil {
		return fmt.Errorf("notify: decode task %s: %w", task.Type(), err)
	}
	payload := map[string]any{}
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return fmt.Errorf("notify: decode event payload: %w", err)
		}
	}
	to := extractRecipient(payload)
	if to == "" {
		w.Log.Debug().Str("topic", envelope.Topic).Msg("notification has no recipient, skipping")
		return nil
	}
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	return w.Mail.Send(to, subjectFor(envelope.Topic), bodyFor(envelope.Topic, payload, now))
}

func extractRecipient(payload map[string]any) string {
	keys := []string{"email", "recipient", "userEmail", "customerEmail"}
	for _, key := range keys {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func subjectFor(topic string) string {
	switch topic {
	case events.TopicOrderCreated:
		return "Pesanan diterima"
	case events.TopicOrderPaid:
		return "Pembayaran berhasil"
	case events.TopicOrderCancelled:
		return "Pesanan dibatalkan"
	case events.TopicPaymentFailed:
		return "Pembayaran gagal"
	default:
		return fmt.Sprintf("Notifikasi %s", topic)
	}
}

func bodyFor(topic string, payload map[string]any, occurred time.Time) string {
	summary := fmt.Sprintf("Event %s terjadi pada %s.", topic, occurred.Format(time.RFC3339))
	if orderID, ok := payload["orderId"].(string); ok && orderID != "" {
		summary += fmt.Sprintf("\nID Pesanan: %s", orderID)
	}
	if number, ok := payload["number"].(string); ok && number != "" {
		summary += fmt.Sprintf("\nNomor Pesanan: %s", number)
	}
	if note, ok := payload["message"].(string); ok && note != "" {
		summary += "\n" + note
	}
	return summary
}
