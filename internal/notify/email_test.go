package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/events"
)

func TestNewTaskMapsTopics(t *testing.T) {
	cases := map[string]string{
		events.TopicOrderCreated:  TaskOrderCreated,
		events.TopicOrderPaid:     TaskOrderPaid,
		events.TopicPaymentFailed: TaskPaymentFailed,
	}
	for topic, wantType := range cases {
		task, err := NewTask(topic, uuid.NewString(), []byte(`{}`))
		if err != nil {
			t.Fatalf("%s: %v", topic, err)
		}
		if task == nil || task.Type() != wantType {
			t.Fatalf("%s: expected task type %s, got %+v", topic, wantType, task)
		}
	}
}

func TestNewTaskSkipsUnmappedTopics(t *testing.T) {
	task, err := NewTask(events.TopicCartRepriced, uuid.NewString(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task != nil {
		t.Fatalf("expected no task for unmapped topic, got %s", task.Type())
	}
}

func TestEmailWorkerSendsToRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	worker := EmailWorker{
		Mail: mail,
		Now:  func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) },
	}

	payload, _ := json.Marshal(map[string]any{
		"email":   "budi@example.com",
		"orderId": "abc-123",
		"number":  "ORD-20250314-0a1b2",
	})
	task, err := NewTask(events.TopicOrderPaid, uuid.NewString(), payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := worker.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(mail.Outbox) != 1 {
		t.Fatalf("expected one email, got %d", len(mail.Outbox))
	}
	sent := mail.Outbox[0]
	if sent.To != "budi@example.com" {
		t.Fatalf("unexpected recipient %q", sent.To)
	}
	if sent.Subject != "Pembayaran berhasil" {
		t.Fatalf("unexpected subject %q", sent.Subject)
	}
	if !strings.Contains(sent.HTML, "ORD-20250314-0a1b2") {
		t.Fatalf("body must mention the order number, got %q", sent.HTML)
	}
}

func TestEmailWorkerSkipsWithoutRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	worker := EmailWorker{Mail: mail}

	payload, _ := json.Marshal(map[string]any{"orderId": "abc-123"})
	task, err := NewTask(events.TopicOrderCreated, uuid.NewString(), payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := worker.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mail.Outbox) != 0 {
		t.Fatalf("expected no email without a recipient, got %d", len(mail.Outbox))
	}
}

func TestExtractRecipientChecksAlternateKeys(t *testing.T) {
	if got := extractRecipient(map[string]any{"customerEmail": " ani@example.com "}); got != "ani@example.com" {
		t.Fatalf("expected trimmed customerEmail, got %q", got)
	}
	if got := extractRecipient(map[string]any{"email": "   "}); got != "" {
		t.Fatalf("blank values must not count, got %q", got)
	}
}
