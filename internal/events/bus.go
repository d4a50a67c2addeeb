package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-griya/internal/store"
)

// EventStore appends one immutable row to the domain event log.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID pgtype.UUID, payload []byte) (store.DomainEvent, error)
}

// Notifier reacts to a persisted event. The asynq enqueuer is the main
// implementation; tests plug in stubs.
type Notifier interface {
	Notify(ctx context.Context, event store.DomainEvent) error
}

// Bus is the single write path for domain events: persist first, then fan
// out. Notifier failures never undo the persisted row, so the returned event
// is valid even when the error is non-nil.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
}

// Emit appends the event and tells every notifier about it. Notifier errors
// are joined and handed back alongside the stored event; the caller decides
// whether delivery failure is worth logging or failing the request over.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (store.DomainEvent, error) {
	if b == nil || b.Store == nil {
		return store.DomainEvent{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return store.DomainEvent{}, errors.New("events: topic is required")
	}
	if !aggregateID.Valid {
		return store.DomainEvent{}, errors.New("events: aggregate id is required")
	}

	body, err := marshalPayload(payload)
	if err != nil {
		return store.DomainEvent{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev, err := b.Store.InsertDomainEvent(ctx, topic, aggregateID, body)
	if err != nil {
		return store.DomainEvent{}, fmt.Errorf("events: persist event: %w", err)
	}

	var delivery error
	for _, n := range b.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			delivery = errors.Join(delivery, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return ev, delivery
}

// marshalPayload normalises the payload into a JSON document. Nil and empty
// inputs become "{}" so the payload column is always valid JSON; raw bytes
// are passed through after a validity check.
func marshalPayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		return marshalPayload([]byte(v))
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	default:
		return json.Marshal(v)
	}
}
