package order

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-griya/internal/store"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to store.OrderStatus
		want     bool
	}{
		{store.OrderStatusPending, store.OrderStatusPaid, true},
		{store.OrderStatusPending, store.OrderStatusFailed, true},
		{store.OrderStatusPending, store.OrderStatusCancelled, true},
		{store.OrderStatusPending, store.OrderStatusRefunded, false},
		{store.OrderStatusPaid, store.OrderStatusRefunded, true},
		{store.OrderStatusPaid, store.OrderStatusPending, false},
		{store.OrderStatusFailed, store.OrderStatusPaid, false},
		{store.OrderStatusCancelled, store.OrderStatusPaid, false},
		{store.OrderStatusRefunded, store.OrderStatusPaid, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

type stubOrderQuerier struct {
	order store.Order

	updatedTo   *store.OrderStatus
	historyFrom pgtype.Text
	historyTo   store.OrderStatus
	historyNote pgtype.Text
	historyRows int
}

func (s *stubOrderQuerier) GetOrderByIDForUpdate(_ context.Context, _ pgtype.UUID) (store.Order, error) {
	return s.order, nil
}

func (s *stubOrderQuerier) UpdateOrderStatus(_ context.Context, _ pgtype.UUID, status store.OrderStatus) error {
	s.updatedTo = &status
	return nil
}

func (s *stubOrderQuerier) InsertOrderStatusHistory(_ context.Context, _ pgtype.UUID, from pgtype.Text, to store.OrderStatus, note pgtype.Text) error {
	s.historyFrom = from
	s.historyTo = to
	s.historyNote = note
	s.historyRows++
	return nil
}

func TestTransitionWritesHistory(t *testing.T) {
	id := store.UUID(uuid.New())
	q := &stubOrderQuerier{order: store.Order{ID: id, Status: store.OrderStatusPending}}

	if err := Transition(context.Background(), q, id, store.OrderStatusPaid, "payment confirmed"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if q.updatedTo == nil || *q.updatedTo != store.OrderStatusPaid {
		t.Fatalf("expected status update to PAID, got %v", q.updatedTo)
	}
	if q.historyRows != 1 {
		t.Fatalf("expected one history row, got %d", q.historyRows)
	}
	if !q.historyFrom.Valid || q.historyFrom.String != string(store.OrderStatusPending) {
		t.Fatalf("expected from=PENDING in history, got %+v", q.historyFrom)
	}
	if q.historyTo != store.OrderStatusPaid {
		t.Fatalf("expected to=PAID in history, got %s", q.historyTo)
	}
	if !q.historyNote.Valid || q.historyNote.String != "payment confirmed" {
		t.Fatalf("expected note recorded, got %+v", q.historyNote)
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	id := store.UUID(uuid.New())
	q := &stubOrderQuerier{order: store.Order{ID: id, Status: store.OrderStatusCancelled}}

	err := Transition(context.Background(), q, id, store.OrderStatusPaid, "")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if q.updatedTo != nil {
		t.Fatal("illegal transition must not touch the order row")
	}
	if q.historyRows != 0 {
		t.Fatal("illegal transition must not write history")
	}
}
