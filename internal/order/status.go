package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-griya/internal/store"
)

// ErrIllegalTransition is returned when a status change is not in the table.
var ErrIllegalTransition = errors.New("illegal order status transition")

// transitions is the closed set of legal order status moves. Anything not
// listed here is rejected before touching the database.
var transitions = map[store.OrderStatus][]store.OrderStatus{
	store.OrderStatusPending:   {store.OrderStatusPaid, store.OrderStatusFailed, store.OrderStatusCancelled},
	store.OrderStatusPaid:      {store.OrderStatusRefunded},
	store.OrderStatusFailed:    {},
	store.OrderStatusCancelled: {},
	store.OrderStatusRefunded:  {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to store.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Querier defines the store operations a status transition needs. The order row
// must be locked so concurrent transitions serialise.
type Querier interface {
	GetOrderByIDForUpdate(ctx context.Context, id pgtype.UUID) (store.Order, error)
	UpdateOrderStatus(ctx context.Context, id pgtype.UUID, status store.OrderStatus) error
	InsertOrderStatusHistory(ctx context.Context, orderID pgtype.UUID, from pgtype.Text, to store.OrderStatus, note pgtype.Text) error
}

// Transition moves the order to the target status inside the caller's
// transaction, appending a history row. History is written here, in the
// application, rather than by a database trigger.
func Transition(ctx context.Context, q Querier, orderID pgtype.UUID, to store.OrderStatus, note string) error {
	o, err := q.GetOrderByIDForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%s -> %s: %w", o.Status, to, ErrIllegalTransition)
	}
	if err := q.UpdateOrderStatus(ctx, orderID, to); err != nil {
		return err
	}
	var noteText pgtype.Text
	if note != "" {
		noteText = pgtype.Text{String: note, Valid: true}
	}
	from := pgtype.Text{String: string(o.Status), Valid: true}
	return q.InsertOrderStatusHistory(ctx, orderID, from, to, noteText)
}
