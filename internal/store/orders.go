package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, number, status, total_amount, discount_amount,
	tax_amount, shipping_amount, grand_total, shipping_address_id, billing_address_id,
	notes, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Number, &o.Status, &o.TotalAmount,
		&o.DiscountAmount, &o.TaxAmount, &o.ShippingAmount, &o.GrandTotal,
		&o.ShippingAddressID, &o.BillingAddressID, &o.Notes, &o.CreatedAt)
	return o, err
}

// CreateOrderParams carries the snapshot amounts for a new order.
type CreateOrderParams struct {
	UserID            pgtype.UUID
	Number            string
	Status            OrderStatus
	TotalAmount       decimal.Decimal
	DiscountAmount    decimal.Decimal
	TaxAmount         decimal.Decimal
	ShippingAmount    decimal.Decimal
	GrandTotal        decimal.Decimal
	ShippingAddressID pgtype.UUID
	BillingAddressID  pgtype.UUID
	Notes             pgtype.Text
}

// CreateOrder inserts the immutable order snapshot.
func (s *Store) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx,
		`INSERT INTO orders (user_id, number, status, total_amount, discount_amount,
			tax_amount, shipping_amount, grand_total, shipping_address_id, billing_address_id, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+orderColumns,
		arg.UserID, arg.Number, arg.Status, arg.TotalAmount, arg.DiscountAmount,
		arg.TaxAmount, arg.ShippingAmount, arg.GrandTotal, arg.ShippingAddressID,
		arg.BillingAddressID, arg.Notes))
}

// CreateOrderItemParams carries one immutable order line.
type CreateOrderItemParams struct {
	OrderID        pgtype.UUID
	ProductID      pgtype.UUID
	VariantID      pgtype.UUID
	Title          string
	Qty            int32
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalPrice     decimal.Decimal
}

// CreateOrderItem inserts one order line.
func (s *Store) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO order_items (order_id, product_id, variant_id, title, qty,
			unit_price, discount_amount, total_price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		arg.OrderID, arg.ProductID, arg.VariantID, arg.Title, arg.Qty,
		arg.UnitPrice, arg.DiscountAmount, arg.TotalPrice)
	return err
}

// GetOrderByID loads an order.
func (s *Store) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// GetOrderByIDForUpdate locks an order row for a status transition.
func (s *Store) GetOrderByIDForUpdate(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

// ListOrdersByUser returns the user's orders, newest first. The optional status
// filter binds as a parameter rather than being spliced into the statement.
func (s *Store) ListOrdersByUser(ctx context.Context, userID pgtype.UUID, status *OrderStatus, limit, offset int32) ([]Order, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`, userID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListOrderItems returns the immutable lines of an order.
func (s *Store) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, order_id, product_id, variant_id, title, qty, unit_price, discount_amount, total_price
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Title,
			&it.Qty, &it.UnitPrice, &it.DiscountAmount, &it.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateOrderStatus sets the order status. Callers validate the transition first.
func (s *Store) UpdateOrderStatus(ctx context.Context, id pgtype.UUID, status OrderStatus) error {
	_, err := s.db.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	return err
}

// InsertOrderStatusHistory appends one transition record. History is written by
// the mutating service inside its transaction, not by a database trigger.
func (s *Store) InsertOrderStatusHistory(ctx context.Context, orderID pgtype.UUID, from pgtype.Text, to OrderStatus, note pgtype.Text) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO order_status_history (order_id, from_status, to_status, note)
		 VALUES ($1, $2, $3, $4)`, orderID, from, to, note)
	return err
}

// ListOrderStatusHistory returns the transition log for an order, oldest first.
func (s *Store) ListOrderStatusHistory(ctx context.Context, orderID pgtype.UUID) ([]OrderStatusHistory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, order_id, from_status, to_status, note, created_at
		 FROM order_status_history WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []OrderStatusHistory
	for rows.Next() {
		var h OrderStatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.FromStatus, &h.ToStatus, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// CountOrdersByUser returns how many orders match the user and optional status.
func (s *Store) CountOrdersByUser(ctx context.Context, userID pgtype.UUID, status *OrderStatus) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)`,
		userID, status).Scan(&total)
	return total, err
}
