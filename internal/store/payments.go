package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, order_id, status, amount, gateway_txn_id,
	request_payload, response_payload, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Status, &p.Amount, &p.GatewayTxnID,
		&p.RequestPayload, &p.ResponsePayload, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreatePaymentParams carries the fields for a new payment attempt.
type CreatePaymentParams struct {
	OrderID        pgtype.UUID
	Status         PaymentStatus
	Amount         decimal.Decimal
	GatewayTxnID   string
	RequestPayload []byte
}

// CreatePayment records a gateway payment attempt for an order.
func (s *Store) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(s.db.QueryRow(ctx,
		`INSERT INTO payments (order_id, status, amount, gateway_txn_id, request_payload)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+paymentColumns,
		arg.OrderID, arg.Status, arg.Amount, arg.GatewayTxnID, arg.RequestPayload))
}

// GetPaymentByGatewayTxnForUpdate locks the payment matched by the gateway's
// transaction id so concurrent webhook deliveries serialise.
func (s *Store) GetPaymentByGatewayTxnForUpdate(ctx context.Context, gatewayTxnID string) (Payment, error) {
	return scanPayment(s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_txn_id = $1 FOR UPDATE`, gatewayTxnID))
}

// GetLatestPaymentByOrder returns the newest payment attempt for an order.
func (s *Store) GetLatestPaymentByOrder(ctx context.Context, orderID pgtype.UUID) (Payment, error) {
	return scanPayment(s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID))
}

// UpdatePaymentStatus sets the payment status and stores the raw gateway response.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id pgtype.UUID, status PaymentStatus, responsePayload []byte) error {
	_, err := s.db.Exec(ctx,
		`UPDATE payments SET status = $2, response_payload = $3, updated_at = now() WHERE id = $1`,
		id, status, responsePayload)
	return err
}

// InsertPaymentEvent appends one webhook delivery to the audit log.
func (s *Store) InsertPaymentEvent(ctx context.Context, paymentID pgtype.UUID, status PaymentStatus, payload []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO payment_events (payment_id, status, payload) VALUES ($1, $2, $3)`,
		paymentID, status, payload)
	return err
}

// ListPaymentEvents returns the delivery log for a payment, oldest first.
func (s *Store) ListPaymentEvents(ctx context.Context, paymentID pgtype.UUID) ([]PaymentEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, payment_id, status, payload, created_at
		 FROM payment_events WHERE payment_id = $1 ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []PaymentEvent
	for rows.Next() {
		var e PaymentEvent
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Status, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
