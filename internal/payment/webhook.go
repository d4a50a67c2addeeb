package payment

import (
	"context"
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-griya/internal/events"
	"github.com/noah-isme/backend-griya/internal/obs"
	"github.com/noah-isme/backend-griya/internal/order"
	"github.com/noah-isme/backend-griya/internal/store"
)

// Querier is the slice of store operations one webhook delivery performs.
// The order-transition methods are included so the status change happens in
// the same transaction as the payment update.
type Querier interface {
	GetPaymentByGatewayTxnForUpdate(ctx context.Context, gatewayTxnID string) (store.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id pgtype.UUID, status store.PaymentStatus, responsePayload []byte) error
	InsertPaymentEvent(ctx context.Context, paymentID pgtype.UUID, status store.PaymentStatus, payload []byte) error
	GetOrderByIDForUpdate(ctx context.Context, id pgtype.UUID) (store.Order, error)
	UpdateOrderStatus(ctx context.Context, id pgtype.UUID, status store.OrderStatus) error
	InsertOrderStatusHistory(ctx context.Context, orderID pgtype.UUID, from pgtype.Text, to store.OrderStatus, note pgtype.Text) error
}

// Tx is one webhook transaction in flight.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB begins webhook transactions.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
}

// NewDB adapts a pool and store pair to the DB seam.
func NewDB(pool *pgxpool.Pool, st *store.Store) DB {
	return poolDB{store: st, pool: pool}
}

type poolDB struct {
	store *store.Store
	pool  *pgxpool.Pool
}

func (d poolDB) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return poolTx{Store: d.store.WithTx(tx), tx: tx}, nil
}

type poolTx struct {
	*store.Store
	tx pgx.Tx
}

func (t poolTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t poolTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// Webhook processes gateway callbacks. Deliveries are idempotent: the payment
// row is locked by gateway transaction id, every delivery is appended to the
// payment event log, and a delivery for an already-terminal payment is
// acknowledged without changing state.
type Webhook struct {
	DB        DB
	SaltKey   string
	SaltIndex string
	Events    *events.Bus
	Log       zerolog.Logger
}

type callbackEnvelope struct {
	Response string `json:"response"`
}

type callbackPayload struct {
	Code string `json:"code"`
	Data struct {
		MerchantID            string `json:"merchantId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		State                 string `json:"state"`
	} `json:"data"`
}

// Handle receives one webhook delivery. The gateway expects plain-text
// acknowledgements, not JSON envelopes.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		plainText(w, http.StatusInternalServerError, "Webhook unavailable")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		plainText(w, http.StatusBadRequest, "Unable to read payload")
		return
	}
	var envelope callbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || strings.TrimSpace(envelope.Response) == "" {
		plainText(w, http.StatusBadRequest, "Malformed payload")
		return
	}

	// Signature check comes before any database access.
	expected := CallbackChecksum(envelope.Response, h.SaltKey, h.SaltIndex)
	provided := strings.TrimSpace(r.Header.Get("X-VERIFY"))
	if provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		plainText(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Response)
	if err != nil {
		plainText(w, http.StatusBadRequest, "Malformed payload")
		return
	}
	var payload callbackPayload
	if err := json.Unmarshal(decoded, &payload); err != nil || payload.Data.MerchantTransactionID == "" {
		plainText(w, http.StatusBadRequest, "Malformed payload")
		return
	}
	newStatus := normaliseState(payload.Data.State)

	ctx := r.Context()
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		plainText(w, http.StatusInternalServerError, "Internal error")
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	pay, err := tx.GetPaymentByGatewayTxnForUpdate(ctx, payload.Data.MerchantTransactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			plainText(w, http.StatusNotFound, "Payment not found")
			return
		}
		plainText(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if pay.Status.Terminal() {
		// Replayed delivery. Record it and acknowledge so the gateway stops retrying.
		if err := tx.InsertPaymentEvent(ctx, pay.ID, newStatus, decoded); err != nil {
			plainText(w, http.StatusInternalServerError, "Internal error")
			return
		}
		if err := tx.Commit(ctx); err != nil {
			plainText(w, http.StatusInternalServerError, "Internal error")
			return
		}
		if obs.PaymentWebhookTotal != nil {
			obs.PaymentWebhookTotal.WithLabelValues("replay").Inc()
		}
		plainText(w, http.StatusOK, "Already processed")
		return
	}

	if err := tx.UpdatePaymentStatus(ctx, pay.ID, newStatus, decoded); err != nil {
		plainText(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if err := tx.InsertPaymentEvent(ctx, pay.ID, newStatus, decoded); err != nil {
		plainText(w, http.StatusInternalServerError, "Internal error")
		return
	}

	switch newStatus {
	case store.PaymentStatusSuccess:
		err = order.Transition(ctx, tx, pay.OrderID, store.OrderStatusPaid, "payment confirmed")
	case store.PaymentStatusFailed:
		err = order.Transition(ctx, tx, pay.OrderID, store.OrderStatusFailed, "payment failed")
	}
	if err != nil {
		if errors.Is(err, order.ErrIllegalTransition) {
			// The order already moved on (e.g. cancelled while the payment was
			// in flight). Keep the recorded payment state, leave the order alone.
			h.Log.Warn().Err(err).Str("gateway_txn_id", pay.GatewayTxnID).Msg("webhook: order transition skipped")
		} else {
			plainText(w, http.StatusInternalServerError, "Internal error")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		plainText(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(strings.ToLower(string(newStatus))).Inc()
	}

	if h.Events != nil {
		eventPayload := map[string]any{
			"orderId":   store.UUIDString(pay.OrderID),
			"paymentId": store.UUIDString(pay.ID),
			"status":    string(newStatus),
		}
		switch newStatus {
		case store.PaymentStatusSuccess:
			_, _ = h.Events.Emit(ctx, events.TopicOrderPaid, pay.OrderID, eventPayload)
		case store.PaymentStatusFailed:
			_, _ = h.Events.Emit(ctx, events.TopicPaymentFailed, pay.OrderID, eventPayload)
		}
	}
	plainText(w, http.StatusOK, "OK")
}

// normaliseState maps the gateway's transaction state onto the payment lifecycle.
func normaliseState(state string) store.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "COMPLETED":
		return store.PaymentStatusSuccess
	case "PENDING":
		return store.PaymentStatusPending
	default:
		return store.PaymentStatusFailed
	}
}

func plainText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
