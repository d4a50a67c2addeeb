package payment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/store"
)

// Handlers exposes read endpoints for payment state.
type Handlers struct {
	Store *store.Store
}

type eventView struct {
	Status    store.PaymentStatus `json:"status"`
	CreatedAt any                 `json:"createdAt"`
}

// GetOrderPayment returns the latest payment attempt for an order together
// with its webhook delivery log.
func (h Handlers) GetOrderPayment(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment service unavailable", nil)
		return
	}
	orderID, err := store.ParseUUID(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order identifier", nil)
		return
	}
	ctx := r.Context()
	rawUserID, ok := common.UserID(ctx)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	userID, err := store.ParseUUID(rawUserID)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	ord, err := h.Store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "ORDER_FETCH_ERROR", err.Error(), nil)
		return
	}
	if !store.UUIDEqual(ord.UserID, userID) && !common.IsStaff(ctx) {
		common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
		return
	}
	pay, err := h.Store.GetLatestPaymentByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "no payment for order", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_FETCH_ERROR", err.Error(), nil)
		return
	}
	deliveries, err := h.Store.ListPaymentEvents(ctx, pay.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_EVENTS_ERROR", err.Error(), nil)
		return
	}
	views := make([]eventView, 0, len(deliveries))
	for _, e := range deliveries {
		views = append(views, eventView{Status: e.Status, CreatedAt: e.CreatedAt.Time})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"paymentId":     store.UUIDString(pay.ID),
		"orderId":       store.UUIDString(pay.OrderID),
		"status":        pay.Status,
		"amount":        pay.Amount,
		"transactionId": pay.GatewayTxnID,
		"events":        views,
	})
}
