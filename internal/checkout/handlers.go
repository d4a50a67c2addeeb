package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/obs"
	"github.com/noah-isme/backend-griya/internal/store"
)

// Handler converts checkout requests into orders.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Checkout snapshots the caller's cart into an order and starts a payment.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	userID, err := store.ParseUUID(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user identity", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid checkout payload", validationDetails(err))
			return
		}
	}

	out, err := h.Svc.Checkout(r.Context(), userID, in)
	if err != nil {
		if obs.OrdersCreatedTotal != nil {
			obs.OrdersCreatedTotal.WithLabelValues("error").Inc()
		}
		if errors.Is(err, ErrEmptyCart) {
			common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
		return
	}
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues("ok").Inc()
	}

	payload := map[string]any{
		"orderId":        store.UUIDString(out.Order.ID),
		"number":         out.Order.Number,
		"status":         out.Order.Status,
		"totalAmount":    out.Order.TotalAmount,
		"discountAmount": out.Order.DiscountAmount,
		"taxAmount":      out.Order.TaxAmount,
		"shippingAmount": out.Order.ShippingAmount,
		"grandTotal":     out.Order.GrandTotal,
	}
	switch {
	case out.TransactionID != "":
		payload["payment"] = map[string]any{
			"status":        "INITIATED",
			"transactionId": out.TransactionID,
			"redirectUrl":   out.RedirectURL,
		}
	case out.PaymentFailed:
		// The order exists; the client must retry payment separately.
		payload["payment"] = map[string]any{"status": "FAILED"}
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": payload})
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
