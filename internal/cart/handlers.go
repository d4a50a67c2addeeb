package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/obs"
	"github.com/noah-isme/backend-griya/internal/store"
)

// Handler wires the cart service to HTTP. Every endpoint operates on the
// authenticated user's own cart.
type Handler struct {
	Svc *Service
}

func requestUser(ctx context.Context) (pgtype.UUID, bool) {
	raw, ok := common.UserID(ctx)
	if !ok {
		return pgtype.UUID{}, false
	}
	id, err := store.ParseUUID(raw)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return id, true
}

// Get returns the cart contents with a non-persisting pricing preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := requestUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	cartRow, err := h.Svc.EnsureCart(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	quote, err := h.Svc.BuildQuote(r.Context(), cartRow.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"cartId": store.UUIDString(cartRow.ID),
			"quote":  quote,
		},
	})
}

// AddItem inserts or increments a cart line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := requestUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload struct {
		VariantID string `json:"variantId"`
		Qty       int32  `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	variantID, err := store.ParseUUID(payload.VariantID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), userID, variantID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondWithQuote(w, r, userID, http.StatusCreated)
}

// UpdateItem sets the quantity of a cart line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := requestUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	itemID, err := store.ParseUUID(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload struct {
		Qty int32 `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), userID, itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondWithQuote(w, r, userID, http.StatusOK)
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := requestUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	itemID, err := store.ParseUUID(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), userID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondWithQuote(w, r, userID, http.StatusOK)
}

// ApplyCoupon attaches a coupon code to the cart.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := requestUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	code := strings.TrimSpace(payload.Code)
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "coupon code is required", nil)
		return
	}
	summary, err := h.Svc.ApplyCoupon(r.Context(), userID, code)
	if err != nil {
		if obs.CouponApplyTotal != nil {
			obs.CouponApplyTotal.WithLabelValues("rejected").Inc()
		}
		h.writeError(w, err)
		return
	}
	if obs.CouponApplyTotal != nil {
		obs.CouponApplyTotal.WithLabelValues("applied").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summaryPayload(summary)})
}

// RemoveCoupon detaches the applied coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := requestUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	summary, err := h.Svc.RemoveCoupon(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summaryPayload(summary)})
}

func (h *Handler) respondWithQuote(w http.ResponseWriter, r *http.Request, userID pgtype.UUID, status int) {
	cartRow, err := h.Svc.DB.GetCartByUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	quote, err := h.Svc.BuildQuote(r.Context(), cartRow.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, status, map[string]any{
		"data": map[string]any{
			"cartId": store.UUIDString(cartRow.ID),
			"quote":  quote,
		},
	})
}

func summaryPayload(s Summary) map[string]any {
	return map[string]any{
		"totalOriginal":       s.TotalOriginal,
		"totalManualDiscount": s.TotalManualDiscount,
		"totalCouponDiscount": s.TotalCouponDiscount,
		"finalTotal":          s.FinalTotal,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart or item not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrCouponInvalid):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_INVALID", "coupon not valid", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected cart error", nil)
	}
}
