package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/events"
	"github.com/noah-isme/backend-griya/internal/store"
)

// Handler exposes order read endpoints for the authenticated user plus the
// staff-only cancel operation.
type Handler struct {
	Store  *store.Store
	Pool   *pgxpool.Pool
	Events *events.Bus
}

// List returns the user's orders, newest first, with an optional status filter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := requestUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var statusFilter *store.OrderStatus
	if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); raw != "" {
		status := store.OrderStatus(raw)
		switch status {
		case store.OrderStatusPending, store.OrderStatusPaid, store.OrderStatusFailed,
			store.OrderStatusCancelled, store.OrderStatusRefunded:
			statusFilter = &status
		default:
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown order status", nil)
			return
		}
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	ctx := r.Context()
	total, err := h.Store.CountOrdersByUser(ctx, userID, statusFilter)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to count orders", nil)
		return
	}
	orders, err := h.Store.ListOrdersByUser(ctx, userID, statusFilter, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load orders", nil)
		return
	}
	views := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

// Get returns one order with its items and status history.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := requestUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID, err := store.ParseUUID(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ctx := r.Context()
	o, err := h.Store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order", nil)
		return
	}
	if !store.UUIDEqual(o.UserID, userID) && !common.IsStaff(ctx) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	items, err := h.Store.ListOrderItems(ctx, orderID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order items", nil)
		return
	}
	history, err := h.Store.ListOrderStatusHistory(ctx, orderID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order history", nil)
		return
	}

	itemViews := make([]map[string]any, 0, len(items))
	for _, it := range items {
		itemViews = append(itemViews, map[string]any{
			"id":             store.UUIDString(it.ID),
			"productId":      store.UUIDString(it.ProductID),
			"variantId":      store.UUIDString(it.VariantID),
			"title":          it.Title,
			"qty":            it.Qty,
			"unitPrice":      it.UnitPrice,
			"discountAmount": it.DiscountAmount,
			"totalPrice":     it.TotalPrice,
		})
	}
	historyViews := make([]map[string]any, 0, len(history))
	for _, hrow := range history {
		view := map[string]any{
			"toStatus":  hrow.ToStatus,
			"createdAt": hrow.CreatedAt.Time,
		}
		if hrow.FromStatus.Valid {
			view["fromStatus"] = hrow.FromStatus.String
		}
		if hrow.Note.Valid {
			view["note"] = hrow.Note.String
		}
		historyViews = append(historyViews, view)
	}

	payload := orderView(o)
	payload["items"] = itemViews
	payload["history"] = historyViews
	common.JSON(w, http.StatusOK, map[string]any{"data": payload})
}

// Cancel moves a PENDING order to CANCELLED. Mounted behind the staff
// middleware; the transition table rejects anything already settled.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Pool == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	orderID, err := store.ParseUUID(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var payload struct {
		Note string `json:"note"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}
	note := strings.TrimSpace(payload.Note)
	if note == "" {
		note = "cancelled by staff"
	}

	ctx := r.Context()
	tx, err := h.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to cancel order", nil)
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := Transition(ctx, h.Store.WithTx(tx), orderID, store.OrderStatusCancelled, note); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrIllegalTransition):
			common.JSONError(w, http.StatusConflict, "ILLEGAL_TRANSITION", "order cannot be cancelled in its current status", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to cancel order", nil)
		}
		return
	}
	if err := tx.Commit(ctx); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to cancel order", nil)
		return
	}

	if h.Events != nil {
		_, _ = h.Events.Emit(ctx, events.TopicOrderCancelled, orderID, map[string]any{
			"orderId": store.UUIDString(orderID),
			"note":    note,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"orderId": store.UUIDString(orderID),
			"status":  store.OrderStatusCancelled,
		},
	})
}

func orderView(o store.Order) map[string]any {
	return map[string]any{
		"id":             store.UUIDString(o.ID),
		"number":         o.Number,
		"status":         o.Status,
		"totalAmount":    o.TotalAmount,
		"discountAmount": o.DiscountAmount,
		"taxAmount":      o.TaxAmount,
		"shippingAmount": o.ShippingAmount,
		"grandTotal":     o.GrandTotal,
		"createdAt":      o.CreatedAt.Time,
	}
}

func requestUser(r *http.Request) (pgtype.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return pgtype.UUID{}, false
	}
	id, err := store.ParseUUID(raw)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return id, true
}
