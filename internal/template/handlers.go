package template

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/lock"
	"github.com/noah-isme/backend-griya/internal/obs"
	"github.com/noah-isme/backend-griya/internal/store"
)

// Handler exposes template pricing previews and the move-to-cart operation.
type Handler struct {
	Store    *store.Store
	Segments SegmentSource
	Migrator *Migrator
	Now      func() time.Time

	// Lock serialises migrations of the same template across instances.
	// Optional; row locks inside the migrator still guarantee correctness.
	Lock    *lock.Locker
	LockTTL time.Duration
}

func (h *Handler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Get returns the template with discount-annotated line items and totals. The
// preview never mutates state.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "template store not configured", nil)
		return
	}
	userID, ok := requestUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	templateID, err := store.ParseUUID(chi.URLParam(r, "templateID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid template id", nil)
		return
	}
	ctx := r.Context()
	tpl, err := h.Store.GetTemplateForUser(ctx, templateID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "template not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load template", nil)
		return
	}
	rows, err := h.Store.ListTemplateItems(ctx, templateID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load template items", nil)
		return
	}
	now := h.now()
	discounts, err := h.Store.ListTemplateManualDiscounts(ctx, userID, templateID, now)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load discounts", nil)
		return
	}

	productIDs := make([]string, 0, len(rows))
	for _, it := range rows {
		productIDs = append(productIDs, store.UUIDString(it.ProductID))
	}
	var memberships map[string][]uuid.UUID
	if h.Segments != nil {
		memberships, err = h.Segments.GetProductSegments(ctx, productIDs)
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load segments", nil)
			return
		}
	}
	scope := make(map[string][]uuid.UUID, 1)
	if len(discounts) > 0 {
		segs, err := h.Store.GetDiscountSegments(ctx, discounts[0].ID)
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load discount scope", nil)
			return
		}
		scope[store.UUIDString(discounts[0].ID)] = segs
	}

	items := make([]Item, 0, len(rows))
	for _, it := range rows {
		items = append(items, Item{
			ID:              uuid.UUID(it.ID.Bytes),
			ProductID:       uuid.UUID(it.ProductID.Bytes),
			VariantID:       uuid.UUID(it.VariantID.Bytes),
			Title:           it.Title,
			Qty:             it.Qty,
			UnitPrice:       it.UnitPrice,
			Status:          it.Status,
			ProductSegments: memberships[store.UUIDString(it.ProductID)],
		})
	}
	priced, applied := Apply(items, discounts, scope)
	totals := CalculateTotals(priced)

	itemViews := make([]map[string]any, 0, len(priced))
	for _, p := range priced {
		itemViews = append(itemViews, map[string]any{
			"id":                  p.ID.String(),
			"productId":           p.ProductID.String(),
			"variantId":           p.VariantID.String(),
			"title":               p.Title,
			"qty":                 p.Qty,
			"status":              p.Status,
			"unitPrice":           p.UnitPrice,
			"discountPerUnit":     p.DiscountPerUnit,
			"discountedUnitPrice": p.DiscountedUnitPrice,
			"originalTotal":       p.OriginalTotal,
			"discountedTotal":     p.DiscountedTotal,
		})
	}
	payload := map[string]any{
		"id":        store.UUIDString(tpl.ID),
		"status":    tpl.Status,
		"totalCost": tpl.TotalCost,
		"items":     itemViews,
		"pricing": map[string]any{
			"originalTotal":   totals.OriginalTotal,
			"discountedTotal": totals.DiscountedTotal,
			"discountAmount":  totals.DiscountAmount,
		},
	}
	if len(applied) > 0 {
		payload["appliedDiscount"] = map[string]any{
			"id":    store.UUIDString(applied[0].ID),
			"mode":  applied[0].Mode,
			"value": applied[0].Value,
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payload})
}

// MoveToCart migrates selected template items into the caller's cart.
func (h *Handler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	if h.Migrator == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "template migrator not configured", nil)
		return
	}
	userID, ok := requestUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	templateID, err := store.ParseUUID(chi.URLParam(r, "templateID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid template id", nil)
		return
	}
	var payload struct {
		Mode    string   `json:"mode"`
		ItemIDs []string `json:"itemIds"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}
	mode := Mode(strings.ToUpper(strings.TrimSpace(payload.Mode)))
	if mode == "" {
		mode = ModeAppend
	}
	if mode != ModeAppend && mode != ModeReplace {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "mode must be APPEND or REPLACE", nil)
		return
	}

	var result MigrateResult
	if h.Lock != nil {
		err = h.Lock.WithLock(r.Context(), "migrate:"+store.UUIDString(templateID), h.LockTTL, func(ctx context.Context) error {
			var lockErr error
			result, lockErr = h.Migrator.Migrate(ctx, templateID, userID, payload.ItemIDs, mode)
			return lockErr
		})
	} else {
		result, err = h.Migrator.Migrate(r.Context(), templateID, userID, payload.ItemIDs, mode)
	}
	if err != nil {
		if obs.TemplateMigrationsTotal != nil {
			obs.TemplateMigrationsTotal.WithLabelValues(string(mode), "error").Inc()
		}
		switch {
		case errors.Is(err, ErrTemplateNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "template not found", nil)
		case errors.Is(err, ErrTemplateCancelled):
			common.JSONError(w, http.StatusConflict, "TEMPLATE_CANCELLED", "template is cancelled", nil)
		case errors.Is(err, ErrNoValidItems):
			common.JSONError(w, http.StatusUnprocessableEntity, "NO_VALID_ITEMS", "no valid items to move", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "migration failed", nil)
		}
		return
	}
	if obs.TemplateMigrationsTotal != nil {
		obs.TemplateMigrationsTotal.WithLabelValues(string(mode), "ok").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"cartId":     store.UUIDString(result.CartID),
			"movedItems": result.MovedItems,
			"pricing": map[string]any{
				"originalTotal":   result.Pricing.OriginalTotal,
				"discountedTotal": result.Pricing.DiscountedTotal,
				"discountAmount":  result.Pricing.DiscountAmount,
			},
		},
	})
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
