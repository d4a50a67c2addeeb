package discount

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/store"
)

// VariantSource fetches variant rows, normally through the catalog cache.
type VariantSource interface {
	Variant(ctx context.Context, id pgtype.UUID) (store.Variant, error)
}

// Handler serves discounted-price previews for single variants.
type Handler struct {
	Resolver *Resolver
	Variants VariantSource
}

// Preview resolves the price the caller would pay for one unit of a variant,
// optionally with a coupon code. Nothing is persisted.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Resolver == nil || h.Variants == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "price preview not configured", nil)
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
	variantID, err := store.ParseUUID(chi.URLParam(r, "variantID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
		return
	}

	v, err := h.Variants.Variant(r.Context(), variantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "variant not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load variant", nil)
		return
	}

	res, err := h.Resolver.Resolve(r.Context(), uuid.UUID(v.ProductID.Bytes), v.Price, &userID, r.URL.Query().Get("coupon"))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to resolve price", nil)
		return
	}

	payload := map[string]any{
		"variantId":  store.UUIDString(v.ID),
		"basePrice":  res.BasePrice,
		"finalPrice": res.FinalPrice,
		"discount":   nil,
	}
	if res.Applied != nil {
		payload["discount"] = map[string]any{
			"id":    store.UUIDString(res.Applied.ID),
			"kind":  res.Applied.Kind,
			"mode":  res.Applied.Mode,
			"value": res.Applied.Value,
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payload})
}
