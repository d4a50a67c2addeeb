package discount

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/common"
	"github.com/noah-isme/backend-griya/internal/store"
)

type stubVariants struct {
	variant store.Variant
	err     error
}

func (s stubVariants) Variant(_ context.Context, _ pgtype.UUID) (store.Variant, error) {
	if s.err != nil {
		return store.Variant{}, s.err
	}
	return s.variant, nil
}

func previewRequest(t *testing.T, h *Handler, variantID, query string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/variants/{variantID}/price", h.Preview)
	req := httptest.NewRequest(http.MethodGet, "/variants/"+variantID+"/price"+query, nil)
	if authed {
		req = req.WithContext(common.WithUserID(req.Context(), uuid.NewString()))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPreviewResolvesCouponPrice(t *testing.T) {
	couponID := pgUUID(t)
	variantID := pgUUID(t)
	h := &Handler{
		Resolver: &Resolver{Q: &stubQuerier{
			coupon: store.Discount{
				ID:       couponID,
				Kind:     store.DiscountKindCoupon,
				Mode:     store.DiscountModePercentage,
				Value:    decimal.NewFromInt(10),
				IsActive: true,
			},
		}},
		Variants: stubVariants{variant: store.Variant{
			ID:        variantID,
			ProductID: pgUUID(t),
			Title:     "Monitor Arm",
			Price:     decimal.NewFromInt(100),
			Stock:     3,
		}},
	}

	rec := previewRequest(t, h, store.UUIDString(variantID), "?coupon=SAVE10", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			VariantID  string          `json:"variantId"`
			BasePrice  decimal.Decimal `json:"basePrice"`
			FinalPrice decimal.Decimal `json:"finalPrice"`
			Discount   *struct {
				ID string `json:"id"`
			} `json:"discount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.VariantID != store.UUIDString(variantID) {
		t.Fatalf("unexpected variant id %q", resp.Data.VariantID)
	}
	if !resp.Data.BasePrice.Equal(decimal.NewFromInt(100)) || !resp.Data.FinalPrice.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected 100 -> 90, got %s -> %s", resp.Data.BasePrice, resp.Data.FinalPrice)
	}
	if resp.Data.Discount == nil || resp.Data.Discount.ID != store.UUIDString(couponID) {
		t.Fatalf("expected the coupon in the payload, got %+v", resp.Data.Discount)
	}
}

func TestPreviewWithoutDiscountEchoesBasePrice(t *testing.T) {
	variantID := pgUUID(t)
	h := &Handler{
		Resolver: &Resolver{Q: &stubQuerier{couponErr: pgx.ErrNoRows}},
		Variants: stubVariants{variant: store.Variant{
			ID:        variantID,
			ProductID: pgUUID(t),
			Price:     decimal.NewFromFloat(59.99),
		}},
	}

	rec := previewRequest(t, h, store.UUIDString(variantID), "?coupon=GONE", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data struct {
			BasePrice  decimal.Decimal `json:"basePrice"`
			FinalPrice decimal.Decimal `json:"finalPrice"`
			Discount   json.RawMessage `json:"discount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Data.FinalPrice.Equal(resp.Data.BasePrice) {
		t.Fatalf("expected base price back, got %s -> %s", resp.Data.BasePrice, resp.Data.FinalPrice)
	}
	if string(resp.Data.Discount) != "null" {
		t.Fatalf("expected null discount, got %s", resp.Data.Discount)
	}
}

func TestPreviewUnknownVariantReturnsNotFound(t *testing.T) {
	h := &Handler{
		Resolver: &Resolver{Q: &stubQuerier{}},
		Variants: stubVariants{err: pgx.ErrNoRows},
	}
	rec := previewRequest(t, h, uuid.NewString(), "", true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPreviewRequiresAuthentication(t *testing.T) {
	h := &Handler{
		Resolver: &Resolver{Q: &stubQuerier{}},
		Variants: stubVariants{},
	}
	rec := previewRequest(t, h, uuid.NewString(), "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
