package discount

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/store"
)

type stubQuerier struct {
	coupon    store.Discount
	couponErr error
	manuals   []store.Discount
	segments  map[string][]uuid.UUID
}

func (s *stubQuerier) GetValidCouponByCode(_ context.Context, _ string, _ time.Time) (store.Discount, error) {
	if s.couponErr != nil {
		return store.Discount{}, s.couponErr
	}
	return s.coupon, nil
}

func (s *stubQuerier) ListUserManualDiscounts(_ context.Context, _ pgtype.UUID, _ time.Time) ([]store.Discount, error) {
	return s.manuals, nil
}

func (s *stubQuerier) GetDiscountSegments(_ context.Context, discountID pgtype.UUID) ([]uuid.UUID, error) {
	return s.segments[store.UUIDString(discountID)], nil
}

type stubSegments struct {
	memberships map[string][]uuid.UUID
}

func (s stubSegments) GetProductSegments(_ context.Context, _ []string) (map[string][]uuid.UUID, error) {
	return s.memberships, nil
}

func pgUUID(t *testing.T) pgtype.UUID {
	t.Helper()
	return store.UUID(uuid.New())
}

func TestResolveManualTakesPriorityOverCoupon(t *testing.T) {
	userID := pgUUID(t)
	manual := store.Discount{
		ID:       pgUUID(t),
		Kind:     store.DiscountKindManual,
		Mode:     store.DiscountModePercentage,
		Value:    decimal.NewFromInt(10),
		IsActive: true,
	}
	coupon := store.Discount{
		ID:       pgUUID(t),
		Kind:     store.DiscountKindCoupon,
		Mode:     store.DiscountModePercentage,
		Value:    decimal.NewFromInt(50),
		IsActive: true,
	}
	r := &Resolver{Q: &stubQuerier{coupon: coupon, manuals: []store.Discount{manual}}}

	out, err := r.Resolve(context.Background(), uuid.New(), decimal.NewFromInt(100), &userID, "BIG50")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Applied == nil || out.Applied.Kind != store.DiscountKindManual {
		t.Fatalf("expected manual discount to win, got %+v", out.Applied)
	}
	if got := out.FinalPrice.StringFixed(2); got != "90.00" {
		t.Fatalf("expected 90.00, got %s", got)
	}
}

func TestResolveUnknownCouponYieldsNoDiscount(t *testing.T) {
	r := &Resolver{Q: &stubQuerier{couponErr: pgx.ErrNoRows}}

	out, err := r.Resolve(context.Background(), uuid.New(), decimal.NewFromInt(100), nil, "GONE")
	if err != nil {
		t.Fatalf("stale coupon must not fail resolution: %v", err)
	}
	if out.Applied != nil {
		t.Fatalf("expected no discount, got %+v", out.Applied)
	}
	if !out.FinalPrice.Equal(out.BasePrice) {
		t.Fatalf("expected base price back, got %s", out.FinalPrice)
	}
}

func TestResolveCouponScopedToSegment(t *testing.T) {
	productID := uuid.New()
	segmentID := uuid.New()
	coupon := store.Discount{
		ID:       pgUUID(t),
		Kind:     store.DiscountKindCoupon,
		Mode:     store.DiscountModeFixed,
		Value:    decimal.NewFromInt(20),
		IsActive: true,
	}
	q := &stubQuerier{
		coupon:   coupon,
		segments: map[string][]uuid.UUID{store.UUIDString(coupon.ID): {segmentID}},
	}

	inScope := &Resolver{
		Q:        q,
		Segments: stubSegments{memberships: map[string][]uuid.UUID{productID.String(): {segmentID}}},
	}
	out, err := inScope.Resolve(context.Background(), productID, decimal.NewFromInt(100), nil, "SEG20")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Applied == nil {
		t.Fatal("expected coupon to apply inside its segment")
	}
	if got := out.FinalPrice.StringFixed(2); got != "80.00" {
		t.Fatalf("expected 80.00, got %s", got)
	}

	outOfScope := &Resolver{
		Q:        q,
		Segments: stubSegments{memberships: map[string][]uuid.UUID{productID.String(): {uuid.New()}}},
	}
	out, err = outOfScope.Resolve(context.Background(), productID, decimal.NewFromInt(100), nil, "SEG20")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Applied != nil {
		t.Fatalf("expected coupon to be skipped outside its segment, got %+v", out.Applied)
	}
}

func TestSegmentEligible(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	if !SegmentEligible(nil, []uuid.UUID{a}) {
		t.Fatal("unscoped discount must apply to everything")
	}
	if !SegmentEligible([]uuid.UUID{a, b}, []uuid.UUID{b}) {
		t.Fatal("expected overlap to be eligible")
	}
	if SegmentEligible([]uuid.UUID{a}, []uuid.UUID{b}) {
		t.Fatal("expected disjoint segments to be ineligible")
	}
	if SegmentEligible([]uuid.UUID{a}, nil) {
		t.Fatal("scoped discount must not apply to a product without segments")
	}
}

func TestApplyValue(t *testing.T) {
	price := decimal.NewFromFloat(49.99)

	got := ApplyValue(price, store.DiscountModePercentage, decimal.NewFromInt(10))
	if got.StringFixed(2) != "44.99" {
		t.Fatalf("percentage: expected 44.99, got %s", got)
	}

	got = ApplyValue(price, store.DiscountModeFixed, decimal.NewFromInt(5))
	if got.StringFixed(2) != "44.99" {
		t.Fatalf("fixed: expected 44.99, got %s", got)
	}

	got = ApplyValue(decimal.NewFromInt(3), store.DiscountModeFixed, decimal.NewFromInt(10))
	if !got.IsZero() {
		t.Fatalf("fixed discount must floor at zero, got %s", got)
	}
}
