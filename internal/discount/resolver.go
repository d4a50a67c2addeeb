package discount

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/store"
)

// Querier defines the discount queries the resolver depends on.
type Querier interface {
	GetValidCouponByCode(ctx context.Context, code string, now time.Time) (store.Discount, error)
	ListUserManualDiscounts(ctx context.Context, userID pgtype.UUID, now time.Time) ([]store.Discount, error)
	GetDiscountSegments(ctx context.Context, discountID pgtype.UUID) ([]uuid.UUID, error)
}

// SegmentSource resolves product segment memberships.
type SegmentSource interface {
	GetProductSegments(ctx context.Context, productIDs []string) (map[string][]uuid.UUID, error)
}

// Resolution is the outcome of resolving the applicable discount for one product.
type Resolution struct {
	BasePrice  decimal.Decimal
	FinalPrice decimal.Decimal
	Applied    *store.Discount
}

// Resolver determines the single discount applicable to a product for a user.
// Manual user-assigned discounts take priority over coupons.
type Resolver struct {
	Q        Querier
	Segments SegmentSource
	Now      func() time.Time
}

func (r *Resolver) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve picks the first applicable manual discount for the user, falling back
// to the coupon code when given. A stale or unknown coupon resolves as "no
// discount" rather than an error so checkout never hard-fails on it.
func (r *Resolver) Resolve(ctx context.Context, productID uuid.UUID, basePrice decimal.Decimal, userID *pgtype.UUID, couponCode string) (Resolution, error) {
	if r == nil || r.Q == nil {
		return Resolution{}, errors.New("discount resolver not configured")
	}
	out := Resolution{BasePrice: basePrice, FinalPrice: basePrice}
	now := r.now()

	productSegments, err := r.productSegments(ctx, productID)
	if err != nil {
		return Resolution{}, err
	}

	if userID != nil && userID.Valid {
		manuals, err := r.Q.ListUserManualDiscounts(ctx, *userID, now)
		if err != nil {
			return Resolution{}, err
		}
		for i := range manuals {
			applicable, err := r.applicable(ctx, manuals[i].ID, productSegments)
			if err != nil {
				return Resolution{}, err
			}
			if applicable {
				out.FinalPrice = ApplyValue(basePrice, manuals[i].Mode, manuals[i].Value)
				out.Applied = &manuals[i]
				return out, nil
			}
		}
	}

	code := strings.TrimSpace(couponCode)
	if code == "" {
		return out, nil
	}
	coupon, err := r.Q.GetValidCouponByCode(ctx, code, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, nil
		}
		return Resolution{}, err
	}
	applicable, err := r.applicable(ctx, coupon.ID, productSegments)
	if err != nil {
		return Resolution{}, err
	}
	if applicable {
		out.FinalPrice = ApplyValue(basePrice, coupon.Mode, coupon.Value)
		out.Applied = &coupon
	}
	return out, nil
}

func (r *Resolver) productSegments(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	if r.Segments == nil {
		return nil, nil
	}
	memberships, err := r.Segments.GetProductSegments(ctx, []string{productID.String()})
	if err != nil {
		return nil, err
	}
	return memberships[productID.String()], nil
}

func (r *Resolver) applicable(ctx context.Context, discountID pgtype.UUID, productSegments []uuid.UUID) (bool, error) {
	discountSegments, err := r.Q.GetDiscountSegments(ctx, discountID)
	if err != nil {
		return false, err
	}
	return SegmentEligible(discountSegments, productSegments), nil
}

// SegmentEligible reports whether a discount scoped by discountSegments applies
// to a product with productSegments. An unscoped discount applies globally.
func SegmentEligible(discountSegments, productSegments []uuid.UUID) bool {
	if len(discountSegments) == 0 {
		return true
	}
	for _, ds := range discountSegments {
		for _, ps := range productSegments {
			if ds == ps {
				return true
			}
		}
	}
	return false
}

// ApplyValue applies a discount to a unit price. The result never goes negative.
func ApplyValue(price decimal.Decimal, mode store.DiscountMode, value decimal.Decimal) decimal.Decimal {
	var out decimal.Decimal
	switch mode {
	case store.DiscountModePercentage:
		factor := decimal.NewFromInt(1).Sub(value.Div(decimal.NewFromInt(100)))
		out = price.Mul(factor).Round(2)
	case store.DiscountModeFixed:
		out = price.Sub(value)
	default:
		out = price
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
