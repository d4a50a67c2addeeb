package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/discount"
	"github.com/noah-isme/backend-griya/internal/store"
)

// QuoteItem is one cart line annotated for display.
type QuoteItem struct {
	ID              pgtype.UUID     `json:"id"`
	ProductID       pgtype.UUID     `json:"productId"`
	VariantID       pgtype.UUID     `json:"variantId"`
	Title           string          `json:"title"`
	Qty             int32           `json:"qty"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	CouponEligible  bool            `json:"couponEligible"`
	DiscountApplied decimal.Decimal `json:"discountApplied"`
	LineTotal       decimal.Decimal `json:"lineTotal"`
}

// QuoteCoupon describes the applied coupon for display.
type QuoteCoupon struct {
	Code  string             `json:"code"`
	Mode  store.DiscountMode `json:"mode"`
	Value decimal.Decimal    `json:"value"`
}

// Quote is a non-persisting pricing preview of a cart.
type Quote struct {
	Items      []QuoteItem     `json:"items"`
	Coupon     *QuoteCoupon    `json:"coupon,omitempty"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	FinalTotal decimal.Decimal `json:"finalTotal"`
}

// BuildQuote computes a presentation-only pricing preview without mutating any
// persisted state. Per item the cart-wide coupon is preferred over the manual
// discount when eligible. A FIXED coupon value is capped against the single
// item's subtotal rather than spread across eligible items.
func (s *Service) BuildQuote(ctx context.Context, cartID pgtype.UUID) (Quote, error) {
	if s == nil || s.DB == nil {
		return Quote{}, errors.New("cart service not configured")
	}
	cartRow, err := s.DB.GetCartByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, err
	}
	coupon, couponScope, err := s.activeCoupon(ctx, s.DB, cartRow)
	if err != nil {
		return Quote{}, err
	}
	items, err := s.DB.ListCartItems(ctx, cartRow.ID)
	if err != nil {
		return Quote{}, err
	}
	memberships, err := s.productMemberships(ctx, items)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Subtotal:   decimal.Zero,
		Discount:   decimal.Zero,
		FinalTotal: decimal.Zero,
	}
	if coupon != nil {
		q.Coupon = &QuoteCoupon{Code: coupon.CouponCode.String, Mode: coupon.Mode, Value: coupon.Value}
	}
	for _, it := range items {
		qty := decimal.NewFromInt32(it.Qty)
		subtotal := it.UnitPrice.Mul(qty)

		eligible := coupon != nil &&
			discount.SegmentEligible(couponScope, memberships[store.UUIDString(it.ProductID)])
		var applied decimal.Decimal
		if eligible {
			switch coupon.Mode {
			case store.DiscountModePercentage:
				applied = subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100)).Round(2)
			case store.DiscountModeFixed:
				// The whole FIXED value lands on this item, capped at its subtotal.
				applied = coupon.Value
				if applied.GreaterThan(subtotal) {
					applied = subtotal
				}
			}
		} else {
			applied = it.ManualDiscountAmount.Mul(qty)
		}

		q.Items = append(q.Items, QuoteItem{
			ID:              it.ID,
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			Title:           it.Title,
			Qty:             it.Qty,
			UnitPrice:       it.UnitPrice,
			Subtotal:        subtotal,
			CouponEligible:  eligible,
			DiscountApplied: applied,
			LineTotal:       subtotal.Sub(applied),
		})
		q.Subtotal = q.Subtotal.Add(subtotal)
		q.Discount = q.Discount.Add(applied)
	}
	q.FinalTotal = q.Subtotal.Sub(q.Discount)
	return q, nil
}
