package template

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/discount"
	"github.com/noah-isme/backend-griya/internal/store"
)

// Item is one template line prepared for discount calculation.
type Item struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	VariantID       uuid.UUID
	Title           string
	Qty             int32
	UnitPrice       decimal.Decimal
	Status          store.TemplateItemStatus
	ProductSegments []uuid.UUID
}

// PricedItem is a template line annotated with discount amounts. Items the
// discount does not reach still carry explicit zero amounts so every consumer
// sees a uniform shape.
type PricedItem struct {
	Item
	DiscountPerUnit     decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	OriginalTotal       decimal.Decimal
	DiscountedTotal     decimal.Decimal
}

// Apply annotates the items with pricing from the first manual discount in the
// list. One discount is applied template-wide; the rest are ignored. Scope maps
// discount ids to their segment sets; an absent or empty set means the discount
// applies to every item.
func Apply(items []Item, discounts []store.Discount, scope map[string][]uuid.UUID) ([]PricedItem, []store.Discount) {
	priced := make([]PricedItem, 0, len(items))
	var applied []store.Discount

	var active *store.Discount
	var activeScope []uuid.UUID
	if len(discounts) > 0 {
		active = &discounts[0]
		activeScope = scope[store.UUIDString(active.ID)]
		applied = append(applied, discounts[0])
	}

	for _, it := range items {
		p := PricedItem{
			Item:                it,
			DiscountPerUnit:     decimal.Zero,
			DiscountedUnitPrice: it.UnitPrice,
			OriginalTotal:       it.UnitPrice.Mul(decimal.NewFromInt32(it.Qty)),
		}
		if active != nil && discount.SegmentEligible(activeScope, it.ProductSegments) {
			// Manual template discounts are percentage-valued at this layer.
			p.DiscountPerUnit = it.UnitPrice.Mul(active.Value).Div(decimal.NewFromInt(100)).Round(2)
			p.DiscountedUnitPrice = it.UnitPrice.Sub(p.DiscountPerUnit)
			if p.DiscountedUnitPrice.IsNegative() {
				p.DiscountedUnitPrice = decimal.Zero
				p.DiscountPerUnit = it.UnitPrice
			}
		}
		p.DiscountedTotal = p.DiscountedUnitPrice.Mul(decimal.NewFromInt32(it.Qty))
		priced = append(priced, p)
	}
	return priced, applied
}

// Totals aggregates template pricing over non-cancelled items.
type Totals struct {
	OriginalTotal   decimal.Decimal
	DiscountedTotal decimal.Decimal
	DiscountAmount  decimal.Decimal
}

// CalculateTotals sums original and discounted totals, skipping CANCELLED items.
func CalculateTotals(items []PricedItem) Totals {
	t := Totals{
		OriginalTotal:   decimal.Zero,
		DiscountedTotal: decimal.Zero,
		DiscountAmount:  decimal.Zero,
	}
	for _, it := range items {
		if it.Status == store.TemplateItemStatusCancelled {
			continue
		}
		t.OriginalTotal = t.OriginalTotal.Add(it.OriginalTotal)
		t.DiscountedTotal = t.DiscountedTotal.Add(it.DiscountedTotal)
	}
	t.DiscountAmount = t.OriginalTotal.Sub(t.DiscountedTotal)
	return t
}
