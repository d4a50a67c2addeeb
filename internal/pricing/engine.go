package pricing

import "github.com/shopspring/decimal"

// Item describes a line item used for order total calculation. Discount is the
// per-unit amount already resolved by the cart pricing engine.
type Item struct {
	Qty             int32
	UnitPrice       decimal.Decimal
	DiscountPerUnit decimal.Decimal
}

// Summary aggregates computed order totals. Subtotal is net of per-item
// discounts; Total = Subtotal + Tax + Shipping.
type Summary struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Compute calculates order totals from the locked cart snapshot. Tax is applied
// to the discounted subtotal at the given basis-point rate.
func Compute(items []Item, taxBps int, shipping decimal.Decimal) Summary {
	subtotal := decimal.Zero
	discountTotal := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		qty := decimal.NewFromInt32(it.Qty)
		gross := it.UnitPrice.Mul(qty)
		disc := it.DiscountPerUnit.Mul(qty)
		if disc.GreaterThan(gross) {
			disc = gross
		}
		if disc.IsNegative() {
			disc = decimal.Zero
		}
		subtotal = subtotal.Add(gross.Sub(disc))
		discountTotal = discountTotal.Add(disc)
	}
	tax := subtotal.Mul(decimal.NewFromInt(int64(taxBps))).Div(decimal.NewFromInt(10000)).Round(2)
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discountTotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}
