package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeAppliesTaxToDiscountedSubtotal(t *testing.T) {
	items := []Item{
		{Qty: 2, UnitPrice: decimal.NewFromInt(100), DiscountPerUnit: decimal.NewFromInt(10)},
		{Qty: 1, UnitPrice: decimal.NewFromInt(50)},
	}

	got := Compute(items, 500, decimal.Zero)

	if got.Subtotal.StringFixed(2) != "230.00" {
		t.Fatalf("subtotal: expected 230.00, got %s", got.Subtotal)
	}
	if got.Discount.StringFixed(2) != "20.00" {
		t.Fatalf("discount: expected 20.00, got %s", got.Discount)
	}
	if got.Tax.StringFixed(2) != "11.50" {
		t.Fatalf("tax: expected 11.50 at 500 bps, got %s", got.Tax)
	}
	if got.Total.StringFixed(2) != "241.50" {
		t.Fatalf("total: expected 241.50, got %s", got.Total)
	}
}

func TestComputeCapsDiscountAtGross(t *testing.T) {
	items := []Item{
		{Qty: 1, UnitPrice: decimal.NewFromInt(10), DiscountPerUnit: decimal.NewFromInt(25)},
	}

	got := Compute(items, 0, decimal.Zero)

	if !got.Subtotal.IsZero() {
		t.Fatalf("expected zero subtotal, got %s", got.Subtotal)
	}
	if got.Discount.StringFixed(2) != "10.00" {
		t.Fatalf("discount must cap at gross, got %s", got.Discount)
	}
}

func TestComputeSkipsNonPositiveQty(t *testing.T) {
	items := []Item{
		{Qty: 0, UnitPrice: decimal.NewFromInt(100)},
		{Qty: -3, UnitPrice: decimal.NewFromInt(100)},
		{Qty: 1, UnitPrice: decimal.NewFromInt(40)},
	}

	got := Compute(items, 0, decimal.NewFromInt(12))

	if got.Subtotal.StringFixed(2) != "40.00" {
		t.Fatalf("expected only the valid line, got %s", got.Subtotal)
	}
	if got.Total.StringFixed(2) != "52.00" {
		t.Fatalf("expected shipping added, got %s", got.Total)
	}
}

func TestComputeNegativeShippingTreatedAsZero(t *testing.T) {
	got := Compute(nil, 500, decimal.NewFromInt(-10))
	if !got.Shipping.IsZero() || !got.Total.IsZero() {
		t.Fatalf("expected zero shipping and total, got %+v", got)
	}
}
