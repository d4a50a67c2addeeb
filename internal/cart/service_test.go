package cart

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/store"
)

func TestCouponPerUnitPercentageRoundsToCents(t *testing.T) {
	d := store.Discount{Mode: store.DiscountModePercentage, Value: decimal.NewFromInt(15)}

	got := couponPerUnit(decimal.NewFromFloat(49.99), d)
	if got.StringFixed(2) != "7.50" {
		t.Fatalf("expected 7.50, got %s", got)
	}
}

func TestCouponPerUnitFixedCapsAtUnitPrice(t *testing.T) {
	d := store.Discount{Mode: store.DiscountModeFixed, Value: decimal.NewFromInt(25)}

	if got := couponPerUnit(decimal.NewFromInt(100), d); !got.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected full fixed value, got %s", got)
	}
	if got := couponPerUnit(decimal.NewFromInt(10), d); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("fixed discount must cap at unit price, got %s", got)
	}
}

func TestCouponPerUnitUnknownModeYieldsZero(t *testing.T) {
	d := store.Discount{Mode: store.DiscountMode("BOGO"), Value: decimal.NewFromInt(10)}
	if !couponPerUnit(decimal.NewFromInt(100), d).IsZero() {
		t.Fatal("unknown modes must not discount")
	}
}
