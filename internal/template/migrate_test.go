package template

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/store"
)

type mergeCall struct {
	itemID   pgtype.UUID
	qty      int32
	discount decimal.Decimal
}

// fakeMigrateDB serves one template and one cart out of memory. It doubles as
// the transaction; commits are counted.
type fakeMigrateDB struct {
	template      store.OrderTemplate
	tplItems      []store.OrderTemplateItem
	discounts     []store.Discount
	cart          store.Cart
	cartItems     []store.CartItem
	created       []store.CreateCartItemParams
	merged        []mergeCall
	marked        []pgtype.UUID
	recomputed    int
	itemsCleared  bool
	couponCleared bool
	commits       int
}

func (f *fakeMigrateDB) Begin(ctx context.Context) (Tx, error) { return f, nil }
func (f *fakeMigrateDB) Commit(ctx context.Context) error      { f.commits++; return nil }
func (f *fakeMigrateDB) Rollback(ctx context.Context) error    { return nil }

func (f *fakeMigrateDB) GetTemplateForUser(ctx context.Context, templateID, userID pgtype.UUID) (store.OrderTemplate, error) {
	if f.template.ID == templateID && f.template.UserID == userID {
		return f.template, nil
	}
	return store.OrderTemplate{}, pgx.ErrNoRows
}

func (f *fakeMigrateDB) ListActiveTemplateItems(ctx context.Context, templateID pgtype.UUID, itemIDs []string) ([]store.OrderTemplateItem, error) {
	return append([]store.OrderTemplateItem(nil), f.tplItems...), nil
}

func (f *fakeMigrateDB) GetCartByUserForUpdate(ctx context.Context, userID pgtype.UUID) (store.Cart, error) {
	return f.cart, nil
}

func (f *fakeMigrateDB) CreateCart(ctx context.Context, userID pgtype.UUID) (store.Cart, error) {
	return f.cart, nil
}

func (f *fakeMigrateDB) DeleteCartItems(ctx context.Context, cartID pgtype.UUID) error {
	f.itemsCleared = true
	f.cartItems = nil
	return nil
}

func (f *fakeMigrateDB) UpdateCartCoupon(ctx context.Context, cartID, couponID pgtype.UUID) error {
	if !couponID.Valid {
		f.couponCleared = true
	}
	return nil
}

func (f *fakeMigrateDB) ListTemplateManualDiscounts(ctx context.Context, userID, templateID pgtype.UUID, now time.Time) ([]store.Discount, error) {
	return append([]store.Discount(nil), f.discounts...), nil
}

func (f *fakeMigrateDB) GetDiscountSegments(ctx context.Context, discountID pgtype.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeMigrateDB) FindCartItemByVariant(ctx context.Context, cartID, variantID pgtype.UUID) (store.CartItem, error) {
	for _, it := range f.cartItems {
		if it.VariantID == variantID {
			return it, nil
		}
	}
	return store.CartItem{}, pgx.ErrNoRows
}

func (f *fakeMigrateDB) CreateCartItem(ctx context.Context, arg store.CreateCartItemParams) (store.CartItem, error) {
	f.created = append(f.created, arg)
	return store.CartItem{ID: store.UUID(uuid.New()), CartID: arg.CartID, VariantID: arg.VariantID}, nil
}

func (f *fakeMigrateDB) MergeCartItem(ctx context.Context, itemID pgtype.UUID, qty int32, manualDiscount decimal.Decimal) error {
	f.merged = append(f.merged, mergeCall{itemID: itemID, qty: qty, discount: manualDiscount})
	return nil
}

func (f *fakeMigrateDB) MarkTemplateItemInCart(ctx context.Context, itemID, cartID pgtype.UUID, movedAt time.Time) error {
	f.marked = append(f.marked, itemID)
	return nil
}

func (f *fakeMigrateDB) RecomputeTemplateTotalCost(ctx context.Context, templateID pgtype.UUID) error {
	f.recomputed++
	return nil
}

type fakeRepricer struct {
	calls []pgtype.UUID
}

func (r *fakeRepricer) Reprice(ctx context.Context, cartID pgtype.UUID) error {
	r.calls = append(r.calls, cartID)
	return nil
}

func newMigrateFixture() (*fakeMigrateDB, pgtype.UUID, pgtype.UUID) {
	templateID := store.UUID(uuid.New())
	userID := store.UUID(uuid.New())
	f := &fakeMigrateDB{
		template: store.OrderTemplate{ID: templateID, UserID: userID, Status: store.TemplateStatusActive},
		cart:     store.Cart{ID: store.UUID(uuid.New()), UserID: userID},
	}
	return f, templateID, userID
}

func TestMigrateMergesExistingLineByWeightedAverage(t *testing.T) {
	f, templateID, userID := newMigrateFixture()
	variantID := store.UUID(uuid.New())
	tplItemID := store.UUID(uuid.New())
	f.tplItems = []store.OrderTemplateItem{{
		ID:         tplItemID,
		TemplateID: templateID,
		ProductID:  store.UUID(uuid.New()),
		VariantID:  variantID,
		Title:      "Bulk Paper",
		Qty:        2,
		UnitPrice:  decimal.NewFromInt(100),
		Status:     store.TemplateItemStatusActive,
	}}
	// 10% off makes the incoming per-unit manual discount 10.00.
	f.discounts = []store.Discount{{
		ID:    store.UUID(uuid.New()),
		Kind:  store.DiscountKindManual,
		Mode:  store.DiscountModePercentage,
		Value: decimal.NewFromInt(10),
	}}
	existingID := store.UUID(uuid.New())
	f.cartItems = []store.CartItem{{
		ID:                   existingID,
		CartID:               f.cart.ID,
		VariantID:            variantID,
		Qty:                  3,
		ManualDiscountAmount: decimal.NewFromInt(4),
	}}

	repricer := &fakeRepricer{}
	m := &Migrator{DB: f, Repricer: repricer}
	res, err := m.Migrate(context.Background(), templateID, userID, nil, ModeAppend)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(f.merged) != 1 {
		t.Fatalf("expected one merge, got %d", len(f.merged))
	}
	got := f.merged[0]
	if got.itemID != existingID || got.qty != 5 {
		t.Fatalf("expected merge into existing line at qty 5, got %+v", got)
	}
	// (3*4 + 2*10) / 5
	if !got.discount.Equal(decimal.NewFromFloat(6.4)) {
		t.Fatalf("expected weighted discount 6.40, got %s", got.discount)
	}
	if len(f.created) != 0 {
		t.Fatalf("colliding variant must merge, not create, got %d creates", len(f.created))
	}
	if len(f.marked) != 1 || f.marked[0] != tplItemID {
		t.Fatalf("template item must be marked IN_CART, got %v", f.marked)
	}
	if f.recomputed != 1 {
		t.Fatalf("template total must be recomputed, got %d", f.recomputed)
	}
	if f.commits != 1 {
		t.Fatalf("expected one commit, got %d", f.commits)
	}
	if len(repricer.calls) != 1 || repricer.calls[0] != f.cart.ID {
		t.Fatalf("cart must be repriced after commit, got %v", repricer.calls)
	}
	if res.MovedItems != 1 || res.CartID != f.cart.ID {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Pricing.DiscountAmount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected template discount 20, got %s", res.Pricing.DiscountAmount)
	}
}

func TestMigrateReplaceClearsCartFirst(t *testing.T) {
	f, templateID, userID := newMigrateFixture()
	tplItemID := store.UUID(uuid.New())
	f.tplItems = []store.OrderTemplateItem{{
		ID:         tplItemID,
		TemplateID: templateID,
		ProductID:  store.UUID(uuid.New()),
		VariantID:  store.UUID(uuid.New()),
		Title:      "Desk Lamp",
		Qty:        1,
		UnitPrice:  decimal.NewFromInt(60),
		Status:     store.TemplateItemStatusActive,
	}}
	f.cartItems = []store.CartItem{{
		ID:        store.UUID(uuid.New()),
		CartID:    f.cart.ID,
		VariantID: store.UUID(uuid.New()),
		Qty:       4,
	}}

	m := &Migrator{DB: f}
	if _, err := m.Migrate(context.Background(), templateID, userID, nil, ModeReplace); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !f.itemsCleared || !f.couponCleared {
		t.Fatalf("REPLACE must clear items and coupon, got %v/%v", f.itemsCleared, f.couponCleared)
	}
	if len(f.created) != 1 {
		t.Fatalf("expected one created line, got %d", len(f.created))
	}
	created := f.created[0]
	if created.Source != store.CartItemSourceTemplate || created.TemplateItemID != tplItemID {
		t.Fatalf("created line must trace back to the template item, got %+v", created)
	}
}

func TestMigrateRejectsCancelledTemplate(t *testing.T) {
	f, templateID, userID := newMigrateFixture()
	f.template.Status = store.TemplateStatusCancelled

	m := &Migrator{DB: f}
	if _, err := m.Migrate(context.Background(), templateID, userID, nil, ModeAppend); !errors.Is(err, ErrTemplateCancelled) {
		t.Fatalf("expected ErrTemplateCancelled, got %v", err)
	}
	if f.commits != 0 {
		t.Fatalf("rejected migration must not commit, got %d", f.commits)
	}
}
