package checkout

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/store"
)

const (
	testShippingAddr = "3b241101-e2bb-4255-8caf-4136c566a962"
	testBillingAddr  = "b0f3b0ea-7e5b-4e4e-a26a-6fc7eec49cd5"
)

// fakeCheckoutDB stages writes in memory. Only top-level commits count; a test
// asserting commits == 0 is asserting the real database would keep nothing.
type fakeCheckoutDB struct {
	cart         store.Cart
	items        []store.CartItem
	orders       []store.Order
	orderItems   []store.CreateOrderItemParams
	history      []store.OrderStatus
	payments     []store.CreatePaymentParams
	cartCleared  bool
	commits      int
	orderCalls   int
	orderErrs    []error
	orderItemErr error
	paymentErr   error
}

func (f *fakeCheckoutDB) Begin(ctx context.Context) (Tx, error) {
	return fakeCheckoutTx{fakeCheckoutDB: f}, nil
}

func (f *fakeCheckoutDB) GetCartByUserForUpdate(ctx context.Context, userID pgtype.UUID) (store.Cart, error) {
	return f.cart, nil
}

func (f *fakeCheckoutDB) ListCartItemsForUpdate(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error) {
	return append([]store.CartItem(nil), f.items...), nil
}

func (f *fakeCheckoutDB) CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error) {
	f.orderCalls++
	if len(f.orderErrs) > 0 {
		err := f.orderErrs[0]
		f.orderErrs = f.orderErrs[1:]
		if err != nil {
			return store.Order{}, err
		}
	}
	row := store.Order{
		ID:                store.UUID(uuid.New()),
		UserID:            arg.UserID,
		Number:            arg.Number,
		Status:            arg.Status,
		TotalAmount:       arg.TotalAmount,
		DiscountAmount:    arg.DiscountAmount,
		TaxAmount:         arg.TaxAmount,
		ShippingAmount:    arg.ShippingAmount,
		GrandTotal:        arg.GrandTotal,
		ShippingAddressID: arg.ShippingAddressID,
		BillingAddressID:  arg.BillingAddressID,
		Notes:             arg.Notes,
	}
	f.orders = append(f.orders, row)
	return row, nil
}

func (f *fakeCheckoutDB) CreateOrderItem(ctx context.Context, arg store.CreateOrderItemParams) error {
	if f.orderItemErr != nil {
		return f.orderItemErr
	}
	f.orderItems = append(f.orderItems, arg)
	return nil
}

func (f *fakeCheckoutDB) InsertOrderStatusHistory(ctx context.Context, orderID pgtype.UUID, from pgtype.Text, to store.OrderStatus, note pgtype.Text) error {
	f.history = append(f.history, to)
	return nil
}

func (f *fakeCheckoutDB) DeleteCartItems(ctx context.Context, cartID pgtype.UUID) error {
	f.cartCleared = true
	return nil
}

func (f *fakeCheckoutDB) CreatePayment(ctx context.Context, arg store.CreatePaymentParams) (store.Payment, error) {
	if f.paymentErr != nil {
		return store.Payment{}, f.paymentErr
	}
	f.payments = append(f.payments, arg)
	return store.Payment{ID: store.UUID(uuid.New()), OrderID: arg.OrderID, Status: arg.Status}, nil
}

type fakeCheckoutTx struct {
	*fakeCheckoutDB
	savepoint bool
}

func (t fakeCheckoutTx) Begin(ctx context.Context) (Tx, error) {
	return fakeCheckoutTx{fakeCheckoutDB: t.fakeCheckoutDB, savepoint: true}, nil
}

func (t fakeCheckoutTx) Commit(ctx context.Context) error {
	if !t.savepoint {
		t.commits++
	}
	return nil
}

func (t fakeCheckoutTx) Rollback(ctx context.Context) error { return nil }

type stubGateway struct {
	redirect string
	err      error
	calls    int
}

func (g *stubGateway) Initiate(ctx context.Context, orderID pgtype.UUID, amount decimal.Decimal, transactionID, phone string) (string, []byte, error) {
	g.calls++
	if g.err != nil {
		return "", nil, g.err
	}
	return g.redirect, []byte(`{"request":true}`), nil
}

func newCheckoutFixture() (*fakeCheckoutDB, *Service) {
	f := &fakeCheckoutDB{cart: store.Cart{ID: store.UUID(uuid.New())}}
	svc := &Service{DB: f, TaxBps: 500, Log: zerolog.Nop()}
	return f, svc
}

func singleLine(qty int32, unit int64) []store.CartItem {
	return []store.CartItem{{
		ID:                   store.UUID(uuid.New()),
		ProductID:            store.UUID(uuid.New()),
		VariantID:            store.UUID(uuid.New()),
		Title:                "Office Chair",
		Qty:                  qty,
		UnitPrice:            decimal.NewFromInt(unit),
		ManualDiscountAmount: decimal.Zero,
		CouponDiscountAmount: decimal.Zero,
	}}
}

func checkoutInput() Input {
	return Input{ShippingAddressID: testShippingAddr, BillingAddressID: testBillingAddr}
}

func TestCheckoutComputesOrderTotals(t *testing.T) {
	f, svc := newCheckoutFixture()
	f.items = singleLine(2, 100)

	out, err := svc.Checkout(context.Background(), store.UUID(uuid.New()), checkoutInput())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	o := out.Order
	if o.Status != store.OrderStatusPending {
		t.Fatalf("expected PENDING order, got %s", o.Status)
	}
	for name, got := range map[string]struct {
		have decimal.Decimal
		want int64
	}{
		"total":    {o.TotalAmount, 200},
		"discount": {o.DiscountAmount, 0},
		"tax":      {o.TaxAmount, 10},
		"shipping": {o.ShippingAmount, 0},
		"grand":    {o.GrandTotal, 210},
	} {
		if !got.have.Equal(decimal.NewFromInt(got.want)) {
			t.Fatalf("%s: expected %d, got %s", name, got.want, got.have)
		}
	}
	if len(f.history) != 1 || f.history[0] != store.OrderStatusPending {
		t.Fatalf("expected one PENDING history row, got %v", f.history)
	}
	if !f.cartCleared {
		t.Fatal("cart lines must be consumed by checkout")
	}
	if f.commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", f.commits)
	}
}

func TestCheckoutRollsBackWhenOrderItemFails(t *testing.T) {
	f, svc := newCheckoutFixture()
	f.items = singleLine(1, 50)
	f.orderItemErr = errors.New("insert order item: connection reset")

	if _, err := svc.Checkout(context.Background(), store.UUID(uuid.New()), checkoutInput()); err == nil {
		t.Fatal("expected checkout to fail")
	}
	if f.commits != 0 {
		t.Fatalf("failed checkout must not commit, got %d commits", f.commits)
	}
	if len(f.history) != 0 || len(f.payments) != 0 {
		t.Fatalf("no history or payment may follow a rollback, got %d/%d", len(f.history), len(f.payments))
	}
}

func TestCheckoutRetriesOrderNumberCollision(t *testing.T) {
	f, svc := newCheckoutFixture()
	f.items = singleLine(1, 80)
	f.orderErrs = []error{&pgconn.PgError{Code: pgerrcode.UniqueViolation}}

	out, err := svc.Checkout(context.Background(), store.UUID(uuid.New()), checkoutInput())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if f.orderCalls != 2 {
		t.Fatalf("expected a retry after the collision, got %d attempts", f.orderCalls)
	}
	if len(f.orders) != 1 || out.Order.Number == "" {
		t.Fatalf("expected one surviving order, got %d", len(f.orders))
	}
	if f.commits != 1 {
		t.Fatalf("expected one commit, got %d", f.commits)
	}
}

func TestCheckoutSurvivesGatewayFailure(t *testing.T) {
	f, svc := newCheckoutFixture()
	f.items = singleLine(1, 120)
	svc.Gateway = &stubGateway{err: errors.New("gateway timeout")}

	out, err := svc.Checkout(context.Background(), store.UUID(uuid.New()), checkoutInput())
	if err != nil {
		t.Fatalf("gateway failure must not fail checkout: %v", err)
	}
	if !out.PaymentFailed {
		t.Fatal("expected PaymentFailed to be flagged")
	}
	if out.TransactionID != "" || out.RedirectURL != "" {
		t.Fatalf("no redirect without a gateway handshake, got %q/%q", out.TransactionID, out.RedirectURL)
	}
	if len(f.payments) != 0 {
		t.Fatalf("no payment row without a handshake, got %d", len(f.payments))
	}
	if f.commits != 1 {
		t.Fatalf("order must still commit, got %d commits", f.commits)
	}
}

func TestCheckoutFlagsUnrecordedPaymentRow(t *testing.T) {
	f, svc := newCheckoutFixture()
	f.items = singleLine(1, 120)
	svc.Gateway = &stubGateway{redirect: "https://pay.example/redirect"}
	f.paymentErr = errors.New("insert payment: connection reset")

	out, err := svc.Checkout(context.Background(), store.UUID(uuid.New()), checkoutInput())
	if err != nil {
		t.Fatalf("payment row failure must not fail checkout: %v", err)
	}
	if !out.PaymentFailed {
		t.Fatal("expected PaymentFailed to be flagged")
	}
	if out.TransactionID != "" {
		t.Fatalf("transaction id must not be surfaced without a payment row, got %q", out.TransactionID)
	}
}

func TestGenerateOrderNumberFormat(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20250314-[0-9a-z]{5}$`)

	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		number := GenerateOrderNumber(now)
		if !pattern.MatchString(number) {
			t.Fatalf("unexpected order number %q", number)
		}
		seen[number] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatal("expected random suffixes to vary across generations")
	}
}
