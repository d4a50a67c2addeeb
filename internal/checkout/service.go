package checkout

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/events"
	"github.com/noah-isme/backend-griya/internal/pricing"
	"github.com/noah-isme/backend-griya/internal/store"
)

// ErrEmptyCart indicates the user has no cart or no items to check out.
var ErrEmptyCart = errors.New("cart is empty")

// Input carries the checkout request.
type Input struct {
	ShippingAddressID string  `json:"shippingAddressId" validate:"required,uuid4"`
	BillingAddressID  string  `json:"billingAddressId" validate:"required,uuid4"`
	Phone             string  `json:"phone"`
	Notes             *string `json:"notes"`
}

// Output is the created order plus payment redirect details. PaymentFailed is
// set when the order committed but the gateway handshake did not; the order
// stands and payment must be retried out of band.
type Output struct {
	Order         store.Order
	TransactionID string
	RedirectURL   string
	PaymentFailed bool
}

// PaymentInitiator starts a gateway payment for a freshly created order.
type PaymentInitiator interface {
	Initiate(ctx context.Context, orderID pgtype.UUID, amount decimal.Decimal, transactionID, phone string) (redirectURL string, requestPayload []byte, err error)
}

// Querier is the slice of store operations checkout performs.
type Querier interface {
	GetCartByUserForUpdate(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	ListCartItemsForUpdate(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	CreateOrderItem(ctx context.Context, arg store.CreateOrderItemParams) error
	InsertOrderStatusHistory(ctx context.Context, orderID pgtype.UUID, from pgtype.Text, to store.OrderStatus, note pgtype.Text) error
	DeleteCartItems(ctx context.Context, cartID pgtype.UUID) error
	CreatePayment(ctx context.Context, arg store.CreatePaymentParams) (store.Payment, error)
}

// Tx is one checkout transaction. Begin opens a savepoint inside it.
type Tx interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB begins checkout transactions and serves the post-commit payment insert.
type DB interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
}

// NewDB adapts a pool and store pair to the DB seam.
func NewDB(pool *pgxpool.Pool, st *store.Store) DB {
	return poolDB{Store: st, pool: pool}
}

type poolDB struct {
	*store.Store
	pool *pgxpool.Pool
}

func (d poolDB) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return poolTx{Store: d.Store.WithTx(tx), tx: tx}, nil
}

type poolTx struct {
	*store.Store
	tx pgx.Tx
}

// Begin opens a pgx savepoint nested in this transaction.
func (t poolTx) Begin(ctx context.Context) (Tx, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return poolTx{Store: t.Store.WithTx(sp), tx: sp}, nil
}

func (t poolTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t poolTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// Service converts a locked cart snapshot into an immutable order.
type Service struct {
	DB      DB
	TaxBps  int
	Gateway PaymentInitiator
	Events  *events.Bus
	Log     zerolog.Logger
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Checkout snapshots the user's cart into an order under one transaction.
// The cart row is locked before its items so concurrent recomputes and
// checkouts on the same cart always acquire locks in the same order. Totals
// are computed in-process from the locked rows, never re-read from the
// catalog, so the order reflects exactly what was locked.
func (s *Service) Checkout(ctx context.Context, userID pgtype.UUID, in Input) (Output, error) {
	if s == nil || s.DB == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	shippingAddr, err := store.ParseUUID(in.ShippingAddressID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid shipping address id: %w", err)
	}
	billingAddr, err := store.ParseUUID(in.BillingAddressID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid billing address id: %w", err)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Output{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	cartRow, err := tx.GetCartByUserForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Output{}, ErrEmptyCart
		}
		return Output{}, err
	}
	items, err := tx.ListCartItemsForUpdate(ctx, cartRow.ID)
	if err != nil {
		return Output{}, err
	}
	if len(items) == 0 {
		return Output{}, ErrEmptyCart
	}

	pricingItems := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		pricingItems = append(pricingItems, pricing.Item{
			Qty:             it.Qty,
			UnitPrice:       it.UnitPrice,
			DiscountPerUnit: it.ManualDiscountAmount.Add(it.CouponDiscountAmount),
		})
	}
	summary := pricing.Compute(pricingItems, s.TaxBps, decimal.Zero)

	var notes pgtype.Text
	if in.Notes != nil && *in.Notes != "" {
		notes = pgtype.Text{String: *in.Notes, Valid: true}
	}
	var orderRow store.Order
	for attempt := 0; ; attempt++ {
		orderRow, err = createOrderRow(ctx, tx, store.CreateOrderParams{
			UserID:            userID,
			Number:            GenerateOrderNumber(s.now()),
			Status:            store.OrderStatusPending,
			TotalAmount:       summary.Subtotal,
			DiscountAmount:    summary.Discount,
			TaxAmount:         summary.Tax,
			ShippingAmount:    summary.Shipping,
			GrandTotal:        summary.Total,
			ShippingAddressID: shippingAddr,
			BillingAddressID:  billingAddr,
			Notes:             notes,
		})
		if err == nil {
			break
		}
		// Order numbers carry a short random suffix; regenerate on collision.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && attempt < 2 {
			continue
		}
		return Output{}, err
	}

	for _, it := range items {
		qty := decimal.NewFromInt32(it.Qty)
		discPerUnit := it.ManualDiscountAmount.Add(it.CouponDiscountAmount)
		lineDiscount := discPerUnit.Mul(qty)
		lineTotal := it.UnitPrice.Mul(qty).Sub(lineDiscount)
		if lineTotal.IsNegative() {
			lineTotal = decimal.Zero
		}
		if err := tx.CreateOrderItem(ctx, store.CreateOrderItemParams{
			OrderID:        orderRow.ID,
			ProductID:      it.ProductID,
			VariantID:      it.VariantID,
			Title:          it.Title,
			Qty:            it.Qty,
			UnitPrice:      it.UnitPrice,
			DiscountAmount: lineDiscount,
			TotalPrice:     lineTotal,
		}); err != nil {
			return Output{}, err
		}
	}

	if err := tx.InsertOrderStatusHistory(ctx, orderRow.ID, pgtype.Text{}, store.OrderStatusPending, pgtype.Text{}); err != nil {
		return Output{}, err
	}

	// The cart row survives for reuse; only its lines are consumed.
	if err := tx.DeleteCartItems(ctx, cartRow.ID); err != nil {
		return Output{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Output{}, err
	}

	out := Output{Order: orderRow}
	s.initiatePayment(ctx, &out, in.Phone)

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, orderRow.ID, map[string]any{
			"orderId":    store.UUIDString(orderRow.ID),
			"userId":     store.UUIDString(userID),
			"number":     orderRow.Number,
			"grandTotal": orderRow.GrandTotal,
		})
	}
	return out, nil
}

// initiatePayment runs the gateway handshake after the order has committed.
// Failures never fail the checkout: the order stands, the failure is logged
// with enough context to reconcile, and the caller sees PaymentFailed.
func (s *Service) initiatePayment(ctx context.Context, out *Output, phone string) {
	if s.Gateway == nil {
		return
	}
	orderRow := out.Order
	txnID := fmt.Sprintf("TXN-%s", orderRow.Number)
	redirectURL, requestPayload, err := s.Gateway.Initiate(ctx, orderRow.ID, orderRow.GrandTotal, txnID, phone)
	if err != nil {
		s.Log.Error().Err(err).
			Str("order_number", orderRow.Number).
			Str("gateway_txn_id", txnID).
			Msg("checkout: payment initiation failed")
		out.PaymentFailed = true
		return
	}
	if _, err := s.DB.CreatePayment(ctx, store.CreatePaymentParams{
		OrderID:        orderRow.ID,
		Status:         store.PaymentStatusInitiated,
		Amount:         orderRow.GrandTotal,
		GatewayTxnID:   txnID,
		RequestPayload: requestPayload,
	}); err != nil {
		// Without this row the webhook cannot find the payment; flag loudly.
		s.Log.Error().Err(err).
			Str("order_number", orderRow.Number).
			Str("gateway_txn_id", txnID).
			Msg("checkout: payment row not recorded")
		out.PaymentFailed = true
		return
	}
	out.TransactionID = txnID
	out.RedirectURL = redirectURL
}

// createOrderRow inserts the order inside a savepoint so a number collision
// aborts only the savepoint, not the enclosing transaction.
func createOrderRow(ctx context.Context, tx Tx, params store.CreateOrderParams) (store.Order, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return store.Order{}, err
	}
	row, err := sp.CreateOrder(ctx, params)
	if err != nil {
		_ = sp.Rollback(ctx)
		return store.Order{}, err
	}
	if err := sp.Commit(ctx); err != nil {
		return store.Order{}, err
	}
	return row, nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateOrderNumber returns a human-readable order number of the form
// ORD-YYYYMMDD-xxxxx with a random base36 suffix.
func GenerateOrderNumber(now time.Time) string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// The system entropy source is gone; nothing sensible to degrade to.
		panic(fmt.Sprintf("checkout: order number entropy: %v", err))
	}
	for i, b := range buf {
		buf[i] = base36[int(b)%len(base36)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), string(buf))
}
