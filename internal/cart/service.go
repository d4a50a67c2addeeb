package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/discount"
	"github.com/noah-isme/backend-griya/internal/obs"
	"github.com/noah-isme/backend-griya/internal/store"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrCouponInvalid indicates the coupon code cannot be applied right now.
var ErrCouponInvalid = errors.New("coupon not valid")

// Querier is the slice of store operations the cart service runs, both inside
// and outside transactions.
type Querier interface {
	GetCartByUser(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	GetCartByUserForUpdate(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	GetCartByID(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	GetCartByIDForUpdate(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	CreateCart(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	UpdateCartCoupon(ctx context.Context, cartID, couponID pgtype.UUID) error
	TouchCart(ctx context.Context, cartID pgtype.UUID) error
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	ListCartItemsForUpdate(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	FindCartItemByID(ctx context.Context, cartID, itemID pgtype.UUID) (store.CartItem, error)
	FindCartItemByVariant(ctx context.Context, cartID, variantID pgtype.UUID) (store.CartItem, error)
	CreateCartItem(ctx context.Context, arg store.CreateCartItemParams) (store.CartItem, error)
	UpdateCartItemQty(ctx context.Context, itemID pgtype.UUID, qty int32) error
	UpdateCartItemCouponDiscount(ctx context.Context, itemID pgtype.UUID, amount decimal.Decimal) error
	DeleteCartItem(ctx context.Context, cartID, itemID pgtype.UUID) error
	GetValidCouponByCode(ctx context.Context, code string, now time.Time) (store.Discount, error)
	GetDiscountByID(ctx context.Context, id pgtype.UUID) (store.Discount, error)
	GetDiscountSegments(ctx context.Context, discountID pgtype.UUID) ([]uuid.UUID, error)
}

// Tx is one cart transaction in flight.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB begins cart transactions and serves the out-of-tx reads. Production
// wiring adapts a pgx pool via NewDB; tests supply in-memory fakes.
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

func (t poolTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t poolTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// SegmentSource resolves product segment memberships for coupon eligibility.
type SegmentSource interface {
	GetProductSegments(ctx context.Context, productIDs []string) (map[string][]uuid.UUID, error)
}

// VariantSource serves sellable variants. The catalog service implements it,
// so adds go through the redis read-through cache instead of straight SQL.
type VariantSource interface {
	Variant(ctx context.Context, id pgtype.UUID) (store.Variant, error)
}

// Service owns cart mutation and the persisting pricing recompute. Every
// mutating path takes the cart row lock before touching items.
type Service struct {
	DB       DB
	Segments SegmentSource
	Catalog  VariantSource
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Summary aggregates the persisted outcome of a cart recompute.
type Summary struct {
	TotalOriginal       decimal.Decimal
	TotalManualDiscount decimal.Decimal
	TotalCouponDiscount decimal.Decimal
	FinalTotal          decimal.Decimal
}

// EnsureCart loads or lazily creates the user's cart.
func (s *Service) EnsureCart(ctx context.Context, userID pgtype.UUID) (store.Cart, error) {
	if s == nil || s.DB == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	cartRow, err := s.DB.GetCartByUser(ctx, userID)
	if err == nil {
		return cartRow, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return store.Cart{}, err
	}
	return s.DB.CreateCart(ctx, userID)
}

// AddItem inserts or increments a cart line, snapshotting the variant price at
// add time. Later recomputes never re-read the live catalog price.
func (s *Service) AddItem(ctx context.Context, userID, variantID pgtype.UUID, qty int32) error {
	if s == nil || s.DB == nil || s.Catalog == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}

	variant, err := s.Catalog.Variant(ctx, variantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("variant not found: %w", ErrInvalidInput)
		}
		return err
	}
	if variant.Stock <= 0 {
		return fmt.Errorf("variant out of stock: %w", ErrInvalidInput)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	cartRow, err := tx.GetCartByUserForUpdate(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		cartRow, err = tx.CreateCart(ctx, userID)
		if err != nil {
			return err
		}
	}

	item, err := tx.FindCartItemByVariant(ctx, cartRow.ID, variantID)
	switch {
	case err == nil:
		if err := tx.UpdateCartItemQty(ctx, item.ID, item.Qty+qty); err != nil {
			return err
		}
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.CreateCartItem(ctx, store.CreateCartItemParams{
			CartID:               cartRow.ID,
			ProductID:            variant.ProductID,
			VariantID:            variantID,
			Title:                variant.Title,
			Qty:                  qty,
			UnitPrice:            variant.Price,
			ManualDiscountAmount: decimal.Zero,
			Source:               store.CartItemSourceDirect,
		}); err != nil {
			return err
		}
	default:
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	_, err = s.Recalculate(ctx, cartRow.ID)
	return err
}

// UpdateQty sets the quantity for a cart line owned by the user.
func (s *Service) UpdateQty(ctx context.Context, userID, itemID pgtype.UUID, qty int32) error {
	if s == nil || s.DB == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	cartID, err := s.withLockedCart(ctx, userID, func(q Querier, cartRow store.Cart) error {
		item, err := q.FindCartItemByID(ctx, cartRow.ID, itemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return q.UpdateCartItemQty(ctx, item.ID, qty)
	})
	if err != nil {
		return err
	}
	_, err = s.Recalculate(ctx, cartID)
	return err
}

// RemoveItem deletes a cart line owned by the user.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID pgtype.UUID) error {
	if s == nil || s.DB == nil {
		return errors.New("cart service not configured")
	}
	cartID, err := s.withLockedCart(ctx, userID, func(q Querier, cartRow store.Cart) error {
		return q.DeleteCartItem(ctx, cartRow.ID, itemID)
	})
	if err != nil {
		return err
	}
	_, err = s.Recalculate(ctx, cartID)
	return err
}

// ApplyCoupon validates the code and attaches the coupon to the cart, then
// recomputes amounts. Stale codes fail here with a client error; they only
// degrade silently once already attached.
func (s *Service) ApplyCoupon(ctx context.Context, userID pgtype.UUID, code string) (Summary, error) {
	if s == nil || s.DB == nil {
		return Summary{}, errors.New("cart service not configured")
	}
	coupon, err := s.DB.GetValidCouponByCode(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrCouponInvalid
		}
		return Summary{}, err
	}
	cartID, err := s.withLockedCart(ctx, userID, func(q Querier, cartRow store.Cart) error {
		return q.UpdateCartCoupon(ctx, cartRow.ID, coupon.ID)
	})
	if err != nil {
		return Summary{}, err
	}
	return s.Recalculate(ctx, cartID)
}

// RemoveCoupon detaches any applied coupon and recomputes amounts.
func (s *Service) RemoveCoupon(ctx context.Context, userID pgtype.UUID) (Summary, error) {
	if s == nil || s.DB == nil {
		return Summary{}, errors.New("cart service not configured")
	}
	cartID, err := s.withLockedCart(ctx, userID, func(q Querier, cartRow store.Cart) error {
		return q.UpdateCartCoupon(ctx, cartRow.ID, pgtype.UUID{})
	})
	if err != nil {
		return Summary{}, err
	}
	return s.Recalculate(ctx, cartID)
}

func (s *Service) withLockedCart(ctx context.Context, userID pgtype.UUID, fn func(q Querier, cartRow store.Cart) error) (pgtype.UUID, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return pgtype.UUID{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	cartRow, err := tx.GetCartByUserForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgtype.UUID{}, ErrNotFound
		}
		return pgtype.UUID{}, err
	}
	if err := fn(tx, cartRow); err != nil {
		return pgtype.UUID{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return pgtype.UUID{}, err
	}
	return cartRow.ID, nil
}

// Recalculate recomputes and persists per-item discount amounts for the cart
// under the stacking rule: per item, an eligible cart-level coupon wins and the
// manual discount is excluded from totals (but never cleared from the row); an
// ineligible or absent coupon lets the manual discount count and zeroes the
// persisted coupon amount.
func (s *Service) Recalculate(ctx context.Context, cartID pgtype.UUID) (Summary, error) {
	if s == nil || s.DB == nil {
		return Summary{}, errors.New("cart service not configured")
	}
	started := time.Now()
	result := "error"
	defer func() {
		if obs.CartRepriceTotal != nil {
			obs.CartRepriceTotal.WithLabelValues(result).Inc()
		}
		if obs.CartRepriceLatency != nil {
			obs.CartRepriceLatency.Observe(obs.DurationMillis(time.Since(started)))
		}
	}()
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	cartRow, err := tx.GetCartByIDForUpdate(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrNotFound
		}
		return Summary{}, err
	}

	coupon, couponScope, err := s.activeCoupon(ctx, tx, cartRow)
	if err != nil {
		return Summary{}, err
	}

	items, err := tx.ListCartItemsForUpdate(ctx, cartRow.ID)
	if err != nil {
		return Summary{}, err
	}

	memberships, err := s.productMemberships(ctx, items)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		TotalOriginal:       decimal.Zero,
		TotalManualDiscount: decimal.Zero,
		TotalCouponDiscount: decimal.Zero,
	}
	for _, it := range items {
		qty := decimal.NewFromInt32(it.Qty)
		sum.TotalOriginal = sum.TotalOriginal.Add(it.UnitPrice.Mul(qty))

		eligible := coupon != nil &&
			discount.SegmentEligible(couponScope, memberships[store.UUIDString(it.ProductID)])
		if eligible {
			perUnit := couponPerUnit(it.UnitPrice, *coupon)
			if !perUnit.Equal(it.CouponDiscountAmount) {
				if err := tx.UpdateCartItemCouponDiscount(ctx, it.ID, perUnit); err != nil {
					return Summary{}, err
				}
			}
			sum.TotalCouponDiscount = sum.TotalCouponDiscount.Add(perUnit.Mul(qty))
			continue
		}
		sum.TotalManualDiscount = sum.TotalManualDiscount.Add(it.ManualDiscountAmount.Mul(qty))
		if !it.CouponDiscountAmount.IsZero() {
			if err := tx.UpdateCartItemCouponDiscount(ctx, it.ID, decimal.Zero); err != nil {
				return Summary{}, err
			}
		}
	}
	sum.FinalTotal = sum.TotalOriginal.
		Sub(sum.TotalManualDiscount).
		Sub(sum.TotalCouponDiscount)

	if err := tx.TouchCart(ctx, cartRow.ID); err != nil {
		return Summary{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Summary{}, err
	}
	result = "ok"
	return sum, nil
}

// Reprice runs Recalculate discarding the summary. Satisfies template.Repricer.
func (s *Service) Reprice(ctx context.Context, cartID pgtype.UUID) error {
	_, err := s.Recalculate(ctx, cartID)
	return err
}

// activeCoupon loads the cart's applied coupon only while it is active and
// unexpired; anything else is silently treated as no coupon.
func (s *Service) activeCoupon(ctx context.Context, q Querier, cartRow store.Cart) (*store.Discount, []uuid.UUID, error) {
	if !cartRow.AppliedCouponID.Valid {
		return nil, nil, nil
	}
	d, err := q.GetDiscountByID(ctx, cartRow.AppliedCouponID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if !d.IsActive || d.Kind != store.DiscountKindCoupon {
		return nil, nil, nil
	}
	if d.ExpiresAt.Valid && d.ExpiresAt.Time.Before(s.now()) {
		return nil, nil, nil
	}
	scope, err := q.GetDiscountSegments(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}
	return &d, scope, nil
}

func (s *Service) productMemberships(ctx context.Context, items []store.CartItem) (map[string][]uuid.UUID, error) {
	if s.Segments == nil || len(items) == 0 {
		return map[string][]uuid.UUID{}, nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, store.UUIDString(it.ProductID))
	}
	return s.Segments.GetProductSegments(ctx, ids)
}

// couponPerUnit computes the coupon's per-unit discount for an item. A FIXED
// value is capped at the unit price so the item never prices below zero.
func couponPerUnit(unitPrice decimal.Decimal, d store.Discount) decimal.Decimal {
	switch d.Mode {
	case store.DiscountModePercentage:
		return unitPrice.Mul(d.Value).Div(decimal.NewFromInt(100)).Round(2)
	case store.DiscountModeFixed:
		if d.Value.GreaterThan(unitPrice) {
			return unitPrice
		}
		return d.Value
	default:
		return decimal.Zero
	}
}
