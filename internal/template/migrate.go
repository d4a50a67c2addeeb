package template

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

	"github.com/noah-isme/backend-griya/internal/store"
)

// Mode controls how migrated items meet an existing cart.
type Mode string

const (
	// ModeAppend merges migrated items into the current cart contents.
	ModeAppend Mode = "APPEND"
	// ModeReplace clears the cart (items and coupon) before migrating.
	ModeReplace Mode = "REPLACE"
)

var (
	// ErrTemplateNotFound indicates the template is missing or not owned by the caller.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateCancelled indicates the template can no longer be migrated.
	ErrTemplateCancelled = errors.New("template is cancelled")
	// ErrNoValidItems indicates the selection matched no ACTIVE template items.
	ErrNoValidItems = errors.New("no valid items to move")
)

// Querier defines the store operations the migrator runs inside its transaction.
type Querier interface {
	GetTemplateForUser(ctx context.Context, templateID, userID pgtype.UUID) (store.OrderTemplate, error)
	ListActiveTemplateItems(ctx context.Context, templateID pgtype.UUID, itemIDs []string) ([]store.OrderTemplateItem, error)
	GetCartByUserForUpdate(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	CreateCart(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	DeleteCartItems(ctx context.Context, cartID pgtype.UUID) error
	UpdateCartCoupon(ctx context.Context, cartID, couponID pgtype.UUID) error
	ListTemplateManualDiscounts(ctx context.Context, userID, templateID pgtype.UUID, now time.Time) ([]store.Discount, error)
	GetDiscountSegments(ctx context.Context, discountID pgtype.UUID) ([]uuid.UUID, error)
	FindCartItemByVariant(ctx context.Context, cartID, variantID pgtype.UUID) (store.CartItem, error)
	CreateCartItem(ctx context.Context, arg store.CreateCartItemParams) (store.CartItem, error)
	MergeCartItem(ctx context.Context, itemID pgtype.UUID, qty int32, manualDiscount decimal.Decimal) error
	MarkTemplateItemInCart(ctx context.Context, itemID, cartID pgtype.UUID, movedAt time.Time) error
	RecomputeTemplateTotalCost(ctx context.Context, templateID pgtype.UUID) error
}

// Tx is one migration transaction in flight.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB begins migration transactions. Production wiring adapts a pgx pool via
// NewDB; tests supply in-memory fakes.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
}

// NewDB adapts a pool and store pair to the DB seam.
func NewDB(pool *pgxpool.Pool, st *store.Store) DB {
	return poolDB{store: st, pool: pool}
}

type poolDB struct {
	store *store.Store
	pool  *pgxpool.Pool
}

func (d poolDB) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return poolTx{Store: d.store.WithTx(tx), tx: tx}, nil
}

type poolTx struct {
	*store.Store
	tx pgx.Tx
}

func (t poolTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t poolTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// SegmentSource resolves product segment memberships for discount scoping.
type SegmentSource interface {
	GetProductSegments(ctx context.Context, productIDs []string) (map[string][]uuid.UUID, error)
}

// Repricer finalises cart totals after the migration commits.
type Repricer interface {
	Reprice(ctx context.Context, cartID pgtype.UUID) error
}

// MigrateResult reports where the items landed and the template-level pricing.
type MigrateResult struct {
	CartID     pgtype.UUID
	MovedItems int
	Pricing    Totals
}

// Migrator moves template line items into the owning user's cart.
type Migrator struct {
	DB       DB
	Segments SegmentSource
	Repricer Repricer
	Now      func() time.Time
}

func (m *Migrator) now() time.Time {
	if m != nil && m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Migrate moves the selected ACTIVE items into the user's cart under one
// transaction, then reprices the cart outside of it. Template-level percentage
// discounts are folded into an absolute per-unit manual discount on the cart
// line; when the variant already exists in the cart the discount is merged by
// weighted average so repeated migrations never inflate it.
func (m *Migrator) Migrate(ctx context.Context, templateID, userID pgtype.UUID, itemIDs []string, mode Mode) (MigrateResult, error) {
	if m == nil || m.DB == nil {
		return MigrateResult{}, errors.New("template migrator not configured")
	}
	if mode != ModeAppend && mode != ModeReplace {
		return MigrateResult{}, fmt.Errorf("unknown migration mode %q", mode)
	}

	tx, err := m.DB.Begin(ctx)
	if err != nil {
		return MigrateResult{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	q := Querier(tx)
	now := m.now()

	tpl, err := q.GetTemplateForUser(ctx, templateID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MigrateResult{}, ErrTemplateNotFound
		}
		return MigrateResult{}, err
	}
	if tpl.Status == store.TemplateStatusCancelled {
		return MigrateResult{}, ErrTemplateCancelled
	}

	tplItems, err := q.ListActiveTemplateItems(ctx, templateID, itemIDs)
	if err != nil {
		return MigrateResult{}, err
	}
	if len(tplItems) == 0 {
		return MigrateResult{}, ErrNoValidItems
	}

	cartRow, err := q.GetCartByUserForUpdate(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return MigrateResult{}, err
		}
		cartRow, err = q.CreateCart(ctx, userID)
		if err != nil {
			return MigrateResult{}, err
		}
	}
	if mode == ModeReplace {
		if err := q.DeleteCartItems(ctx, cartRow.ID); err != nil {
			return MigrateResult{}, err
		}
		if err := q.UpdateCartCoupon(ctx, cartRow.ID, pgtype.UUID{}); err != nil {
			return MigrateResult{}, err
		}
	}

	priced, err := m.priceItems(ctx, q, tplItems, userID, templateID, now)
	if err != nil {
		return MigrateResult{}, err
	}

	for _, p := range priced {
		manualPerUnit := p.UnitPrice.Sub(p.DiscountedUnitPrice)
		existing, err := q.FindCartItemByVariant(ctx, cartRow.ID, store.UUID(p.VariantID))
		switch {
		case err == nil:
			merged := mergeManualDiscount(existing.Qty, existing.ManualDiscountAmount, p.Qty, manualPerUnit)
			if err := q.MergeCartItem(ctx, existing.ID, existing.Qty+p.Qty, merged); err != nil {
				return MigrateResult{}, err
			}
		case errors.Is(err, pgx.ErrNoRows):
			if _, err := q.CreateCartItem(ctx, store.CreateCartItemParams{
				CartID:               cartRow.ID,
				ProductID:            store.UUID(p.ProductID),
				VariantID:            store.UUID(p.VariantID),
				Title:                p.Title,
				Qty:                  p.Qty,
				UnitPrice:            p.UnitPrice,
				ManualDiscountAmount: manualPerUnit,
				Source:               store.CartItemSourceTemplate,
				TemplateID:           templateID,
				TemplateItemID:       store.UUID(p.ID),
			}); err != nil {
				return MigrateResult{}, err
			}
		default:
			return MigrateResult{}, err
		}
		if err := q.MarkTemplateItemInCart(ctx, store.UUID(p.ID), cartRow.ID, now); err != nil {
			return MigrateResult{}, err
		}
	}

	// IN_CART items no longer count toward the template total.
	if err := q.RecomputeTemplateTotalCost(ctx, templateID); err != nil {
		return MigrateResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return MigrateResult{}, err
	}

	if m.Repricer != nil {
		if err := m.Repricer.Reprice(ctx, cartRow.ID); err != nil {
			return MigrateResult{}, fmt.Errorf("reprice cart after migration: %w", err)
		}
	}

	return MigrateResult{
		CartID:     cartRow.ID,
		MovedItems: len(priced),
		Pricing:    CalculateTotals(priced),
	}, nil
}

func (m *Migrator) priceItems(ctx context.Context, q Querier, tplItems []store.OrderTemplateItem, userID, templateID pgtype.UUID, now time.Time) ([]PricedItem, error) {
	discounts, err := q.ListTemplateManualDiscounts(ctx, userID, templateID, now)
	if err != nil {
		return nil, err
	}

	productIDs := make([]string, 0, len(tplItems))
	for _, it := range tplItems {
		productIDs = append(productIDs, store.UUIDString(it.ProductID))
	}
	var memberships map[string][]uuid.UUID
	if m.Segments != nil {
		memberships, err = m.Segments.GetProductSegments(ctx, productIDs)
		if err != nil {
			return nil, err
		}
	}

	scope := make(map[string][]uuid.UUID, len(discounts))
	if len(discounts) > 0 {
		segs, err := q.GetDiscountSegments(ctx, discounts[0].ID)
		if err != nil {
			return nil, err
		}
		scope[store.UUIDString(discounts[0].ID)] = segs
	}

	items := make([]Item, 0, len(tplItems))
	for _, it := range tplItems {
		items = append(items, Item{
			ID:              uuid.UUID(it.ID.Bytes),
			ProductID:       uuid.UUID(it.ProductID.Bytes),
			VariantID:       uuid.UUID(it.VariantID.Bytes),
			Title:           it.Title,
			Qty:             it.Qty,
			UnitPrice:       it.UnitPrice,
			Status:          it.Status,
			ProductSegments: memberships[store.UUIDString(it.ProductID)],
		})
	}
	priced, _ := Apply(items, discounts, scope)
	return priced, nil
}

// mergeManualDiscount folds a new per-unit manual discount into an existing cart
// line by quantity-weighted average.
func mergeManualDiscount(oldQty int32, oldDiscount decimal.Decimal, newQty int32, newDiscount decimal.Decimal) decimal.Decimal {
	totalQty := decimal.NewFromInt32(oldQty + newQty)
	if totalQty.IsZero() {
		return decimal.Zero
	}
	weighted := oldDiscount.Mul(decimal.NewFromInt32(oldQty)).
		Add(newDiscount.Mul(decimal.NewFromInt32(newQty)))
	return weighted.Div(totalQty).Round(2)
}
