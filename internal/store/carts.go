package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const cartColumns = `id, user_id, applied_coupon_id, created_at, updated_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AppliedCouponID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCartByID loads a cart by its identifier.
func (s *Store) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
}

// GetCartByUser loads the user's cart.
func (s *Store) GetCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID))
}

// GetCartByUserForUpdate locks the user's cart row for the remainder of the transaction.
// Callers must take this lock before touching cart items.
func (s *Store) GetCartByUserForUpdate(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE user_id = $1 FOR UPDATE`, userID))
}

// GetCartByIDForUpdate locks a cart row by id.
func (s *Store) GetCartByIDForUpdate(ctx context.Context, id pgtype.UUID) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, id))
}

// CreateCart inserts a cart for the user.
func (s *Store) CreateCart(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx,
		`INSERT INTO carts (user_id) VALUES ($1) RETURNING `+cartColumns, userID))
}

// UpdateCartCoupon sets or clears the cart's applied coupon.
func (s *Store) UpdateCartCoupon(ctx context.Context, cartID, couponID pgtype.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE carts SET applied_coupon_id = $2, updated_at = now() WHERE id = $1`, cartID, couponID)
	return err
}

// TouchCart bumps the cart's updated_at timestamp.
func (s *Store) TouchCart(ctx context.Context, cartID pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	return err
}

const cartItemColumns = `id, cart_id, product_id, variant_id, title, qty, unit_price,
	manual_discount_amount, coupon_discount_amount, source, template_id, template_item_id,
	created_at, updated_at`

func scanCartItem(row pgx.Row) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Title, &it.Qty,
		&it.UnitPrice, &it.ManualDiscountAmount, &it.CouponDiscountAmount, &it.Source,
		&it.TemplateID, &it.TemplateItemID, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func collectCartItems(rows pgx.Rows) ([]CartItem, error) {
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListCartItems returns all items in the cart ordered by insertion.
func (s *Store) ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

// ListCartItemsForUpdate locks and returns the cart's items. The cart row itself
// must already be locked so the lock order stays cart before items.
func (s *Store) ListCartItemsForUpdate(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at FOR UPDATE`, cartID)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

// FindCartItemByID locates a cart line by id, scoped to the cart.
func (s *Store) FindCartItemByID(ctx context.Context, cartID, itemID pgtype.UUID) (CartItem, error) {
	return scanCartItem(s.db.QueryRow(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID))
}

// FindCartItemByVariant locates an existing line for the variant inside the cart.
func (s *Store) FindCartItemByVariant(ctx context.Context, cartID, variantID pgtype.UUID) (CartItem, error) {
	return scanCartItem(s.db.QueryRow(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 AND variant_id = $2`, cartID, variantID))
}

// CreateCartItemParams carries the fields required to insert a cart line.
type CreateCartItemParams struct {
	CartID               pgtype.UUID
	ProductID            pgtype.UUID
	VariantID            pgtype.UUID
	Title                string
	Qty                  int32
	UnitPrice            decimal.Decimal
	ManualDiscountAmount decimal.Decimal
	Source               CartItemSource
	TemplateID           pgtype.UUID
	TemplateItemID       pgtype.UUID
}

// CreateCartItem inserts a cart line.
func (s *Store) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	return scanCartItem(s.db.QueryRow(ctx,
		`INSERT INTO cart_items (cart_id, product_id, variant_id, title, qty, unit_price,
			manual_discount_amount, source, template_id, template_item_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+cartItemColumns,
		arg.CartID, arg.ProductID, arg.VariantID, arg.Title, arg.Qty, arg.UnitPrice,
		arg.ManualDiscountAmount, arg.Source, arg.TemplateID, arg.TemplateItemID))
}

// UpdateCartItemQty sets the quantity of a cart line.
func (s *Store) UpdateCartItemQty(ctx context.Context, itemID pgtype.UUID, qty int32) error {
	_, err := s.db.Exec(ctx,
		`UPDATE cart_items SET qty = $2, updated_at = now() WHERE id = $1`, itemID, qty)
	return err
}

// MergeCartItem sets the quantity and per-unit manual discount on an existing line.
// Used by template migration when the variant already exists in the cart.
func (s *Store) MergeCartItem(ctx context.Context, itemID pgtype.UUID, qty int32, manualDiscount decimal.Decimal) error {
	_, err := s.db.Exec(ctx,
		`UPDATE cart_items SET qty = $2, manual_discount_amount = $3, updated_at = now() WHERE id = $1`,
		itemID, qty, manualDiscount)
	return err
}

// UpdateCartItemCouponDiscount persists the recomputed per-unit coupon discount.
func (s *Store) UpdateCartItemCouponDiscount(ctx context.Context, itemID pgtype.UUID, amount decimal.Decimal) error {
	_, err := s.db.Exec(ctx,
		`UPDATE cart_items SET coupon_discount_amount = $2, updated_at = now() WHERE id = $1`, itemID, amount)
	return err
}

// DeleteCartItem removes one line from the cart.
func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID pgtype.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return err
}

// DeleteCartItems removes every line from the cart. The cart row survives for reuse.
func (s *Store) DeleteCartItems(ctx context.Context, cartID pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
