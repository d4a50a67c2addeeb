package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const templateColumns = `id, user_id, created_by, status, total_cost, notes,
	created_at, updated_at, deleted_at`

func scanTemplate(row pgx.Row) (OrderTemplate, error) {
	var t OrderTemplate
	err := row.Scan(&t.ID, &t.UserID, &t.CreatedBy, &t.Status, &t.TotalCost, &t.Notes,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	return t, err
}

// GetTemplateForUser loads a template owned by the user, excluding soft-deleted rows.
func (s *Store) GetTemplateForUser(ctx context.Context, templateID, userID pgtype.UUID) (OrderTemplate, error) {
	return scanTemplate(s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM order_templates
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, templateID, userID))
}

const templateItemColumns = `id, template_id, product_id, variant_id, title, qty,
	unit_price, status, moved_to_cart_at, moved_cart_id, created_at`

func scanTemplateItem(row pgx.Row) (OrderTemplateItem, error) {
	var it OrderTemplateItem
	err := row.Scan(&it.ID, &it.TemplateID, &it.ProductID, &it.VariantID, &it.Title,
		&it.Qty, &it.UnitPrice, &it.Status, &it.MovedToCartAt, &it.MovedCartID, &it.CreatedAt)
	return it, err
}

func collectTemplateItems(rows pgx.Rows) ([]OrderTemplateItem, error) {
	defer rows.Close()
	var items []OrderTemplateItem
	for rows.Next() {
		it, err := scanTemplateItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListTemplateItems returns every item in the template.
func (s *Store) ListTemplateItems(ctx context.Context, templateID pgtype.UUID) ([]OrderTemplateItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+templateItemColumns+` FROM order_template_items
		 WHERE template_id = $1 ORDER BY created_at`, templateID)
	if err != nil {
		return nil, err
	}
	return collectTemplateItems(rows)
}

// ListActiveTemplateItems returns ACTIVE items, optionally restricted to ids.
// The id filter binds as a uuid array so no SQL is assembled from input.
func (s *Store) ListActiveTemplateItems(ctx context.Context, templateID pgtype.UUID, itemIDs []string) ([]OrderTemplateItem, error) {
	if len(itemIDs) == 0 {
		rows, err := s.db.Query(ctx,
			`SELECT `+templateItemColumns+` FROM order_template_items
			 WHERE template_id = $1 AND status = 'ACTIVE' ORDER BY created_at`, templateID)
		if err != nil {
			return nil, err
		}
		return collectTemplateItems(rows)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+templateItemColumns+` FROM order_template_items
		 WHERE template_id = $1 AND status = 'ACTIVE' AND id = ANY($2::uuid[])
		 ORDER BY created_at`, templateID, itemIDs)
	if err != nil {
		return nil, err
	}
	return collectTemplateItems(rows)
}

// MarkTemplateItemInCart transitions a template item to IN_CART, stamping the
// destination cart and the move time.
func (s *Store) MarkTemplateItemInCart(ctx context.Context, itemID, cartID pgtype.UUID, movedAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE order_template_items
		 SET status = 'IN_CART', moved_cart_id = $2, moved_to_cart_at = $3
		 WHERE id = $1`, itemID, cartID, movedAt)
	return err
}

// RecomputeTemplateTotalCost recalculates total_cost from ACTIVE items inside
// the caller's transaction. Replaces the database trigger the schema used to carry.
func (s *Store) RecomputeTemplateTotalCost(ctx context.Context, templateID pgtype.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE order_templates t
		 SET total_cost = COALESCE((
				SELECT SUM(i.unit_price * i.qty)
				FROM order_template_items i
				WHERE i.template_id = t.id AND i.status = 'ACTIVE'
			), 0),
			updated_at = now()
		 WHERE t.id = $1`, templateID)
	return err
}
