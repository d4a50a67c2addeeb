package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const discountColumns = `id, kind, mode, value, coupon_code, expires_at, is_active,
	created_by, creator_role, created_at`

func scanDiscount(row pgx.Row) (Discount, error) {
	var d Discount
	err := row.Scan(&d.ID, &d.Kind, &d.Mode, &d.Value, &d.CouponCode, &d.ExpiresAt,
		&d.IsActive, &d.CreatedBy, &d.CreatorRole, &d.CreatedAt)
	return d, err
}

// GetDiscountByID loads a discount regardless of state.
func (s *Store) GetDiscountByID(ctx context.Context, id pgtype.UUID) (Discount, error) {
	return scanDiscount(s.db.QueryRow(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE id = $1`, id))
}

// GetValidCouponByCode returns an active, unexpired coupon with the given code.
func (s *Store) GetValidCouponByCode(ctx context.Context, code string, now time.Time) (Discount, error) {
	return scanDiscount(s.db.QueryRow(ctx,
		`SELECT `+discountColumns+` FROM discounts
		 WHERE kind = 'COUPON' AND coupon_code = $1 AND is_active AND (expires_at IS NULL OR expires_at > $2)`,
		code, now))
}

// ListUserManualDiscounts returns active, unexpired MANUAL discounts assigned to
// the user across all templates (assignment with NULL template scope), most
// recent assignment first.
func (s *Store) ListUserManualDiscounts(ctx context.Context, userID pgtype.UUID, now time.Time) ([]Discount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+prefixed(discountColumns, "d.")+`
		 FROM discounts d
		 JOIN manual_discount_assignments a ON a.discount_id = d.id
		 WHERE a.user_id = $1 AND a.template_id IS NULL
		   AND d.kind = 'MANUAL' AND d.is_active AND (d.expires_at IS NULL OR d.expires_at > $2)
		 ORDER BY a.created_at DESC`, userID, now)
	if err != nil {
		return nil, err
	}
	return collectDiscounts(rows)
}

// ListTemplateManualDiscounts returns active, unexpired MANUAL discounts scoped to
// the template or to the user globally, template-scoped assignments first.
func (s *Store) ListTemplateManualDiscounts(ctx context.Context, userID, templateID pgtype.UUID, now time.Time) ([]Discount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+prefixed(discountColumns, "d.")+`
		 FROM discounts d
		 JOIN manual_discount_assignments a ON a.discount_id = d.id
		 WHERE a.user_id = $1 AND (a.template_id = $2 OR a.template_id IS NULL)
		   AND d.kind = 'MANUAL' AND d.is_active AND (d.expires_at IS NULL OR d.expires_at > $3)
		 ORDER BY a.template_id NULLS LAST, a.created_at DESC`, userID, templateID, now)
	if err != nil {
		return nil, err
	}
	return collectDiscounts(rows)
}

// GetDiscountSegments returns the segment ids scoping a discount. An empty
// result means the discount applies globally.
func (s *Store) GetDiscountSegments(ctx context.Context, discountID pgtype.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT segment_id FROM discount_segments WHERE discount_id = $1`, discountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectDiscounts(rows pgx.Rows) ([]Discount, error) {
	defer rows.Close()
	var out []Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
