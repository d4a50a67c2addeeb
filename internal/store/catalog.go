package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// GetVariant loads a sellable variant with its live catalog price.
func (s *Store) GetVariant(ctx context.Context, id pgtype.UUID) (Variant, error) {
	var v Variant
	err := s.db.QueryRow(ctx,
		`SELECT v.id, v.product_id, v.title, v.price, v.stock
		 FROM product_variants v WHERE v.id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.Title, &v.Price, &v.Stock)
	return v, err
}

// GetProductSegments returns segment memberships for the given products,
// combining direct product-segment links and category-segment links.
func (s *Store) GetProductSegments(ctx context.Context, productIDs []string) (map[string][]uuid.UUID, error) {
	result := make(map[string][]uuid.UUID, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT ps.product_id, ps.segment_id
		 FROM product_segments ps
		 WHERE ps.product_id = ANY($1::uuid[])
		 UNION
		 SELECT p.id, cs.segment_id
		 FROM products p
		 JOIN category_segments cs ON cs.category_id = p.category_id
		 WHERE p.id = ANY($1::uuid[])`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var productID, segmentID uuid.UUID
		if err := rows.Scan(&productID, &segmentID); err != nil {
			return nil, err
		}
		key := productID.String()
		result[key] = append(result[key], segmentID)
	}
	return result, rows.Err()
}
