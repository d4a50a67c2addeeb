package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-griya/internal/store"
)

// Querier is the slice of catalog queries the service needs.
type Querier interface {
	GetVariant(ctx context.Context, id pgtype.UUID) (store.Variant, error)
	GetProductSegments(ctx context.Context, productIDs []string) (map[string][]uuid.UUID, error)
}

// Service serves variant and segment lookups with a read-through Redis cache.
// Segment membership changes rarely, so cached entries are served until the
// TTL expires.
type Service struct {
	Q     Querier
	Cache *Cache
}

// Variant loads a sellable variant, preferring the cache.
func (s *Service) Variant(ctx context.Context, id pgtype.UUID) (store.Variant, error) {
	if s == nil || s.Q == nil {
		return store.Variant{}, errors.New("catalog: service not configured")
	}
	key := variantCacheKey(store.UUIDString(id))
	var cached store.Variant
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	v, err := s.Q.GetVariant(ctx, id)
	if err != nil {
		return store.Variant{}, err
	}
	_ = s.Cache.SetJSON(ctx, key, v)
	return v, nil
}

// GetProductSegments returns segment memberships for the given products,
// reading through the cache per product and batching the misses into a single
// query.
func (s *Service) GetProductSegments(ctx context.Context, productIDs []string) (map[string][]uuid.UUID, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("catalog: service not configured")
	}
	result := make(map[string][]uuid.UUID, len(productIDs))
	var misses []string
	for _, id := range productIDs {
		if id == "" {
			continue
		}
		var cached []uuid.UUID
		if ok, err := s.Cache.GetJSON(ctx, segmentsCacheKey(id), &cached); err == nil && ok {
			result[id] = cached
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return result, nil
	}
	fresh, err := s.Q.GetProductSegments(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("catalog: product segments: %w", err)
	}
	for _, id := range misses {
		segments := fresh[id]
		if segments == nil {
			segments = []uuid.UUID{}
		}
		result[id] = segments
		_ = s.Cache.SetJSON(ctx, segmentsCacheKey(id), segments)
	}
	return result, nil
}

func variantCacheKey(id string) string {
	return "catalog:variant:" + id
}

func segmentsCacheKey(productID string) string {
	return "catalog:segments:" + productID
}
