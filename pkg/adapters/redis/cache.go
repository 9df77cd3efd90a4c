package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

func (s *Store) itemKey(key string) string {
	return s.prefix + "cache:" + key
}

// Store writes a batch of cached items in one pipeline. Items carry their
// own expiry; items already expired are deleted instead.
func (s *Store) Store(ctx context.Context, items []domain.CachedItem) error {
	if len(items) == 0 {
		return nil
	}
	now := s.now()
	pipe := s.client.Pipeline()
	for _, it := range items {
		key := s.itemKey(it.Key)
		if it.ExpireTime.IsZero() {
			data, err := json.Marshal(it)
			if err != nil {
				return fmt.Errorf("failed to marshal item %q: %w", it.Key, err)
			}
			pipe.Set(ctx, key, data, 0)
			continue
		}
		ttl := it.ExpireTime.Sub(now)
		if ttl <= 0 {
			pipe.Del(ctx, key)
			continue
		}
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("failed to marshal item %q: %w", it.Key, err)
		}
		pipe.Set(ctx, key, data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store items: %w", err)
	}
	return nil
}

// Retrieve returns a live item.
func (s *Store) Retrieve(ctx context.Context, key string) (domain.CachedItem, error) {
	data, err := s.client.Get(ctx, s.itemKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.CachedItem{}, domain.ErrCacheMiss
		}
		return domain.CachedItem{}, fmt.Errorf("failed to get item %q: %w", key, err)
	}
	var it domain.CachedItem
	if err := json.Unmarshal(data, &it); err != nil {
		return domain.CachedItem{}, fmt.Errorf("failed to unmarshal item %q: %w", key, err)
	}
	if !it.ExpireTime.IsZero() && !s.now().Before(it.ExpireTime) {
		return domain.CachedItem{}, domain.ErrCacheMiss
	}
	return it, nil
}
