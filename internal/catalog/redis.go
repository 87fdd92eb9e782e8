package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/redis/go-redis/v9"
)

const snapshotKey = "catalog:products"

// RedisCache снимок каталога в redis, общий для всех процессов сервиса
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context) ([]*models.ExternalProduct, error) {
	data, err := r.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var products []*models.ExternalProduct
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("unmarshal catalog snapshot failed: %w", err)
	}
	return products, nil
}

func (r *RedisCache) Set(ctx context.Context, products []*models.ExternalProduct) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal catalog snapshot failed: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
