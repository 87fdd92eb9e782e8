package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linemk/cart-shop/internal/domain/models"
)

var ErrCacheMiss = errors.New("cache miss")

// SnapshotCache хранит полный снимок каталога в пределах окна свежести.
// Возвращаемый срез общий для всех читателей и не должен изменяться
type SnapshotCache interface {
	Get(ctx context.Context) ([]*models.ExternalProduct, error)
	Set(ctx context.Context, products []*models.ExternalProduct) error
	Invalidate(ctx context.Context) error
}

// MemoryCache снимок в памяти процесса, один экземпляр на процесс
type MemoryCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	products  []*models.ExternalProduct
	expiresAt time.Time
	now       func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context) ([]*models.ExternalProduct, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.products == nil || !c.now().Before(c.expiresAt) {
		return nil, ErrCacheMiss
	}
	return c.products, nil
}

func (c *MemoryCache) Set(_ context.Context, products []*models.ExternalProduct) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products = products
	c.expiresAt = c.now().Add(c.ttl)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products = nil
	c.expiresAt = time.Time{}
	return nil
}
