package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"golang.org/x/sync/singleflight"
)

// snapshotFetchTimeout верхняя граница общей загрузки каталога
const snapshotFetchTimeout = 30 * time.Second

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection всё, кроме desc (без учёта регистра), трактуется как asc
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(s, string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

type ListQuery struct {
	Sort   SortDirection
	Search string
	Limit  int
	Skip   int
}

type ListResult struct {
	Products []*models.ExternalProduct
	// Total число товаров после фильтра, до пагинации
	Total int
}

// Gateway чтение внешнего каталога. Остатки никогда не меняет
type Gateway interface {
	ListAll(ctx context.Context, sort SortDirection, search string) (*ListResult, error)
	ListProducts(ctx context.Context, q ListQuery) (*ListResult, error)
	GetByID(ctx context.Context, id int64) (*models.ExternalProduct, error)
	Invalidate(ctx context.Context) error
}

// Upstream источник данных каталога, реализуется Client
type Upstream interface {
	FetchAll(ctx context.Context) ([]*models.ExternalProduct, error)
	FetchByID(ctx context.Context, id int64) (*models.ExternalProduct, error)
}

type gateway struct {
	log      *slog.Logger
	upstream Upstream
	cache    SnapshotCache
	group    singleflight.Group
}

func NewGateway(log *slog.Logger, upstream Upstream, cache SnapshotCache) Gateway {
	return &gateway{
		log:      log,
		upstream: upstream,
		cache:    cache,
	}
}

// ListAll отфильтрованный и отсортированный по цене каталог целиком
func (g *gateway) ListAll(ctx context.Context, dir SortDirection, search string) (*ListResult, error) {
	all, err := g.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	filtered := filter(all, search)
	sortByPrice(filtered, dir)

	return &ListResult{Products: filtered, Total: len(filtered)}, nil
}

// ListProducts страница каталога. Пагинация выполняется в памяти поверх ListAll
func (g *gateway) ListProducts(ctx context.Context, q ListQuery) (*ListResult, error) {
	res, err := g.ListAll(ctx, q.Sort, q.Search)
	if err != nil {
		return nil, err
	}

	start := min(max(q.Skip, 0), len(res.Products))
	end := len(res.Products)
	if q.Limit > 0 {
		end = min(start+q.Limit, end)
	}
	res.Products = res.Products[start:end]
	return res, nil
}

// GetByID сначала смотрит в снимок. Детальный запрос выполняется всегда,
// при его сбое (кроме 404) возвращается товар из снимка
func (g *gateway) GetByID(ctx context.Context, id int64) (*models.ExternalProduct, error) {
	const op = "catalog.Gateway.GetByID"
	log := g.log.With(slog.String("op", op), slog.Int64("product_id", id))

	var cached *models.ExternalProduct
	all, err := g.snapshot(ctx)
	if err != nil {
		log.Warn("catalog snapshot unavailable, fetching detail directly", logger.Err(err))
	} else {
		for _, p := range all {
			if p.ID == id {
				cached = p
				break
			}
		}
	}

	product, err := g.upstream.FetchByID(ctx, id)
	if err == nil {
		return product, nil
	}
	if cached != nil && !apperr.IsKind(err, apperr.KindProductNotFound) {
		log.Warn("detail fetch failed, using cached snapshot", logger.Err(err))
		return cached, nil
	}
	return nil, err
}

func (g *gateway) Invalidate(ctx context.Context) error {
	return g.cache.Invalidate(ctx)
}

// snapshot отдаёт полный каталог из кэша. Одновременные промахи схлопываются в один запрос
func (g *gateway) snapshot(ctx context.Context) ([]*models.ExternalProduct, error) {
	const op = "catalog.Gateway.snapshot"
	log := g.log.With(slog.String("op", op))

	products, err := g.cache.Get(ctx)
	if err == nil {
		return products, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn("catalog cache get failed", logger.Err(err))
	}

	// загрузка общая для всех присоединившихся, поэтому не зависит от отмены первого вызывающего
	ch := g.group.DoChan(snapshotKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotFetchTimeout)
		defer cancel()

		products, err := g.upstream.FetchAll(fetchCtx)
		if err != nil {
			return nil, err
		}
		if err := g.cache.Set(fetchCtx, products); err != nil {
			log.Warn("catalog cache set failed", logger.Err(err))
		}
		log.Debug("catalog snapshot refreshed", slog.Int("products", len(products)))
		return products, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*models.ExternalProduct), nil
	}
}

func filter(all []*models.ExternalProduct, search string) []*models.ExternalProduct {
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]*models.ExternalProduct, 0, len(all))
	for _, p := range all {
		if term == "" ||
			strings.Contains(strings.ToLower(p.Title), term) ||
			strings.Contains(strings.ToLower(p.Brand), term) {
			out = append(out, p)
		}
	}
	return out
}

// sortByPrice стабильная сортировка, равные цены сохраняют исходный порядок
func sortByPrice(products []*models.ExternalProduct, dir SortDirection) {
	sort.SliceStable(products, func(i, j int) bool {
		if dir == SortDesc {
			return products[i].Price.GreaterThan(products[j].Price)
		}
		return products[i].Price.LessThan(products[j].Price)
	})
}
