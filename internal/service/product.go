package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/linemk/cart-shop/internal/catalog"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/linemk/cart-shop/internal/storage"
)

type ProductListQuery struct {
	Page    int
	PerPage int
	Sort    catalog.SortDirection
	Search  string
}

type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

type ProductPage struct {
	Products []*models.ExternalProduct
	Meta     PageMeta
}

// ProductService просмотр каталога. Остаток подменяется значением из зеркала, если товар там есть
type ProductService interface {
	List(ctx context.Context, q ProductListQuery) (*ProductPage, error)
	Get(ctx context.Context, id int64) (*models.ExternalProduct, error)
}

type productService struct {
	log      *slog.Logger
	gateway  catalog.Gateway
	products storage.ProductStorage
}

func NewProductService(log *slog.Logger, gateway catalog.Gateway, products storage.ProductStorage) ProductService {
	return &productService{log: log, gateway: gateway, products: products}
}

// pageOffset смещение страницы, при переполнении упирается в math.MaxInt
func pageOffset(page, perPage int) int {
	if page <= 1 || perPage <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/perPage {
		return math.MaxInt
	}
	return (page - 1) * perPage
}

func (s *productService) List(ctx context.Context, q ProductListQuery) (*ProductPage, error) {
	const op = "service.ProductService.List"
	log := s.log.With(slog.String("op", op), slog.Int("page", q.Page), slog.Int("perPage", q.PerPage))

	res, err := s.gateway.ListProducts(ctx, catalog.ListQuery{
		Sort:   q.Sort,
		Search: q.Search,
		Limit:  q.PerPage,
		Skip:   pageOffset(q.Page, q.PerPage),
	})
	if err != nil {
		log.Warn("failed to list catalog", logger.Err(err))
		return nil, err
	}

	ids := make([]int64, 0, len(res.Products))
	for _, p := range res.Products {
		ids = append(ids, p.ID)
	}
	stocks, err := s.products.GetStocks(ctx, ids)
	if err != nil {
		log.Error("failed to load mirror stocks", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to load mirror stocks: %w", op, err)
	}

	// снимок в кэше общий, поэтому остаток подменяется в копиях
	products := make([]*models.ExternalProduct, 0, len(res.Products))
	for _, p := range res.Products {
		cp := *p
		if stock, ok := stocks[p.ID]; ok {
			cp.Stock = stock
		}
		products = append(products, &cp)
	}

	lastPage := 1
	if q.PerPage > 0 {
		lastPage = max((res.Total+q.PerPage-1)/q.PerPage, 1)
	}

	return &ProductPage{
		Products: products,
		Meta: PageMeta{
			CurrentPage: q.Page,
			PerPage:     q.PerPage,
			Total:       res.Total,
			LastPage:    lastPage,
		},
	}, nil
}

func (s *productService) Get(ctx context.Context, id int64) (*models.ExternalProduct, error) {
	const op = "service.ProductService.Get"
	log := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	p, err := s.gateway.GetByID(ctx, id)
	if err != nil {
		log.Warn("failed to get product", logger.Err(err))
		return nil, err
	}

	cp := *p
	local, err := s.products.GetByExternalID(ctx, id)
	switch {
	case err == nil:
		cp.Stock = local.Stock
	case errors.Is(err, storage.ErrProductNotFound):
	default:
		log.Error("failed to load mirror row", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to load mirror row: %w", op, err)
	}
	return &cp, nil
}
