package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/linemk/cart-shop/internal/catalog"
	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// ProductData авторитетные для корзины данные товара
type ProductData struct {
	ExternalID           int64
	SKU                  string
	Title                string
	Thumbnail            string
	Price                decimal.Decimal
	Stock                int
	MinimumOrderQuantity int
	// FromMirror - остаток взят из локального зеркала и будет списан при оформлении
	FromMirror bool
}

// ProductSource один источник данных о товаре. (nil, nil) означает "у источника нет товара"
type ProductSource interface {
	Lookup(ctx context.Context, externalID int64) (*ProductData, error)
}

// ProductDataResolver отдаёт данные о товаре из первого источника, который его знает
type ProductDataResolver interface {
	Resolve(ctx context.Context, externalID int64) (*ProductData, error)
}

type productResolver struct {
	sources []ProductSource
}

// NewProductResolver источники опрашиваются в переданном порядке
func NewProductResolver(sources ...ProductSource) ProductDataResolver {
	return &productResolver{sources: sources}
}

func (r *productResolver) Resolve(ctx context.Context, externalID int64) (*ProductData, error) {
	for _, src := range r.sources {
		data, err := src.Lookup(ctx, externalID)
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}
	}
	return nil, apperr.ProductNotFound(externalID)
}

type mirrorSource struct {
	products storage.ProductStorage
}

// NewMirrorSource локальное зеркало каталога
func NewMirrorSource(products storage.ProductStorage) ProductSource {
	return &mirrorSource{products: products}
}

func (s *mirrorSource) Lookup(ctx context.Context, externalID int64) (*ProductData, error) {
	p, err := s.products.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("service.mirrorSource.Lookup: %w", err)
	}
	return &ProductData{
		ExternalID:           p.ExternalID,
		SKU:                  p.SKU,
		Title:                p.Title,
		Thumbnail:            p.Thumbnail,
		Price:                p.Price,
		Stock:                p.Stock,
		MinimumOrderQuantity: max(p.MinimumOrderQuantity, 1),
		FromMirror:           true,
	}, nil
}

type gatewaySource struct {
	gateway catalog.Gateway
}

// NewGatewaySource внешний каталог. Ошибки ProductNotFound и ExternalAPI пробрасываются как есть
func NewGatewaySource(gateway catalog.Gateway) ProductSource {
	return &gatewaySource{gateway: gateway}
}

func (s *gatewaySource) Lookup(ctx context.Context, externalID int64) (*ProductData, error) {
	p, err := s.gateway.GetByID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return &ProductData{
		ExternalID:           p.ID,
		SKU:                  p.SKU,
		Title:                p.Title,
		Thumbnail:            p.Thumbnail,
		Price:                p.Price,
		Stock:                p.Stock,
		MinimumOrderQuantity: max(p.MinimumOrderQuantity, 1),
	}, nil
}
