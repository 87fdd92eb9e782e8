package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product локальная копия товара из внешнего каталога.
// Stock - единственный счётчик остатков, который меняется после синхронизации
type Product struct {
	ID                   int64           `json:"id"`
	ExternalID           int64           `json:"external_id"`
	SKU                  string          `json:"sku"`
	Title                string          `json:"title"`
	Brand                string          `json:"brand"`
	Category             string          `json:"category"`
	Thumbnail            string          `json:"thumbnail"`
	Price                decimal.Decimal `json:"price"`
	DiscountPercentage   decimal.Decimal `json:"discount_percentage"`
	OriginalPrice        decimal.Decimal `json:"original_price"`
	Stock                int             `json:"stock"`
	Rating               float64         `json:"rating"`
	MinimumOrderQuantity int             `json:"minimum_order_quantity"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// HasStock проверяет, хватает ли остатка
func (p *Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}

// DecrementStock списывает остаток, не опускаясь ниже нуля
func (p *Product) DecrementStock(quantity int) {
	p.Stock = max(0, p.Stock-quantity)
}

// ProductFromExternal строит строку зеркала из снимка внешнего каталога
func ProductFromExternal(ext *ExternalProduct) *Product {
	return &Product{
		ExternalID:           ext.ID,
		SKU:                  ext.SKU,
		Title:                ext.Title,
		Brand:                ext.Brand,
		Category:             ext.Category,
		Thumbnail:            ext.Thumbnail,
		Price:                ext.Price,
		DiscountPercentage:   ext.DiscountPercentage,
		OriginalPrice:        ext.OriginalPrice,
		Stock:                ext.Stock,
		Rating:               ext.Rating,
		MinimumOrderQuantity: ext.MinimumOrderQuantity,
	}
}
