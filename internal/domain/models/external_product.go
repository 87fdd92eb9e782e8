package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ExternalProduct снимок товара из внешнего API каталога. Не сохраняется в БД
type ExternalProduct struct {
	ID                   int64           `json:"id"`
	SKU                  string          `json:"sku"`
	Title                string          `json:"title"`
	Brand                string          `json:"brand"`
	Thumbnail            string          `json:"thumbnail"`
	Price                decimal.Decimal `json:"price"`
	DiscountPercentage   decimal.Decimal `json:"discount_percentage"`
	OriginalPrice        decimal.Decimal `json:"original_price"`
	Stock                int             `json:"stock"`
	Category             string          `json:"category"`
	Rating               float64         `json:"rating"`
	MinimumOrderQuantity int             `json:"minimum_order_quantity"`
	// Detail заполняется только при запросе одного товара
	Detail *ProductDetail `json:"detail,omitempty"`
}

// ProductDetail поля, которые отдаёт только детальный запрос
type ProductDetail struct {
	Description         string   `json:"description"`
	Images              []string `json:"images"`
	WarrantyInformation string   `json:"warranty_information"`
	ShippingInformation string   `json:"shipping_information"`
	ReturnPolicy        string   `json:"return_policy"`
	AvailabilityStatus  string   `json:"availability_status"`
	Barcode             string   `json:"barcode"`
	Reviews             []Review `json:"reviews"`
}

type Review struct {
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	Date         string `json:"date"`
	ReviewerName string `json:"reviewer_name"`
}

// OriginalPrice = price / (1 - discount/100), округление до 2 знаков.
// При скидке >= 100% делитель не положительный, возвращается price
func OriginalPrice(price, discountPercentage decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Sub(discountPercentage.Div(hundred))
	if !divisor.IsPositive() {
		return price
	}
	return price.Div(divisor).Round(2)
}
