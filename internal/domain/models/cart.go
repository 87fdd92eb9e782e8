package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartStatus состояние корзины: active -> closed, обратного перехода нет
type CartStatus string

const (
	CartStatusActive CartStatus = "active"
	CartStatusClosed CartStatus = "closed"
)

// Cart представляет корзину пользователя вместе с позициями
type Cart struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Status    CartStatus      `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Items     []*CartItem     `json:"items"`
}

// IsClosed - закрытая корзина больше не изменяется
func (c *Cart) IsClosed() bool {
	return c.Status == CartStatusClosed
}

// RecalculateTotal пересчитывает сумму корзины как сумму subtotal всех позиций
func (c *Cart) RecalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal)
	}
	c.Total = total.Round(2)
	return c.Total
}

// CartItem позиция корзины. Поля товара копируются в момент добавления
type CartItem struct {
	ID                   int64           `json:"id"`
	CartID               int64           `json:"cart_id"`
	ExternalProductID    int64           `json:"external_product_id"`
	SKU                  string          `json:"sku"`
	Title                string          `json:"title"`
	Thumbnail            string          `json:"thumbnail"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	Quantity             int             `json:"quantity"`
	MinimumOrderQuantity int             `json:"minimum_order_quantity"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// SetQuantity меняет количество и пересчитывает subtotal
func (i *CartItem) SetQuantity(quantity int) {
	i.Quantity = quantity
	i.Subtotal = Subtotal(i.UnitPrice, quantity)
}

// Subtotal = round(unit_price * quantity, 2)
func Subtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}
