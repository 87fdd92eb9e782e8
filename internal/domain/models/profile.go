package models

import "time"

// Profile адрес доставки и метаданные предпочитаемой карты (только последние 4 цифры)
type Profile struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Address    *string   `json:"address"`
	City       *string   `json:"city"`
	Country    *string   `json:"country"`
	PostalCode *string   `json:"postal_code"`
	CardHolder *string   `json:"card_holder"`
	CardLast4  *string   `json:"card_last4"`
	CardBrand  *string   `json:"card_brand"`
	CardExpiry *string   `json:"card_expiry"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
