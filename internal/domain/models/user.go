package models

import "time"

// User представляет зарегистрированного пользователя магазина
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PassHash  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
