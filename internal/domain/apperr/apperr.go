// Package apperr содержит закрытый набор доменных ошибок корзины и каталога.
// Каждая ошибка несёт вид (Kind) и данные, нужные транспортному слою
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindCartClosed Kind = iota + 1
	KindCartNotFound
	KindInsufficientStock
	KindProductNotFound
	KindUserNotFound
	KindExternalAPI
)

// Code стабильный машиночитаемый код ошибки
func (k Kind) Code() string {
	switch k {
	case KindCartClosed:
		return "CART_CLOSED"
	case KindCartNotFound:
		return "CART_NOT_FOUND"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindProductNotFound:
		return "PRODUCT_NOT_FOUND"
	case KindUserNotFound:
		return "USER_NOT_FOUND"
	case KindExternalAPI:
		return "EXTERNAL_API_ERROR"
	default:
		return "UNKNOWN"
	}
}

func (k Kind) String() string {
	return k.Code()
}

// Error доменная ошибка. Какие поля заполнены, зависит от Kind
type Error struct {
	Kind      Kind
	Requested int
	Available int
	ProductID int64
	UserID    int64
	Detail    string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCartClosed:
		return "cart is closed and can no longer be modified"
	case KindCartNotFound:
		return "no active cart found for this user"
	case KindInsufficientStock:
		return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
	case KindProductNotFound:
		return fmt.Sprintf("product %d not found", e.ProductID)
	case KindUserNotFound:
		return fmt.Sprintf("user %d not found", e.UserID)
	case KindExternalAPI:
		if e.Detail == "" {
			return "external product api error"
		}
		return "external product api error: " + e.Detail
	default:
		return "unknown domain error"
	}
}

// Code см. Kind.Code
func (e *Error) Code() string {
	return e.Kind.Code()
}

func CartClosed() *Error {
	return &Error{Kind: KindCartClosed}
}

func CartNotFound() *Error {
	return &Error{Kind: KindCartNotFound}
}

// InsufficientStock requested - итоговое запрошенное количество, а не приращение
func InsufficientStock(requested, available int) *Error {
	return &Error{Kind: KindInsufficientStock, Requested: requested, Available: available}
}

func ProductNotFound(id int64) *Error {
	return &Error{Kind: KindProductNotFound, ProductID: id}
}

func UserNotFound(id int64) *Error {
	return &Error{Kind: KindUserNotFound, UserID: id}
}

func ExternalAPI(detail string) *Error {
	return &Error{Kind: KindExternalAPI, Detail: detail}
}

// As достаёт доменную ошибку из цепочки
func As(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// IsKind проверяет, что в цепочке есть доменная ошибка указанного вида
func IsKind(err error, kind Kind) bool {
	domainErr, ok := As(err)
	return ok && domainErr.Kind == kind
}
