package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/service"
)

type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,min=1"`
	Quantity  *int  `json:"quantity" validate:"omitempty,min=1,max=999"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=999"`
}

// CartResponse деньги отдаются числами, а не строками decimal
type CartResponse struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	Status    models.CartStatus  `json:"status"`
	Total     float64            `json:"total"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Items     []CartItemResponse `json:"items"`
}

type CartItemResponse struct {
	ID                   int64   `json:"id"`
	ExternalProductID    int64   `json:"external_product_id"`
	SKU                  string  `json:"sku"`
	Title                string  `json:"title"`
	Thumbnail            string  `json:"thumbnail"`
	UnitPrice            float64 `json:"unit_price"`
	Quantity             int     `json:"quantity"`
	MinimumOrderQuantity int     `json:"minimum_order_quantity"`
	Subtotal             float64 `json:"subtotal"`
}

func NewCartResponse(cart *models.Cart) CartResponse {
	resp := CartResponse{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Status:    cart.Status,
		Total:     cart.Total.InexactFloat64(),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
		Items:     make([]CartItemResponse, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		resp.Items = append(resp.Items, CartItemResponse{
			ID:                   item.ID,
			ExternalProductID:    item.ExternalProductID,
			SKU:                  item.SKU,
			Title:                item.Title,
			Thumbnail:            item.Thumbnail,
			UnitPrice:            item.UnitPrice.InexactFloat64(),
			Quantity:             item.Quantity,
			MinimumOrderQuantity: item.MinimumOrderQuantity,
			Subtotal:             item.Subtotal.InexactFloat64(),
		})
	}
	return resp
}

// GetCartHandler GET /api/cart
func GetCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}

		cart, err := cartService.GetOrCreate(r.Context(), userID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeOK(logger, w, http.StatusOK, "Cart retrieved", NewCartResponse(cart))
	}
}

// AddItemHandler POST /api/cart/items
func AddItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}

		var req AddItemRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(logger, w, "invalid request body", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(logger, w, err)
			return
		}
		quantity := 1
		if req.Quantity != nil {
			quantity = *req.Quantity
		}

		cart, err := cartService.AddItem(r.Context(), userID, req.ProductID, quantity)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeOK(logger, w, http.StatusCreated, "Item added to cart", NewCartResponse(cart))
	}
}

// UpdateItemHandler PUT /api/cart/items/{productId}
func UpdateItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		productID, ok := productIDParam(logger, w, r)
		if !ok {
			return
		}

		var req UpdateItemRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(logger, w, "invalid request body", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(logger, w, err)
			return
		}

		cart, err := cartService.UpdateItemQuantity(r.Context(), userID, productID, req.Quantity)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeOK(logger, w, http.StatusOK, "Cart item updated", NewCartResponse(cart))
	}
}

// RemoveItemHandler DELETE /api/cart/items/{productId}
func RemoveItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		productID, ok := productIDParam(logger, w, r)
		if !ok {
			return
		}

		cart, err := cartService.RemoveItem(r.Context(), userID, productID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeOK(logger, w, http.StatusOK, "Item removed from cart", NewCartResponse(cart))
	}
}

// CheckoutHandler POST /api/cart/checkout
func CheckoutHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckoutHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}

		cart, err := cartService.Checkout(r.Context(), userID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		logger.Info("checkout completed", slog.Int64("userID", userID), slog.Int64("cartID", cart.ID))
		writeOK(logger, w, http.StatusOK, "Checkout completed", NewCartResponse(cart))
	}
}

func productIDParam(log *slog.Logger, w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id < 1 {
		badRequest(log, w, "invalid product id", err)
		return 0, false
	}
	return id, true
}
