package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/cart-shop/internal/app/handlers"
	"github.com/linemk/cart-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/cart-shop/internal/lib/logger/handlers/urllog"
)

// NewRouter маршруты API. Корзина и профиль доступны только с Bearer токеном
func NewRouter(log *slog.Logger, jwtSecret string, svc *Services) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/api/auth/register", handlers.RegisterHandler(log, svc.Auth))
	router.Post("/api/auth/login", handlers.LoginHandler(log, svc.Auth))

	router.Get("/api/products", handlers.ListProductsHandler(log, svc.Product))
	router.Get("/api/products/{id}", handlers.GetProductHandler(log, svc.Product))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(jwtSecret))

		r.Get("/api/cart", handlers.GetCartHandler(log, svc.Cart))
		r.Post("/api/cart/items", handlers.AddItemHandler(log, svc.Cart))
		r.Put("/api/cart/items/{productId}", handlers.UpdateItemHandler(log, svc.Cart))
		r.Delete("/api/cart/items/{productId}", handlers.RemoveItemHandler(log, svc.Cart))
		r.Post("/api/cart/checkout", handlers.CheckoutHandler(log, svc.Cart))

		r.Get("/api/profile", handlers.GetProfileHandler(log, svc.Profile))
		r.Put("/api/profile", handlers.UpdateProfileHandler(log, svc.Profile))
	})

	return router
}
