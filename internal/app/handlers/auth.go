package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/cart-shop/internal/service"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterHandler POST /api/auth/register
func RegisterHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(logger, w, "invalid request body", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(logger, w, err)
			return
		}

		res, err := authService.Register(r.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			writeError(logger, w, err)
			return
		}

		writeOK(logger, w, http.StatusCreated, "User registered", res)
	}
}

// LoginHandler POST /api/auth/login
func LoginHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.LoginHandler"
		logger := log.With(slog.String("op", op))

		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(logger, w, "invalid request body", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(logger, w, err)
			return
		}

		res, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(logger, w, err)
			return
		}

		writeOK(logger, w, http.StatusOK, "Login successful", res)
	}
}
