package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/service"
)

// UpdateProfileRequest поля, которых нет в запросе, не меняются
type UpdateProfileRequest struct {
	Address    *string `json:"address" validate:"omitempty,max=255"`
	City       *string `json:"city" validate:"omitempty,max=100"`
	Country    *string `json:"country" validate:"omitempty,max=100"`
	PostalCode *string `json:"postal_code" validate:"omitempty,max=20"`
	CardHolder *string `json:"card_holder" validate:"omitempty,max=100"`
	CardLast4  *string `json:"card_last4" validate:"omitempty,len=4,numeric"`
	CardBrand  *string `json:"card_brand" validate:"omitempty,oneof=visa mastercard amex diners other"`
	CardExpiry *string `json:"card_expiry" validate:"omitempty,card_expiry"`
}

// GetProfileHandler GET /api/profile
func GetProfileHandler(log *slog.Logger, profileService service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProfileHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}

		profile, err := profileService.Get(r.Context(), userID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeOK(logger, w, http.StatusOK, "Profile retrieved", profile)
	}
}

// UpdateProfileHandler PUT /api/profile
func UpdateProfileHandler(log *slog.Logger, profileService service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProfileHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}

		var req UpdateProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(logger, w, "invalid request body", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(logger, w, err)
			return
		}

		profile, err := profileService.Update(r.Context(), &models.Profile{
			UserID:     userID,
			Address:    req.Address,
			City:       req.City,
			Country:    req.Country,
			PostalCode: req.PostalCode,
			CardHolder: req.CardHolder,
			CardLast4:  req.CardLast4,
			CardBrand:  req.CardBrand,
			CardExpiry: req.CardExpiry,
		})
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeOK(logger, w, http.StatusOK, "Profile updated", profile)
	}
}
