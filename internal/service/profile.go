package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/linemk/cart-shop/internal/storage"
)

type ProfileService interface {
	Get(ctx context.Context, userID int64) (*models.Profile, error)
	// Update меняет только переданные поля, профиль создаётся при первом обращении
	Update(ctx context.Context, profile *models.Profile) (*models.Profile, error)
}

type profileService struct {
	log      *slog.Logger
	profiles storage.ProfileStorage
}

func NewProfileService(log *slog.Logger, profiles storage.ProfileStorage) ProfileService {
	return &profileService{log: log, profiles: profiles}
}

func (s *profileService) Get(ctx context.Context, userID int64) (*models.Profile, error) {
	const op = "service.ProfileService.Get"

	profile, err := s.profiles.GetOrCreateProfile(ctx, userID)
	if err != nil {
		s.log.Error("failed to get profile", slog.String("op", op), slog.Int64("userID", userID), logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profile, nil
}

func (s *profileService) Update(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	const op = "service.ProfileService.Update"
	log := s.log.With(slog.String("op", op), slog.Int64("userID", profile.UserID))

	if _, err := s.profiles.GetOrCreateProfile(ctx, profile.UserID); err != nil {
		log.Error("failed to ensure profile", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to ensure profile: %w", op, err)
	}

	updated, err := s.profiles.UpdateProfile(ctx, profile)
	if err != nil {
		log.Error("failed to update profile", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to update profile: %w", op, err)
	}

	log.Info("profile updated")
	return updated, nil
}
