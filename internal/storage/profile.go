package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/cart-shop/internal/domain/models"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileStorage interface {
	// GetOrCreateProfile возвращает профиль пользователя, создавая пустой при первом обращении
	GetOrCreateProfile(ctx context.Context, userID int64) (*models.Profile, error)
	// UpdateProfile меняет только переданные (не nil) поля
	UpdateProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error)
}

type profileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) ProfileStorage {
	return &profileRepository{db: db}
}

const profileColumns = "id, user_id, address, city, country, postal_code, card_holder, card_last4, card_brand, card_expiry, created_at, updated_at"

func (r *profileRepository) GetOrCreateProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	if _, err := r.db.ExecContext(ctx, "INSERT INTO user_profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	row := r.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM user_profiles WHERE user_id = $1", userID)
	return scanProfile(row)
}

func (r *profileRepository) UpdateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query := `UPDATE user_profiles SET
	              address = COALESCE($1, address),
	              city = COALESCE($2, city),
	              country = COALESCE($3, country),
	              postal_code = COALESCE($4, postal_code),
	              card_holder = COALESCE($5, card_holder),
	              card_last4 = COALESCE($6, card_last4),
	              card_brand = COALESCE($7, card_brand),
	              card_expiry = COALESCE($8, card_expiry),
	              updated_at = NOW()
	          WHERE user_id = $9
	          RETURNING ` + profileColumns
	row := r.db.QueryRowContext(ctx, query,
		p.Address, p.City, p.Country, p.PostalCode,
		p.CardHolder, p.CardLast4, p.CardBrand, p.CardExpiry,
		p.UserID,
	)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Address, &p.City, &p.Country, &p.PostalCode,
		&p.CardHolder, &p.CardLast4, &p.CardBrand, &p.CardExpiry,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}
