package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/cart-shop/internal/domain/models"
	security "github.com/linemk/cart-shop/internal/jwt-new"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/linemk/cart-shop/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
}

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	tokenTTL time.Duration
	secret   string
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokenTTL time.Duration, secret string) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		tokenTTL: tokenTTL,
		secret:   secret,
	}
}

// Register создаёт пользователя. Пароль хэшируется bcrypt (соль добавляется автоматически)
func (a *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	const op = "service.AuthService.Register"
	log := a.log.With(slog.String("op", op), slog.String("email", email))

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash password", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := a.userRepo.CreateUser(ctx, &models.User{Name: name, Email: email, PassHash: passHash})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			log.Warn("email already registered")
		} else {
			log.Error("failed to create user", logger.Err(err))
		}
		return nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	return a.issue(log, op, user)
}

// Login проверяет пароль и выдаёт новый токен
func (a *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "service.AuthService.Login"
	log := a.log.With(slog.String("op", op), slog.String("email", email))

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return nil, ErrInvalidCredentials
		}
		log.Error("failed to get user", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Warn("invalid password")
		return nil, ErrInvalidCredentials
	}

	return a.issue(log, op, user)
}

func (a *AuthService) issue(log *slog.Logger, op string, user *models.User) (*AuthResult, error) {
	token, err := security.NewToken(user, a.tokenTTL, a.secret)
	if err != nil {
		log.Error("failed to generate token", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	log.Info("token issued", slog.Int64("userID", user.ID))
	return &AuthResult{Token: token, User: user}, nil
}
