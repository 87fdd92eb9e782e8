package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/linemk/cart-shop/internal/catalog"
	"github.com/linemk/cart-shop/internal/config"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/linemk/cart-shop/internal/lib/migrator"
	"github.com/linemk/cart-shop/internal/service"
	"github.com/linemk/cart-shop/internal/storage"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	// Redis nil, если кэш каталога хранится в памяти процесса
	Redis *redis.Client
}

// Services собранный слой бизнес-логики
type Services struct {
	Auth        service.AuthServiceInterface
	Cart        service.CartService
	Product     service.ProductService
	Profile     service.ProfileService
	CatalogSync *service.CatalogSync
}

// NewApp создаёт новый экземпляр App: подключение к БД и, если включено, к redis
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", migrator.QueryDSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		app.Redis = client
	}

	return app, nil
}

// Close закрывает соединения с БД и redis
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis", logger.Err(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("failed to close database", logger.Err(err))
	}
}

// CatalogGateway шлюз внешнего каталога с кэшем снимка в redis или в памяти
func (a *App) CatalogGateway() catalog.Gateway {
	var cache catalog.SnapshotCache
	if a.Redis != nil {
		cache = catalog.NewRedisCache(a.Redis, a.Config.Catalog.CacheTTL)
	} else {
		cache = catalog.NewMemoryCache(a.Config.Catalog.CacheTTL)
	}
	client := catalog.NewClient(a.Logger, a.Config.Catalog)
	return catalog.NewGateway(a.Logger, client, cache)
}

// BuildServices собирает репозитории и сервисы поверх одного шлюза каталога
func (a *App) BuildServices() *Services {
	userRepo := storage.NewUserRepository(a.DB)
	cartRepo := storage.NewCartRepository(a.DB)
	productRepo := storage.NewProductRepository(a.DB)
	profileRepo := storage.NewProfileRepository(a.DB)

	gateway := a.CatalogGateway()
	// сначала зеркало (там актуальный остаток), затем внешний каталог
	resolver := service.NewProductResolver(
		service.NewMirrorSource(productRepo),
		service.NewGatewaySource(gateway),
	)

	tokenTTL := time.Duration(a.Config.JWT.TokenTTL) * time.Minute

	return &Services{
		Auth: service.NewAuthService(a.Logger, userRepo, tokenTTL, a.Config.JWT.Secret),
		Cart: service.NewCartService(a.Logger, a.DB, userRepo, cartRepo, productRepo, resolver,
			a.Config.Checkout.LockTimeout),
		Product:     service.NewProductService(a.Logger, gateway, productRepo),
		Profile:     service.NewProfileService(a.Logger, profileRepo),
		CatalogSync: service.NewCatalogSync(a.Logger, a.DB, gateway, productRepo),
	}
}
