package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/linemk/cart-shop/internal/app"
	"github.com/linemk/cart-shop/internal/config"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/pkg/errors"
)

// catalog-sync одноразово наполняет или обновляет зеркало товаров из внешнего каталога
func main() {
	cfg := config.MustLoad()

	log := logger.SetupLogger(cfg.Env)
	log.Info("starting catalog sync", slog.String("env", cfg.Env), slog.String("source", cfg.Catalog.BaseURL))

	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", logger.Err(err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := application.BuildServices().CatalogSync.SyncOnce(ctx)
	if err != nil {
		log.Error("catalog sync failed", logger.Err(err))
		application.Close()
		os.Exit(1)
	}

	log.Info("catalog sync finished", slog.Int("inserted", res.Inserted), slog.Int("updated", res.Updated))
}
