package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linemk/cart-shop/internal/app"
	"github.com/linemk/cart-shop/internal/config"
	"github.com/linemk/cart-shop/internal/lib/logger"
	pkgerrors "github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// объект приложения с конфигом и подключениями к БД и redis
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", logger.Err(err))
		panic(pkgerrors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	services := application.BuildServices()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// первичное наполнение зеркала товаров, ошибка не фатальна: корзина работает через внешний каталог
	if cfg.Catalog.SyncOnStart {
		if _, err := services.CatalogSync.SyncOnce(ctx); err != nil {
			log.Error("initial catalog sync failed", logger.Err(err))
		}
	}
	if cfg.Catalog.SyncInterval > 0 {
		go services.CatalogSync.RunLoop(ctx, cfg.Catalog.SyncInterval)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      app.NewRouter(log, cfg.JWT.Secret, services),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", logger.Err(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", logger.Err(err))
	}
	log.Info("server gracefully stopped")
}
