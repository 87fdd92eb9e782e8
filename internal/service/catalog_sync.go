package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/cart-shop/internal/catalog"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/linemk/cart-shop/internal/storage"
)

type SyncResult struct {
	Inserted int
	Updated  int
}

// CatalogSync наполняет и обновляет зеркало товаров из внешнего каталога.
// Повторный запуск безопасен
type CatalogSync struct {
	log      *slog.Logger
	db       *sql.DB
	gateway  catalog.Gateway
	products storage.ProductStorage
}

func NewCatalogSync(log *slog.Logger, db *sql.DB, gateway catalog.Gateway, products storage.ProductStorage) *CatalogSync {
	return &CatalogSync{log: log, db: db, gateway: gateway, products: products}
}

// SyncOnce сбрасывает снимок каталога и одним запросом upsert-ит все товары в одной транзакции.
// У существующих строк stock не меняется
func (s *CatalogSync) SyncOnce(ctx context.Context) (*SyncResult, error) {
	const op = "service.CatalogSync.SyncOnce"
	log := s.log.With(slog.String("op", op))

	if err := s.gateway.Invalidate(ctx); err != nil {
		log.Warn("failed to invalidate catalog snapshot", logger.Err(err))
	}

	all, err := s.gateway.ListAll(ctx, catalog.SortAsc, "")
	if err != nil {
		log.Error("failed to fetch catalog", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to fetch catalog: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	res := &SyncResult{}
	for _, ext := range all.Products {
		inserted, err := s.products.UpsertProductTx(ctx, tx, models.ProductFromExternal(ext))
		if err != nil {
			rollback(log, tx)
			log.Error("failed to upsert product", slog.Int64("productID", ext.ID), logger.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	log.Info("catalog mirror synced", slog.Int("inserted", res.Inserted), slog.Int("updated", res.Updated))
	return res, nil
}

// RunLoop повторяет SyncOnce с заданным интервалом до отмены контекста. Ошибки только логируются
func (s *CatalogSync) RunLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("catalog sync loop stopped")
			return
		case <-ticker.C:
			if _, err := s.SyncOnce(ctx); err != nil {
				s.log.Error("catalog sync failed", logger.Err(err))
			}
		}
	}
}
