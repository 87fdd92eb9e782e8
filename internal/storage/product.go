package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/linemk/cart-shop/internal/domain/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStorage описывает методы для работы с локальным зеркалом каталога.
type ProductStorage interface {
	GetByExternalID(ctx context.Context, externalID int64) (*models.Product, error)
	// GetStocks возвращает остатки зеркала по внешним id. Отсутствующих товаров в карте нет
	GetStocks(ctx context.Context, externalIDs []int64) (map[int64]int, error)
	LockByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID int64) (*models.Product, error)
	UpdateStockTx(ctx context.Context, tx *sql.Tx, externalID int64, stock int) error
	// UpsertProductTx вставляет новую строку с остатком каталога или обновляет поля каталога у существующей, не трогая stock
	UpsertProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) (inserted bool, err error)
	SetLockTimeoutTx(ctx context.Context, tx *sql.Tx, timeout time.Duration) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productColumns = "id, external_id, sku, title, brand, category, thumbnail, price, discount_percentage, original_price, stock, rating, minimum_order_quantity, created_at, updated_at"

func (r *productRepository) GetByExternalID(ctx context.Context, externalID int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE external_id = $1", externalID)
	return scanProduct(row)
}

func (r *productRepository) GetStocks(ctx context.Context, externalIDs []int64) (map[int64]int, error) {
	stocks := make(map[int64]int, len(externalIDs))
	if len(externalIDs) == 0 {
		return stocks, nil
	}

	rows, err := r.db.QueryContext(ctx, "SELECT external_id, stock FROM products WHERE external_id = ANY($1)", pq.Array(externalIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var stock int
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks[id] = stock
	}
	return stocks, rows.Err()
}

// LockByExternalIDTx блокирует строку товара до конца транзакции.
// При превышении lock_timeout возвращает ErrResourceLocked
func (r *productRepository) LockByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID int64) (*models.Product, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE external_id = $1 FOR UPDATE", externalID)
	product, err := scanProduct(row)
	if hasPQCode(err, pqLockNotAvailable) {
		return nil, fmt.Errorf("%w: %v", ErrResourceLocked, err)
	}
	return product, err
}

func (r *productRepository) UpdateStockTx(ctx context.Context, tx *sql.Tx, externalID int64, stock int) error {
	res, err := tx.ExecContext(ctx, "UPDATE products SET stock = $1, updated_at = NOW() WHERE external_id = $2", stock, externalID)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

func (r *productRepository) UpsertProductTx(ctx context.Context, tx *sql.Tx, p *models.Product) (bool, error) {
	// xmax = 0 только у только что вставленной строки
	query := `INSERT INTO products (external_id, sku, title, brand, category, thumbnail, price, discount_percentage, original_price, stock, rating, minimum_order_quantity)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          ON CONFLICT (external_id) DO UPDATE SET
	              sku = EXCLUDED.sku,
	              title = EXCLUDED.title,
	              brand = EXCLUDED.brand,
	              category = EXCLUDED.category,
	              thumbnail = EXCLUDED.thumbnail,
	              price = EXCLUDED.price,
	              discount_percentage = EXCLUDED.discount_percentage,
	              original_price = EXCLUDED.original_price,
	              rating = EXCLUDED.rating,
	              minimum_order_quantity = EXCLUDED.minimum_order_quantity,
	              updated_at = NOW()
	          RETURNING (xmax = 0)`
	var inserted bool
	err := tx.QueryRowContext(ctx, query,
		p.ExternalID, p.SKU, p.Title, p.Brand, p.Category, p.Thumbnail,
		p.Price, p.DiscountPercentage, p.OriginalPrice, p.Stock, p.Rating, p.MinimumOrderQuantity,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert product %d: %w", p.ExternalID, err)
	}
	return inserted, nil
}

// SetLockTimeoutTx ограничивает ожидание блокировок текущей транзакцией
func (r *productRepository) SetLockTimeoutTx(ctx context.Context, tx *sql.Tx, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return nil
}

func scanProduct(row *sql.Row) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.SKU, &p.Title, &p.Brand, &p.Category, &p.Thumbnail,
		&p.Price, &p.DiscountPercentage, &p.OriginalPrice, &p.Stock, &p.Rating, &p.MinimumOrderQuantity,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}
