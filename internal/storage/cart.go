package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// CartStorage описывает методы для работы с корзинами и их позициями.
// Методы с суффиксом Tx выполняются в переданной транзакции
type CartStorage interface {
	// GetActiveCart возвращает активную корзину пользователя без позиций
	GetActiveCart(ctx context.Context, userID int64) (*models.Cart, error)
	GetCartByID(ctx context.Context, id int64) (*models.Cart, error)
	// CreateCart создаёт активную корзину. Если параллельный запрос успел раньше, возвращает его корзину
	CreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	// LockActiveCartTx берёт эксклюзивную блокировку строки активной корзины (SELECT ... FOR UPDATE)
	LockActiveCartTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Cart, error)
	// LockCartTx блокирует корзину по id, статус не фильтруется
	LockCartTx(ctx context.Context, tx *sql.Tx, cartID int64) (*models.Cart, error)
	UpdateTotalTx(ctx context.Context, tx *sql.Tx, cartID int64, total decimal.Decimal) error
	CloseCartTx(ctx context.Context, tx *sql.Tx, cartID int64) error

	ListItems(ctx context.Context, cartID int64) ([]*models.CartItem, error)
	ListItemsTx(ctx context.Context, tx *sql.Tx, cartID int64) ([]*models.CartItem, error)
	GetItemTx(ctx context.Context, tx *sql.Tx, cartID, externalProductID int64) (*models.CartItem, error)
	InsertItemTx(ctx context.Context, tx *sql.Tx, item *models.CartItem) (*models.CartItem, error)
	UpdateItemQuantityTx(ctx context.Context, tx *sql.Tx, item *models.CartItem) error
	DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID int64) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт новый репозиторий корзин.
func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

const (
	cartColumns = "id, user_id, status, total, created_at, updated_at"
	itemColumns = "id, cart_id, external_product_id, sku, title, thumbnail, unit_price, quantity, minimum_order_quantity, subtotal, created_at, updated_at"
)

func (r *cartRepository) GetActiveCart(ctx context.Context, userID int64) (*models.Cart, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+cartColumns+" FROM carts WHERE user_id = $1 AND status = 'active'", userID)
	return scanCart(row)
}

func (r *cartRepository) GetCartByID(ctx context.Context, id int64) (*models.Cart, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+cartColumns+" FROM carts WHERE id = $1", id)
	return scanCart(row)
}

func (r *cartRepository) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	// частичный уникальный индекс carts_one_active_per_user не даст создать вторую активную корзину
	query := `INSERT INTO carts (user_id, status, total) VALUES ($1, 'active', 0)
	          ON CONFLICT (user_id) WHERE status = 'active' DO NOTHING
	          RETURNING ` + cartColumns
	cart, err := scanCart(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, ErrCartNotFound) {
		return r.GetActiveCart(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) LockActiveCartTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Cart, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+cartColumns+" FROM carts WHERE user_id = $1 AND status = 'active' FOR UPDATE", userID)
	cart, err := scanCart(row)
	if hasPQCode(err, pqLockNotAvailable) {
		return nil, fmt.Errorf("%w: %v", ErrResourceLocked, err)
	}
	return cart, err
}

func (r *cartRepository) LockCartTx(ctx context.Context, tx *sql.Tx, cartID int64) (*models.Cart, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+cartColumns+" FROM carts WHERE id = $1 FOR UPDATE", cartID)
	cart, err := scanCart(row)
	if hasPQCode(err, pqLockNotAvailable) {
		return nil, fmt.Errorf("%w: %v", ErrResourceLocked, err)
	}
	return cart, err
}

func (r *cartRepository) UpdateTotalTx(ctx context.Context, tx *sql.Tx, cartID int64, total decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, "UPDATE carts SET total = $1, updated_at = NOW() WHERE id = $2", total, cartID)
	if err != nil {
		return fmt.Errorf("failed to update cart total: %w", err)
	}
	return expectAffected(res, ErrCartNotFound)
}

// CloseCartTx переводит корзину в closed. Уже закрытую корзину повторно не трогает
func (r *cartRepository) CloseCartTx(ctx context.Context, tx *sql.Tx, cartID int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE carts SET status = 'closed', updated_at = NOW() WHERE id = $1 AND status = 'active'", cartID)
	if err != nil {
		return fmt.Errorf("failed to close cart: %w", err)
	}
	return expectAffected(res, ErrCartNotFound)
}

func (r *cartRepository) ListItems(ctx context.Context, cartID int64) ([]*models.CartItem, error) {
	return listItems(ctx, r.db, cartID)
}

func (r *cartRepository) ListItemsTx(ctx context.Context, tx *sql.Tx, cartID int64) ([]*models.CartItem, error) {
	return listItems(ctx, tx, cartID)
}

func (r *cartRepository) GetItemTx(ctx context.Context, tx *sql.Tx, cartID, externalProductID int64) (*models.CartItem, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM cart_items WHERE cart_id = $1 AND external_product_id = $2",
		cartID, externalProductID,
	)
	item := &models.CartItem{}
	if err := scanItem(row, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *cartRepository) InsertItemTx(ctx context.Context, tx *sql.Tx, item *models.CartItem) (*models.CartItem, error) {
	query := `INSERT INTO cart_items (cart_id, external_product_id, sku, title, thumbnail, unit_price, quantity, minimum_order_quantity, subtotal)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query,
		item.CartID, item.ExternalProductID, item.SKU, item.Title, item.Thumbnail,
		item.UnitPrice, item.Quantity, item.MinimumOrderQuantity, item.Subtotal,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cart item: %w", err)
	}
	return item, nil
}

func (r *cartRepository) UpdateItemQuantityTx(ctx context.Context, tx *sql.Tx, item *models.CartItem) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, subtotal = $2, updated_at = NOW() WHERE id = $3",
		item.Quantity, item.Subtotal, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return expectAffected(res, ErrCartItemNotFound)
}

func (r *cartRepository) DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID int64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", itemID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return expectAffected(res, ErrCartItemNotFound)
}

func listItems(ctx context.Context, q queryer, cartID int64) ([]*models.CartItem, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+itemColumns+" FROM cart_items WHERE cart_id = $1 ORDER BY id", cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.CartItem, 0)
	for rows.Next() {
		item := &models.CartItem{}
		if err := scanItem(rows, item); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner, item *models.CartItem) error {
	return s.Scan(
		&item.ID, &item.CartID, &item.ExternalProductID, &item.SKU, &item.Title, &item.Thumbnail,
		&item.UnitPrice, &item.Quantity, &item.MinimumOrderQuantity, &item.Subtotal,
		&item.CreatedAt, &item.UpdatedAt,
	)
}

func scanCart(row *sql.Row) (*models.Cart, error) {
	cart := &models.Cart{}
	if err := row.Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.Total, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return cart, nil
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
