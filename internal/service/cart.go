package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/linemk/cart-shop/internal/storage"
)

// CartService операции над активной корзиной пользователя.
// Доменные ошибки (apperr) возвращаются без обёртки
type CartService interface {
	GetOrCreate(ctx context.Context, userID int64) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error)
	Checkout(ctx context.Context, userID int64) (*models.Cart, error)
}

type cartService struct {
	log         *slog.Logger
	db          *sql.DB
	users       storage.UserStorage
	carts       storage.CartStorage
	products    storage.ProductStorage
	resolver    ProductDataResolver
	lockTimeout time.Duration
}

func NewCartService(
	log *slog.Logger,
	db *sql.DB,
	users storage.UserStorage,
	carts storage.CartStorage,
	products storage.ProductStorage,
	resolver ProductDataResolver,
	lockTimeout time.Duration,
) CartService {
	return &cartService{
		log:         log,
		db:          db,
		users:       users,
		carts:       carts,
		products:    products,
		resolver:    resolver,
		lockTimeout: lockTimeout,
	}
}

// GetOrCreate возвращает активную корзину, создавая пустую при отсутствии
func (s *cartService) GetOrCreate(ctx context.Context, userID int64) (*models.Cart, error) {
	const op = "service.CartService.GetOrCreate"
	log := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return nil, apperr.UserNotFound(userID)
		}
		log.Error("failed to get user", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	cart, err := s.carts.GetActiveCart(ctx, userID)
	if errors.Is(err, storage.ErrCartNotFound) {
		log.Info("no active cart, creating new one")
		cart, err = s.carts.CreateCart(ctx, userID)
	}
	if err != nil {
		log.Error("failed to get or create cart", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to get or create cart: %w", op, err)
	}

	cart.Items, err = s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		log.Error("failed to list cart items", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to list cart items: %w", op, err)
	}
	return cart, nil
}

// AddItem добавляет товар или увеличивает количество существующей позиции.
// При первом добавлении количество поднимается до минимального заказа
func (s *cartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	const op = "service.CartService.AddItem"
	log := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Int64("productID", productID),
		slog.Int("quantity", quantity),
	)

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsClosed() {
		return nil, apperr.CartClosed()
	}

	product, err := s.resolver.Resolve(ctx, productID)
	if err != nil {
		log.Warn("failed to resolve product", logger.Err(err))
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	locked, err := s.lockMutableCart(ctx, tx, cart.ID)
	if err != nil {
		rollback(log, tx)
		return nil, s.classify(log, op, "failed to lock cart", err)
	}

	existing, err := s.carts.GetItemTx(ctx, tx, locked.ID, productID)
	if err != nil && !errors.Is(err, storage.ErrCartItemNotFound) {
		rollback(log, tx)
		log.Error("failed to get cart item", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to get cart item: %w", op, err)
	}

	current := 0
	if existing != nil {
		current = existing.Quantity
	}
	if current == 0 && quantity < product.MinimumOrderQuantity {
		log.Info("quantity raised to minimum order quantity", slog.Int("minimum", product.MinimumOrderQuantity))
		quantity = product.MinimumOrderQuantity
	}

	requested := current + quantity
	if product.Stock < requested {
		rollback(log, tx)
		log.Warn("insufficient stock", slog.Int("requested", requested), slog.Int("available", product.Stock))
		return nil, apperr.InsufficientStock(requested, product.Stock)
	}

	if existing != nil {
		existing.SetQuantity(requested)
		err = s.carts.UpdateItemQuantityTx(ctx, tx, existing)
	} else {
		_, err = s.carts.InsertItemTx(ctx, tx, &models.CartItem{
			CartID:               locked.ID,
			ExternalProductID:    productID,
			SKU:                  product.SKU,
			Title:                product.Title,
			Thumbnail:            product.Thumbnail,
			UnitPrice:            product.Price,
			Quantity:             quantity,
			MinimumOrderQuantity: product.MinimumOrderQuantity,
			Subtotal:             models.Subtotal(product.Price, quantity),
		})
	}
	if err != nil {
		rollback(log, tx)
		log.Error("failed to save cart item", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to save cart item: %w", op, err)
	}

	return s.finishMutation(ctx, log, op, tx, locked)
}

// UpdateItemQuantity задаёт абсолютное количество позиции, не ниже минимального заказа
func (s *cartService) UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	const op = "service.CartService.UpdateItemQuantity"
	log := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Int64("productID", productID),
		slog.Int("quantity", quantity),
	)

	cart, err := s.activeCart(ctx, log, op, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.resolver.Resolve(ctx, productID)
	if err != nil {
		log.Warn("failed to resolve product", logger.Err(err))
		return nil, err
	}

	// TODO: подтвердить у владельца продукта, что меньшее явно запрошенное количество должно молча подниматься до минимума
	if quantity < product.MinimumOrderQuantity {
		log.Info("quantity raised to minimum order quantity", slog.Int("minimum", product.MinimumOrderQuantity))
		quantity = product.MinimumOrderQuantity
	}
	if product.Stock < quantity {
		log.Warn("insufficient stock", slog.Int("requested", quantity), slog.Int("available", product.Stock))
		return nil, apperr.InsufficientStock(quantity, product.Stock)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	locked, err := s.lockMutableCart(ctx, tx, cart.ID)
	if err != nil {
		rollback(log, tx)
		return nil, s.classify(log, op, "failed to lock cart", err)
	}

	item, err := s.carts.GetItemTx(ctx, tx, locked.ID, productID)
	if err != nil {
		rollback(log, tx)
		if errors.Is(err, storage.ErrCartItemNotFound) {
			log.Warn("cart item not found")
			return nil, apperr.CartNotFound()
		}
		log.Error("failed to get cart item", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to get cart item: %w", op, err)
	}

	item.SetQuantity(quantity)
	if err := s.carts.UpdateItemQuantityTx(ctx, tx, item); err != nil {
		rollback(log, tx)
		log.Error("failed to update cart item", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to update cart item: %w", op, err)
	}

	return s.finishMutation(ctx, log, op, tx, locked)
}

// RemoveItem удаляет позицию. Отсутствующая позиция не ошибка, корзина возвращается без изменений
func (s *cartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	const op = "service.CartService.RemoveItem"
	log := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", productID))

	cart, err := s.activeCart(ctx, log, op, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	locked, err := s.lockMutableCart(ctx, tx, cart.ID)
	if err != nil {
		rollback(log, tx)
		return nil, s.classify(log, op, "failed to lock cart", err)
	}

	item, err := s.carts.GetItemTx(ctx, tx, locked.ID, productID)
	if errors.Is(err, storage.ErrCartItemNotFound) {
		rollback(log, tx)
		log.Info("cart item not found, nothing to remove")
		return s.loadCart(ctx, log, op, locked.ID)
	}
	if err != nil {
		rollback(log, tx)
		log.Error("failed to get cart item", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to get cart item: %w", op, err)
	}

	if err := s.carts.DeleteItemTx(ctx, tx, item.ID); err != nil {
		rollback(log, tx)
		log.Error("failed to delete cart item", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to delete cart item: %w", op, err)
	}

	return s.finishMutation(ctx, log, op, tx, locked)
}

// Checkout атомарно списывает остатки по всем позициям и закрывает корзину.
// Сначала блокируются и проверяются все товары (по возрастанию external_id), затем пишутся списания
func (s *cartService) Checkout(ctx context.Context, userID int64) (*models.Cart, error) {
	const op = "service.CartService.Checkout"
	log := s.log.With(slog.String("op", op), slog.Int64("userID", userID))
	log.Info("starting checkout transaction")

	// остатки товаров вне зеркала читаются до транзакции: под блокировками строк HTTP запросов нет
	pending, err := s.activeCart(ctx, log, op, userID)
	if err != nil {
		return nil, err
	}
	pendingItems, err := s.carts.ListItems(ctx, pending.ID)
	if err != nil {
		log.Error("failed to list cart items", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to list cart items: %w", op, err)
	}
	externalStock, err := s.externalStock(ctx, log, pendingItems)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if err := s.products.SetLockTimeoutTx(ctx, tx, s.lockTimeout); err != nil {
		rollback(log, tx)
		log.Error("failed to set lock timeout", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to set lock timeout: %w", op, err)
	}

	cart, err := s.carts.LockActiveCartTx(ctx, tx, userID)
	if err != nil {
		rollback(log, tx)
		if errors.Is(err, storage.ErrCartNotFound) {
			log.Warn("no active cart")
			return nil, apperr.CartNotFound()
		}
		return nil, s.classify(log, op, "failed to lock cart", err)
	}
	if cart.IsClosed() {
		rollback(log, tx)
		return nil, apperr.CartClosed()
	}

	items, err := s.carts.ListItemsTx(ctx, tx, cart.ID)
	if err != nil {
		rollback(log, tx)
		log.Error("failed to list cart items", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to list cart items: %w", op, err)
	}

	sorted := make([]*models.CartItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExternalProductID < sorted[j].ExternalProductID
	})

	// строки зеркала, заблокированные и проверенные, в порядке блокировки
	type decrement struct {
		product  *models.Product
		quantity int
	}
	decrements := make([]decrement, 0, len(sorted))

	for _, item := range sorted {
		itemLog := log.With(slog.Int64("productID", item.ExternalProductID), slog.Int("quantity", item.Quantity))

		product, err := s.products.LockByExternalIDTx(ctx, tx, item.ExternalProductID)
		if errors.Is(err, storage.ErrProductNotFound) {
			// товара нет в зеркале: только проверка по снимку внешнего каталога, без списания
			available, ok := externalStock[item.ExternalProductID]
			if !ok {
				// позиция добавлена параллельно, после чтения остатков
				rollback(log, tx)
				itemLog.Warn("cart changed during checkout")
				return nil, fmt.Errorf("%w: cart changed during checkout, retry", storage.ErrResourceLocked)
			}
			if available < item.Quantity {
				rollback(log, tx)
				itemLog.Warn("insufficient external stock", slog.Int("available", available))
				return nil, apperr.InsufficientStock(item.Quantity, available)
			}
			continue
		}
		if err != nil {
			rollback(log, tx)
			return nil, s.classify(itemLog, op, "failed to lock product", err)
		}

		if !product.HasStock(item.Quantity) {
			rollback(log, tx)
			itemLog.Warn("insufficient stock", slog.Int("available", product.Stock))
			return nil, apperr.InsufficientStock(item.Quantity, product.Stock)
		}
		decrements = append(decrements, decrement{product: product, quantity: item.Quantity})
	}

	for _, d := range decrements {
		d.product.DecrementStock(d.quantity)
		if err := s.products.UpdateStockTx(ctx, tx, d.product.ExternalID, d.product.Stock); err != nil {
			rollback(log, tx)
			log.Error("failed to update stock", slog.Int64("productID", d.product.ExternalID), logger.Err(err))
			return nil, fmt.Errorf("%s: failed to update stock: %w", op, err)
		}
	}

	if err := s.carts.CloseCartTx(ctx, tx, cart.ID); err != nil {
		rollback(log, tx)
		log.Error("failed to close cart", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to close cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	log.Info("checkout completed successfully", slog.Int64("cartID", cart.ID), slog.Int("items", len(items)))
	return s.loadCart(ctx, log, op, cart.ID)
}

// externalStock остатки по внешнему каталогу для позиций, которых нет в зеркале
func (s *cartService) externalStock(ctx context.Context, log *slog.Logger, items []*models.CartItem) (map[int64]int, error) {
	stock := make(map[int64]int)
	for _, item := range items {
		data, err := s.resolver.Resolve(ctx, item.ExternalProductID)
		if err != nil {
			log.Warn("failed to resolve product for checkout", slog.Int64("productID", item.ExternalProductID), logger.Err(err))
			return nil, err
		}
		if !data.FromMirror {
			stock[item.ExternalProductID] = data.Stock
		}
	}
	return stock, nil
}

// activeCart активная корзина без создания новой
func (s *cartService) activeCart(ctx context.Context, log *slog.Logger, op string, userID int64) (*models.Cart, error) {
	cart, err := s.carts.GetActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			log.Warn("no active cart")
			return nil, apperr.CartNotFound()
		}
		log.Error("failed to get active cart", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to get active cart: %w", op, err)
	}
	return cart, nil
}

// lockMutableCart блокирует корзину и проверяет, что она ещё активна
func (s *cartService) lockMutableCart(ctx context.Context, tx *sql.Tx, cartID int64) (*models.Cart, error) {
	cart, err := s.carts.LockCartTx(ctx, tx, cartID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil, apperr.CartNotFound()
		}
		return nil, err
	}
	if cart.IsClosed() {
		return nil, apperr.CartClosed()
	}
	return cart, nil
}

// finishMutation пересчитывает сумму по позициям внутри транзакции, коммитит и перечитывает корзину
func (s *cartService) finishMutation(ctx context.Context, log *slog.Logger, op string, tx *sql.Tx, cart *models.Cart) (*models.Cart, error) {
	items, err := s.carts.ListItemsTx(ctx, tx, cart.ID)
	if err != nil {
		rollback(log, tx)
		log.Error("failed to list cart items", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to list cart items: %w", op, err)
	}
	cart.Items = items
	cart.RecalculateTotal()

	if err := s.carts.UpdateTotalTx(ctx, tx, cart.ID, cart.Total); err != nil {
		rollback(log, tx)
		log.Error("failed to update cart total", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to update cart total: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	log.Info("cart updated", slog.Int64("cartID", cart.ID), slog.String("total", cart.Total.StringFixed(2)))
	return s.loadCart(ctx, log, op, cart.ID)
}

func (s *cartService) loadCart(ctx context.Context, log *slog.Logger, op string, cartID int64) (*models.Cart, error) {
	cart, err := s.carts.GetCartByID(ctx, cartID)
	if err != nil {
		log.Error("failed to reload cart", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to reload cart: %w", op, err)
	}
	cart.Items, err = s.carts.ListItems(ctx, cartID)
	if err != nil {
		log.Error("failed to reload cart items", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to reload cart items: %w", op, err)
	}
	return cart, nil
}

// classify доменные ошибки и ErrResourceLocked отдаются как есть, остальное оборачивается
func (s *cartService) classify(log *slog.Logger, op, msg string, err error) error {
	if _, ok := apperr.As(err); ok {
		log.Warn(msg, logger.Err(err))
		return err
	}
	if errors.Is(err, storage.ErrResourceLocked) {
		log.Warn(msg, logger.Err(err))
		return err
	}
	log.Error(msg, logger.Err(err))
	return fmt.Errorf("%s: %s: %w", op, msg, err)
}

func rollback(log *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		log.Error("transaction rollback failed", logger.Err(err))
	}
}
