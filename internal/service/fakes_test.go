package service_test

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/linemk/cart-shop/internal/catalog"
	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/storage"
	"github.com/shopspring/decimal"
)

type fakeUserRepo struct {
	users map[string]*models.User // ключ - email
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := f.users[user.Email]; ok {
		return nil, storage.ErrEmailTaken
	}
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

// fakeCartRepo хранит корзины и позиции в памяти, транзакцию игнорирует
type fakeCartRepo struct {
	mu         sync.Mutex
	nextCartID int64
	nextItemID int64
	carts      map[int64]*models.Cart
	items      map[int64]*models.CartItem
	// closeOnLock имитирует параллельный checkout между чтением и блокировкой корзины
	closeOnLock bool
	// onLockActive вызывается при блокировке активной корзины внутри транзакции
	onLockActive func()
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{
		carts: make(map[int64]*models.Cart),
		items: make(map[int64]*models.CartItem),
	}
}

func cloneCart(c *models.Cart) *models.Cart {
	cp := *c
	cp.Items = nil
	return &cp
}

func cloneItem(i *models.CartItem) *models.CartItem {
	cp := *i
	return &cp
}

func (f *fakeCartRepo) active(userID int64) *models.Cart {
	for _, c := range f.carts {
		if c.UserID == userID && c.Status == models.CartStatusActive {
			return c
		}
	}
	return nil
}

func (f *fakeCartRepo) GetActiveCart(ctx context.Context, userID int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.active(userID); c != nil {
		return cloneCart(c), nil
	}
	return nil, storage.ErrCartNotFound
}

func (f *fakeCartRepo) GetCartByID(ctx context.Context, id int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[id]; ok {
		return cloneCart(c), nil
	}
	return nil, storage.ErrCartNotFound
}

func (f *fakeCartRepo) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.active(userID); c != nil {
		return cloneCart(c), nil
	}
	f.nextCartID++
	now := time.Now()
	c := &models.Cart{
		ID:        f.nextCartID,
		UserID:    userID,
		Status:    models.CartStatusActive,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.carts[c.ID] = c
	return cloneCart(c), nil
}

func (f *fakeCartRepo) LockActiveCartTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Cart, error) {
	if f.onLockActive != nil {
		f.onLockActive()
	}
	return f.GetActiveCart(ctx, userID)
}

func (f *fakeCartRepo) LockCartTx(ctx context.Context, tx *sql.Tx, cartID int64) (*models.Cart, error) {
	f.mu.Lock()
	if c, ok := f.carts[cartID]; ok && f.closeOnLock {
		c.Status = models.CartStatusClosed
	}
	f.mu.Unlock()
	return f.GetCartByID(ctx, cartID)
}

func (f *fakeCartRepo) UpdateTotalTx(ctx context.Context, tx *sql.Tx, cartID int64, total decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cartID]
	if !ok {
		return storage.ErrCartNotFound
	}
	c.Total = total
	return nil
}

func (f *fakeCartRepo) CloseCartTx(ctx context.Context, tx *sql.Tx, cartID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cartID]
	if !ok || c.Status != models.CartStatusActive {
		return storage.ErrCartNotFound
	}
	c.Status = models.CartStatusClosed
	return nil
}

func (f *fakeCartRepo) ListItems(ctx context.Context, cartID int64) ([]*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]*models.CartItem, 0)
	for _, item := range f.items {
		if item.CartID == cartID {
			items = append(items, cloneItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeCartRepo) ListItemsTx(ctx context.Context, tx *sql.Tx, cartID int64) ([]*models.CartItem, error) {
	return f.ListItems(ctx, cartID)
}

func (f *fakeCartRepo) GetItemTx(ctx context.Context, tx *sql.Tx, cartID, externalProductID int64) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.CartID == cartID && item.ExternalProductID == externalProductID {
			return cloneItem(item), nil
		}
	}
	return nil, storage.ErrCartItemNotFound
}

func (f *fakeCartRepo) InsertItemTx(ctx context.Context, tx *sql.Tx, item *models.CartItem) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextItemID++
	item.ID = f.nextItemID
	f.items[item.ID] = cloneItem(item)
	return item, nil
}

func (f *fakeCartRepo) UpdateItemQuantityTx(ctx context.Context, tx *sql.Tx, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.items[item.ID]
	if !ok {
		return storage.ErrCartItemNotFound
	}
	stored.Quantity = item.Quantity
	stored.Subtotal = item.Subtotal
	return nil
}

func (f *fakeCartRepo) DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[itemID]; !ok {
		return storage.ErrCartItemNotFound
	}
	delete(f.items, itemID)
	return nil
}

// seedItem кладёт позицию напрямую, минуя сервис
func (f *fakeCartRepo) seedItem(cartID, externalID int64, price string, qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextItemID++
	unit := decimal.RequireFromString(price)
	f.items[f.nextItemID] = &models.CartItem{
		ID:                   f.nextItemID,
		CartID:               cartID,
		ExternalProductID:    externalID,
		Title:                "seeded",
		UnitPrice:            unit,
		Quantity:             qty,
		MinimumOrderQuantity: 1,
		Subtotal:             models.Subtotal(unit, qty),
	}
}

type fakeProductRepo struct {
	mu          sync.Mutex
	products    map[int64]*models.Product
	lockErr     map[int64]error
	lockOrder   []int64
	lockTimeout time.Duration
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products: make(map[int64]*models.Product),
		lockErr:  make(map[int64]error),
	}
}

func (f *fakeProductRepo) add(externalID int64, price string, stock, minQty int) {
	f.products[externalID] = &models.Product{
		ID:                   externalID,
		ExternalID:           externalID,
		SKU:                  "SKU",
		Title:                "mirror product",
		Price:                decimal.RequireFromString(price),
		Stock:                stock,
		MinimumOrderQuantity: minQty,
	}
}

func (f *fakeProductRepo) stock(externalID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[externalID].Stock
}

func (f *fakeProductRepo) GetByExternalID(ctx context.Context, externalID int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[externalID]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductRepo) GetStocks(ctx context.Context, externalIDs []int64) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stocks := make(map[int64]int)
	for _, id := range externalIDs {
		if p, ok := f.products[id]; ok {
			stocks[id] = p.Stock
		}
	}
	return stocks, nil
}

func (f *fakeProductRepo) LockByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID int64) (*models.Product, error) {
	f.mu.Lock()
	f.lockOrder = append(f.lockOrder, externalID)
	err := f.lockErr[externalID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.GetByExternalID(ctx, externalID)
}

func (f *fakeProductRepo) UpdateStockTx(ctx context.Context, tx *sql.Tx, externalID int64, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[externalID]
	if !ok {
		return storage.ErrProductNotFound
	}
	p.Stock = stock
	return nil
}

func (f *fakeProductRepo) UpsertProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.products[product.ExternalID]
	if !ok {
		cp := *product
		f.products[product.ExternalID] = &cp
		return true, nil
	}
	stock := existing.Stock
	*existing = *product
	existing.Stock = stock
	return false, nil
}

func (f *fakeProductRepo) SetLockTimeoutTx(ctx context.Context, tx *sql.Tx, timeout time.Duration) error {
	f.lockTimeout = timeout
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	products    []*models.ExternalProduct
	err         error
	invalidated int
	byIDCalls   int
}

var _ catalog.Gateway = (*fakeGateway)(nil)

func (f *fakeGateway) add(id int64, price string, stock, minQty int) {
	f.products = append(f.products, &models.ExternalProduct{
		ID:                   id,
		SKU:                  "EXT",
		Title:                "external product",
		Brand:                "Brand",
		Price:                decimal.RequireFromString(price),
		OriginalPrice:        decimal.RequireFromString(price),
		Stock:                stock,
		MinimumOrderQuantity: minQty,
	})
}

func (f *fakeGateway) ListAll(ctx context.Context, dir catalog.SortDirection, search string) (*catalog.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.ListResult{Products: f.products, Total: len(f.products)}, nil
}

func (f *fakeGateway) ListProducts(ctx context.Context, q catalog.ListQuery) (*catalog.ListResult, error) {
	res, err := f.ListAll(ctx, q.Sort, q.Search)
	if err != nil {
		return nil, err
	}
	start := min(q.Skip, len(res.Products))
	end := min(start+q.Limit, len(res.Products))
	res.Products = res.Products[start:end]
	return res, nil
}

func (f *fakeGateway) GetByID(ctx context.Context, id int64) (*models.ExternalProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byIDCalls++
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperr.ProductNotFound(id)
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byIDCalls
}

func (f *fakeGateway) Invalidate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	return nil
}
