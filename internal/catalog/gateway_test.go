package catalog_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/linemk/cart-shop/internal/catalog"
	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	mu         sync.Mutex
	products   []*models.ExternalProduct
	listErr    error
	detailErr  error
	listCalls  int
	detailHits int
	// listDelay имитирует медленный upstream, который уважает контекст запроса
	listDelay time.Duration
}

var _ catalog.Upstream = (*fakeUpstream)(nil)

func (f *fakeUpstream) FetchAll(ctx context.Context) ([]*models.ExternalProduct, error) {
	f.mu.Lock()
	f.listCalls++
	delay := f.listDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.products, nil
}

func (f *fakeUpstream) FetchByID(_ context.Context, id int64) (*models.ExternalProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailHits++
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	for _, p := range f.products {
		if p.ID == id {
			detailed := *p
			detailed.Detail = &models.ProductDetail{Description: "detail"}
			return &detailed, nil
		}
	}
	return nil, apperr.ProductNotFound(id)
}

func product(id int64, title, brand, price string) *models.ExternalProduct {
	return &models.ExternalProduct{ID: id, Title: title, Brand: brand, Price: decimal.RequireFromString(price)}
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{products: []*models.ExternalProduct{
		product(1, "Red Lipstick", "Essence", "9.99"),
		product(2, "Eyeshadow Palette", "Glamour Beauty", "19.99"),
		product(3, "Powder Canister", "Velvet Touch", "14.99"),
		product(4, "Red Nail Polish", "Essence", "9.99"),
		product(5, "Apple", "Farm", "1.99"),
	}}
}

func newTestGateway(up catalog.Upstream) catalog.Gateway {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return catalog.NewGateway(log, up, catalog.NewMemoryCache(5*time.Minute))
}

func ids(products []*models.ExternalProduct) []int64 {
	out := make([]int64, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestGateway_ListAll_SortStable(t *testing.T) {
	gw := newTestGateway(newFakeUpstream())

	asc, err := gw.ListAll(context.Background(), catalog.SortAsc, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 1, 4, 3, 2}, ids(asc.Products))
	assert.Equal(t, 5, asc.Total)

	desc, err := gw.ListAll(context.Background(), catalog.SortDesc, "")
	require.NoError(t, err)
	// равные цены 1 и 4 остаются в исходном порядке
	assert.Equal(t, []int64{2, 3, 1, 4, 5}, ids(desc.Products))
}

func TestGateway_ListAll_SearchTitleOrBrand(t *testing.T) {
	gw := newTestGateway(newFakeUpstream())

	res, err := gw.ListAll(context.Background(), catalog.SortAsc, "ESSENCE")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids(res.Products))

	res, err = gw.ListAll(context.Background(), catalog.SortAsc, "red")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids(res.Products))
	assert.Equal(t, 2, res.Total)
}

func TestGateway_ListProducts_Pagination(t *testing.T) {
	gw := newTestGateway(newFakeUpstream())

	page, err := gw.ListProducts(context.Background(), catalog.ListQuery{Sort: catalog.SortAsc, Limit: 2, Skip: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3}, ids(page.Products))
	assert.Equal(t, 5, page.Total)

	past, err := gw.ListProducts(context.Background(), catalog.ListQuery{Limit: 2, Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, past.Products)
	assert.Equal(t, 5, past.Total)
}

func TestGateway_SnapshotCachedUntilInvalidated(t *testing.T) {
	up := newFakeUpstream()
	gw := newTestGateway(up)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := gw.ListAll(ctx, catalog.SortDesc, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, up.listCalls)

	require.NoError(t, gw.Invalidate(ctx))
	_, err := gw.ListAll(ctx, catalog.SortAsc, "")
	require.NoError(t, err)
	assert.Equal(t, 2, up.listCalls)
}

func TestGateway_ListAll_UpstreamError(t *testing.T) {
	up := newFakeUpstream()
	up.listErr = apperr.ExternalAPI("HTTP 500")
	gw := newTestGateway(up)

	res, err := gw.ListAll(context.Background(), catalog.SortAsc, "")
	assert.Nil(t, res)
	assert.True(t, apperr.IsKind(err, apperr.KindExternalAPI))
}

func TestGateway_GetByID(t *testing.T) {
	t.Run("detail fetched", func(t *testing.T) {
		gw := newTestGateway(newFakeUpstream())

		p, err := gw.GetByID(context.Background(), 3)
		require.NoError(t, err)
		require.NotNil(t, p.Detail)
		assert.Equal(t, "detail", p.Detail.Description)
	})

	t.Run("detail failure falls back to snapshot", func(t *testing.T) {
		up := newFakeUpstream()
		up.detailErr = apperr.ExternalAPI("timeout")
		gw := newTestGateway(up)

		p, err := gw.GetByID(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), p.ID)
		assert.Nil(t, p.Detail)
	})

	t.Run("not found propagates", func(t *testing.T) {
		gw := newTestGateway(newFakeUpstream())

		_, err := gw.GetByID(context.Background(), 42)
		domainErr, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.KindProductNotFound, domainErr.Kind)
		assert.Equal(t, int64(42), domainErr.ProductID)
	})

	t.Run("snapshot unavailable fetches detail directly", func(t *testing.T) {
		up := newFakeUpstream()
		up.listErr = apperr.ExternalAPI("HTTP 500")
		gw := newTestGateway(up)

		p, err := gw.GetByID(context.Background(), 2)
		require.NoError(t, err)
		assert.Equal(t, int64(2), p.ID)
	})

	t.Run("external error without snapshot propagates", func(t *testing.T) {
		up := newFakeUpstream()
		up.listErr = apperr.ExternalAPI("HTTP 500")
		up.detailErr = apperr.ExternalAPI("HTTP 500")
		gw := newTestGateway(up)

		_, err := gw.GetByID(context.Background(), 2)
		assert.True(t, apperr.IsKind(err, apperr.KindExternalAPI))
	})
}

func TestParseSortDirection(t *testing.T) {
	assert.Equal(t, catalog.SortDesc, catalog.ParseSortDirection("DESC"))
	assert.Equal(t, catalog.SortAsc, catalog.ParseSortDirection("asc"))
	assert.Equal(t, catalog.SortAsc, catalog.ParseSortDirection("price"))
	assert.Equal(t, catalog.SortAsc, catalog.ParseSortDirection(""))
}

// вызывающий с живым контекстом получает снимок, даже если первый участник загрузки отвалился по дедлайну
func TestGateway_SharedFetchSurvivesFirstCallerDeadline(t *testing.T) {
	up := newFakeUpstream()
	up.listDelay = 100 * time.Millisecond
	gw := newTestGateway(up)

	var (
		wg      sync.WaitGroup
		errA    error
		resB    *catalog.ListResult
		errB    error
		started = make(chan struct{})
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		close(started)
		_, errA = gw.ListAll(ctx, catalog.SortAsc, "")
	}()
	go func() {
		defer wg.Done()
		<-started
		time.Sleep(5 * time.Millisecond)
		resB, errB = gw.ListAll(context.Background(), catalog.SortAsc, "")
	}()
	wg.Wait()

	assert.ErrorIs(t, errA, context.DeadlineExceeded)
	require.NoError(t, errB)
	assert.Len(t, resB.Products, 5)
	assert.Equal(t, 1, up.listCalls)

	// снимок сохранён в кэш, повторный запрос не идёт в upstream
	_, err := gw.ListAll(context.Background(), catalog.SortAsc, "")
	require.NoError(t, err)
	assert.Equal(t, 1, up.listCalls)
}
