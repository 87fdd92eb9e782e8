package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{ err error }

func (s failingSource) Lookup(context.Context, int64) (*service.ProductData, error) {
	return nil, s.err
}

func TestProductResolver_MirrorWins(t *testing.T) {
	products := newFakeProductRepo()
	products.add(7, "9.99", 3, 2)
	gw := &fakeGateway{}
	gw.add(7, "1.00", 100, 1)

	resolver := service.NewProductResolver(service.NewMirrorSource(products), service.NewGatewaySource(gw))
	data, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, data.FromMirror)
	assert.Equal(t, 3, data.Stock)
	assert.Equal(t, 2, data.MinimumOrderQuantity)
	assert.True(t, dec("9.99").Equal(data.Price))
}

func TestProductResolver_FallsBackToGateway(t *testing.T) {
	gw := &fakeGateway{}
	gw.add(42, "15.00", 4, 0)

	resolver := service.NewProductResolver(service.NewMirrorSource(newFakeProductRepo()), service.NewGatewaySource(gw))
	data, err := resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, data.FromMirror)
	assert.Equal(t, 4, data.Stock)
	assert.Equal(t, 1, data.MinimumOrderQuantity, "minimum below one is treated as one")
}

func TestProductResolver_NotFoundPropagatesUnchanged(t *testing.T) {
	resolver := service.NewProductResolver(service.NewMirrorSource(newFakeProductRepo()), service.NewGatewaySource(&fakeGateway{}))

	_, err := resolver.Resolve(context.Background(), 42)
	domainErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindProductNotFound, domainErr.Kind)
	assert.Equal(t, int64(42), domainErr.ProductID)
}

func TestProductResolver_SourceErrorStopsChain(t *testing.T) {
	gw := &fakeGateway{}
	gw.add(42, "15.00", 4, 1)
	boom := errors.New("db down")

	resolver := service.NewProductResolver(failingSource{err: boom}, service.NewGatewaySource(gw))
	_, err := resolver.Resolve(context.Background(), 42)
	assert.ErrorIs(t, err, boom)
}

func TestProductResolver_EmptyChain(t *testing.T) {
	_, err := service.NewProductResolver().Resolve(context.Background(), 5)
	assert.True(t, apperr.IsKind(err, apperr.KindProductNotFound))
}
