package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linemk/cart-shop/internal/app"
	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/domain/models"
	security "github.com/linemk/cart-shop/internal/jwt-new"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/linemk/cart-shop/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type stubAuth struct{}

func (stubAuth) Register(ctx context.Context, name, email, password string) (*service.AuthResult, error) {
	return nil, service.ErrInvalidCredentials
}

func (stubAuth) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	if password != "password123" {
		return nil, service.ErrInvalidCredentials
	}
	user := &models.User{ID: 5, Email: email}
	token, err := security.NewToken(user, time.Hour, testSecret)
	if err != nil {
		return nil, err
	}
	return &service.AuthResult{Token: token, User: user}, nil
}

// stubCart корзина пользователя закрывается на checkout, второй checkout - CartNotFound
type stubCart struct {
	closed bool
}

func (s *stubCart) cart(userID int64) *models.Cart {
	status := models.CartStatusActive
	if s.closed {
		status = models.CartStatusClosed
	}
	return &models.Cart{ID: 1, UserID: userID, Status: status, Total: decimal.Zero}
}

func (s *stubCart) GetOrCreate(ctx context.Context, userID int64) (*models.Cart, error) {
	return s.cart(userID), nil
}

func (s *stubCart) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	return nil, apperr.InsufficientStock(quantity, 0)
}

func (s *stubCart) UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	return s.cart(userID), nil
}

func (s *stubCart) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	return s.cart(userID), nil
}

func (s *stubCart) Checkout(ctx context.Context, userID int64) (*models.Cart, error) {
	if s.closed {
		return nil, apperr.CartNotFound()
	}
	s.closed = true
	return s.cart(userID), nil
}

type stubProducts struct{}

func (stubProducts) List(ctx context.Context, q service.ProductListQuery) (*service.ProductPage, error) {
	return &service.ProductPage{Meta: service.PageMeta{CurrentPage: q.Page, PerPage: q.PerPage, LastPage: 1}}, nil
}

func (stubProducts) Get(ctx context.Context, id int64) (*models.ExternalProduct, error) {
	return nil, apperr.ProductNotFound(id)
}

type stubProfile struct{}

func (stubProfile) Get(ctx context.Context, userID int64) (*models.Profile, error) {
	return &models.Profile{UserID: userID}, nil
}

func (stubProfile) Update(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	return profile, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	router := app.NewRouter(logger.NewDiscard(), testSecret, &app.Services{
		Auth:    stubAuth{},
		Cart:    &stubCart{},
		Product: stubProducts{},
		Profile: stubProfile{},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Error string `json:"error"`
	} `json:"error"`
}

func do(t *testing.T, method, url, token, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func login(t *testing.T, baseURL string) string {
	t.Helper()
	status, env := do(t, http.MethodPost, baseURL+"/api/auth/login", "",
		`{"email": "buyer@example.com", "password": "password123"}`)
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

// сценарий: логин, корзина, отказ по остатку, checkout и повторный checkout
func TestRouter_CartFlow(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv.URL)

	status, env := do(t, http.MethodGet, srv.URL+"/api/cart", token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"user_id":5`)

	status, env = do(t, http.MethodPost, srv.URL+"/api/cart/items", token, `{"product_id": 1, "quantity": 2}`)
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Error)

	status, env = do(t, http.MethodPost, srv.URL+"/api/cart/checkout", token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"closed"`)

	status, env = do(t, http.MethodPost, srv.URL+"/api/cart/checkout", token, "")
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CART_NOT_FOUND", env.Error.Error)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart/items"},
		{http.MethodPut, "/api/cart/items/1"},
		{http.MethodDelete, "/api/cart/items/1"},
		{http.MethodPost, "/api/cart/checkout"},
		{http.MethodGet, "/api/profile"},
		{http.MethodPut, "/api/profile"},
	}
	for _, rt := range routes {
		status, env := do(t, rt.method, srv.URL+rt.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, status, rt.path)
		require.NotNil(t, env.Error, rt.path)
		assert.Equal(t, "UNAUTHENTICATED", env.Error.Error)
	}

	status, _ := do(t, http.MethodGet, srv.URL+"/api/cart", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_PublicCatalog(t *testing.T) {
	srv := newTestServer(t)

	status, env := do(t, http.MethodGet, srv.URL+"/api/products?page=2&per_page=5", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"current_page":2`)

	status, env = do(t, http.MethodGet, srv.URL+"/api/products/42", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PRODUCT_NOT_FOUND", env.Error.Error)
}

func TestRouter_InvalidLogin(t *testing.T) {
	srv := newTestServer(t)

	status, env := do(t, http.MethodPost, srv.URL+"/api/auth/login", "",
		`{"email": "buyer@example.com", "password": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Error)
}
