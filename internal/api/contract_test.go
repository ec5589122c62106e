package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukanshop/dukan/config"
	"github.com/dukanshop/dukan/internal/app"
	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/testdb"
	"github.com/dukanshop/dukan/internal/webserver"
)

var (
	setupOnce   sync.Once
	application *app.Application
)

// setup boots one application + route table for the package; each test
// swaps in a fresh database.
func setup(t *testing.T) *app.Application {
	t.Helper()
	setupOnce.Do(func() {
		cfg := *config.DefaultAppConfig
		application = app.NewApplication(&cfg)
		application.OverrideDB(testdb.Open(t))
		webserver.Init(application)
		Init()
	})
	application.OverrideDB(testdb.Open(t))
	return application
}

func seedUserWithToken(t *testing.T, a *app.Application, username, address string) (*domain.ShopUser, string) {
	t.Helper()
	user := &domain.ShopUser{Username: username, Role: domain.RoleClient, Address: address}
	require.NoError(t, a.DB().Create(user).Error)
	token, err := a.UsersService().IssueToken(user)
	require.NoError(t, err)
	return user, token
}

func seedProduct(t *testing.T, a *app.Application, name string, price int64, stock int) *domain.Product {
	t.Helper()
	product := &domain.Product{
		Name: name, Slug: name,
		Price: decimal.NewFromInt(price), Stock: stock, IsActive: true,
	}
	require.NoError(t, a.DB().Create(product).Error)
	return product
}

func doJSON(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echoHeaderContentType, "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	webserver.Echo().ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func TestCheckoutEndpointContract(t *testing.T) {
	a := setup(t)
	user, token := seedUserWithToken(t, a, "olim", "Bukhara, Lyabi Hauz 3")
	product := seedProduct(t, a, "teapot", 150, 4)

	addBody := `{"product_id": ` + jsonInt(product.ID) + `, "quantity": 2}`
	rec := doJSON(t, http.MethodPost, "/api/cart/add", token, addBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, http.MethodPost, "/api/orders/checkout", token, `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Contains(t, body, "message")
	assert.Contains(t, body, "order_id")
	assert.Len(t, body, 2, "contract allows exactly message and order_id")

	var order domain.Order
	require.NoError(t, a.DB().First(&order, int64(body["order_id"].(float64))).Error)
	assert.Equal(t, user.ID, order.UserID)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(300)))
}

func TestCheckoutEndpointValidationErrors(t *testing.T) {
	a := setup(t)
	_, token := seedUserWithToken(t, a, "olim", "addr")

	// empty cart
	rec := doJSON(t, http.MethodPost, "/api/orders/checkout", token, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "error")
	assert.Len(t, body, 1, "error responses carry a single error key")

	// insufficient stock aborts with a 400 and leaves state alone
	product := seedProduct(t, a, "rare", 100, 1)
	rec = doJSON(t, http.MethodPost, "/api/cart/add", token,
		`{"product_id": `+jsonInt(product.ID)+`, "quantity": 1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, a.DB().Model(&domain.Product{}).
		Where("id = ?", product.ID).Update("stock", 0).Error)

	rec = doJSON(t, http.MethodPost, "/api/orders/checkout", token, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody(t, rec)
	assert.Contains(t, body["error"], "insufficient stock")

	var orders int64
	require.NoError(t, a.DB().Model(&domain.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestCheckoutRequiresAuth(t *testing.T) {
	setup(t)
	rec := doJSON(t, http.MethodPost, "/api/orders/checkout", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddToCartContract(t *testing.T) {
	a := setup(t)
	_, token := seedUserWithToken(t, a, "olim", "addr")
	product := seedProduct(t, a, "cup", 50, 2)

	rec := doJSON(t, http.MethodPost, "/api/cart/add", token,
		`{"product_id": `+jsonInt(product.ID)+`, "quantity": 2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Product added to cart", body["message"])
	assert.Len(t, body, 1)

	// cumulative rejection exposes the arithmetic in details
	rec = doJSON(t, http.MethodPost, "/api/cart/add", token,
		`{"product_id": `+jsonInt(product.ID)+`, "quantity": 1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody(t, rec)
	assert.Contains(t, body, "error")
	assert.Equal(t, "in stock: 2, in cart: 2, requested: 1", body["details"])

	// bad payloads
	rec = doJSON(t, http.MethodPost, "/api/cart/add", token, `{"quantity": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, http.MethodPost, "/api/cart/add", token,
		`{"product_id": 999999, "quantity": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicCatalogAndProtectedWrites(t *testing.T) {
	a := setup(t)
	seedProduct(t, a, "visible", 10, 1)

	rec := doJSON(t, http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	// catalog writes need an admin token
	_, clientToken := seedUserWithToken(t, a, "plainuser", "addr")
	rec = doJSON(t, http.MethodPost, "/api/products", clientToken,
		`{"name": "x", "slug": "x", "price": "10"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := &domain.ShopUser{Username: "boss", Role: domain.RoleAdmin}
	require.NoError(t, a.DB().Create(admin).Error)
	adminToken, err := a.UsersService().IssueToken(admin)
	require.NoError(t, err)
	rec = doJSON(t, http.MethodPost, "/api/products", adminToken,
		`{"name": "x", "slug": "x", "price": "10"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
