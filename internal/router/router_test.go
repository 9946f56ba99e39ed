package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bookhaven.ca/bookstore/api/internal/service"
	"bookhaven.ca/bookstore/api/pkg/auth"
	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/memory"
	"bookhaven.ca/bookstore/api/pkg/redis"
	"bookhaven.ca/bookstore/api/pkg/store"
)

const (
	adminEmail    = "admin@bookhaven.ca"
	adminPassword = "admin-password"
)

type envelope struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
	Errors  []global.ValidationError `json:"errors"`
}

type testServer struct {
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := memory.NewStore()
	tokens := auth.NewTokenIssuer(auth.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "bookstore-test",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	})
	catalog := service.NewCatalogService(st.Books(), redis.NewBookCache(rdb, time.Minute))
	carts := redis.NewCartStore(rdb, time.Hour)
	users := service.NewUserService(st.Users(), carts, tokens, bcrypt.MinCost)
	orders := service.NewOrderService(carts, st.Orders(), st.Users(), catalog,
		service.WithIdempotency(redis.NewIdempotencyStore(rdb, time.Hour)),
	)
	_, err := users.EnsureAdmin(context.Background(), adminEmail, adminPassword, "", "")
	require.NoError(t, err)

	var cfg global.Config
	cfg.App.Env = "test"
	cfg.RateLimit.LoginPerMinute = 60
	cfg.RateLimit.Burst = 100

	h := NewHandler(Services{
		Users:   users,
		Catalog: catalog,
		Carts:   service.NewCartService(carts, catalog),
		Orders:  orders,
		Reports: service.NewReportService(st.Orders(), nil, 5),
		Health:  map[string]store.Pinger{"memory": st},
	})
	r := gin.New()
	r.Use(RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	InitializeRoutes(r, h, cfg)
	return &testServer{engine: r}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/users/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pair := decode[struct {
		AccessToken string `json:"access_token"`
	}](t, env.Data)
	return pair.AccessToken
}

func (s *testServer) registerAndLogin(t *testing.T, email string) string {
	t.Helper()
	w, _ := s.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"first_name": "Ada",
		"last_name":  "Reader",
		"email":      email,
		"password":   "correct-horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(t, email, "correct-horse")
}

func (s *testServer) createBook(t *testing.T, adminToken, title string, price float64, stock int) string {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/books", adminToken, map[string]any{"title": title, "price": price, "stock": stock})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		ID string `json:"id"`
	}](t, env.Data).ID
}

var shipping = map[string]any{"shipping_address": map[string]string{
	"address":     "1 King St W",
	"city":        "Toronto",
	"postal_code": "M5H 1A1",
	"country":     "Canada",
}}

func TestUsers_RegisterLoginErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "ada@example.com")
	assert.NotEmpty(t, token)

	w, _ := s.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"first_name": "Ada", "last_name": "Again", "email": "ADA@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env := s.do(t, http.MethodPost, "/users/register", "", map[string]string{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, env.Errors)

	w, _ = s.do(t, http.MethodPost, "/users/login", "", map[string]string{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/users/login", "", map[string]string{"email": "nobody@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), "password")
	assert.NotContains(t, string(env.Data), "refresh_token")
}

func TestAuth_Gates(t *testing.T) {
	s := newTestServer(t)
	user := s.registerAndLogin(t, "ada@example.com")

	w, _ := s.do(t, http.MethodPost, "/books", "", map[string]any{"title": "X", "price": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	w, _ = s.do(t, http.MethodPost, "/books", "not-a-jwt", map[string]any{"title": "X", "price": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/books", user, map[string]any{"title": "X", "price": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/orders", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/admin/reports/sales", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBooks_CacheHeader(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	id := s.createBook(t, admin, "Dune", 12.5, 3)

	w, _ := s.do(t, http.MethodGet, "/books/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w, _ = s.do(t, http.MethodGet, "/books/"+id, "", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w, _ = s.do(t, http.MethodPatch, "/books/"+id, admin, map[string]any{"stock": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(t, http.MethodGet, "/books/"+id, "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, 7, decode[struct {
		Stock int `json:"stock"`
	}](t, env.Data).Stock)

	w, _ = s.do(t, http.MethodGet, "/books/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodGet, "/books/search?title=DUN", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 1)
}

func TestOrders_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	user := s.registerAndLogin(t, "ada@example.com")
	a := s.createBook(t, admin, "A", 10, 5)
	b := s.createBook(t, admin, "B", 20, 1)

	w, _ := s.do(t, http.MethodPost, "/orders/create", user, shipping)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty cart")

	w, _ = s.do(t, http.MethodPost, "/cart/add", user, map[string]any{"book_id": a, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.do(t, http.MethodPost, "/cart/add", user, map[string]any{"book_id": a, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w, env := s.do(t, http.MethodPost, "/cart/add", user, map[string]any{"book_id": b, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode[struct {
		ItemCount  int     `json:"item_count"`
		TotalValue float64 `json:"total_value"`
	}](t, env.Data)
	assert.Equal(t, 3, cart.ItemCount)
	assert.Equal(t, 40.0, cart.TotalValue)

	w, env = s.do(t, http.MethodPost, "/orders/create", user, map[string]any{"shipping_address": map[string]string{"city": "Toronto"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Complete shipping address is required", env.Message)

	w, env = s.do(t, http.MethodPost, "/orders/create", user, shipping, idempotencyHeader, "retry-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[struct {
		ID          string  `json:"id"`
		TotalAmount float64 `json:"total_amount"`
		Status      string  `json:"status"`
	}](t, env.Data)
	assert.Equal(t, 40.0, order.TotalAmount)
	assert.Equal(t, "pending", order.Status)

	w, env = s.do(t, http.MethodPost, "/orders/create", user, shipping, idempotencyHeader, "retry-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.ID, decode[struct {
		ID string `json:"id"`
	}](t, env.Data).ID)

	w, _ = s.do(t, http.MethodGet, "/cart", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(t, http.MethodGet, "/books/"+b, "", nil)
	assert.Equal(t, 0, decode[struct {
		Stock int `json:"stock"`
	}](t, env.Data).Stock)

	w, env = s.do(t, http.MethodGet, "/orders/my-orders?page=1&limit=10", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[struct {
		Orders     []json.RawMessage `json:"orders"`
		Pagination struct {
			TotalOrders int `json:"total_orders"`
		} `json:"pagination"`
	}](t, env.Data)
	assert.Len(t, page.Orders, 1)
	assert.Equal(t, 1, page.Pagination.TotalOrders)

	for _, path := range []string{"/orders/my-orders", "/orders"} {
		token := user
		if path == "/orders" {
			token = admin
		}
		w, env = s.do(t, http.MethodGet, path+"?page=9223372036854775807&limit=100", token, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, decode[struct {
			Orders []json.RawMessage `json:"orders"`
		}](t, env.Data).Orders, path)
	}

	other := s.registerAndLogin(t, "other@example.com")
	w, _ = s.do(t, http.MethodGet, "/orders/"+order.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/orders/"+order.ID+"/status", admin, map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/orders/"+order.ID+"/status", admin, map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodPatch, "/orders/"+order.ID+"/cancel", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/orders/"+order.ID+"/cancel", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/books/"+a, "", nil)
	assert.Equal(t, 5, decode[struct {
		Stock int `json:"stock"`
	}](t, env.Data).Stock)

	w, env = s.do(t, http.MethodGet, "/orders?status=cancelled", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/admin/reports/sales", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[struct {
		Summary struct {
			TotalOrders int     `json:"total_orders"`
			Revenue     float64 `json:"revenue"`
		} `json:"summary"`
		AIEnabled bool `json:"ai_enabled"`
	}](t, env.Data)
	assert.Equal(t, 1, report.Summary.TotalOrders)
	assert.Equal(t, 0.0, report.Summary.Revenue)
	assert.False(t, report.AIEnabled)
}

func TestOrders_InsufficientStockMessage(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	user := s.registerAndLogin(t, "ada@example.com")
	b := s.createBook(t, admin, "B", 20, 0)

	w, _ := s.do(t, http.MethodPost, "/cart/add", user, map[string]any{"book_id": b, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodPost, "/orders/create", user, shipping)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Insufficient stock for B. Available: 0, Requested: 1", env.Message)
}

func TestCart_Routes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	user := s.registerAndLogin(t, "ada@example.com")
	a := s.createBook(t, admin, "A", 10, 5)

	w, _ := s.do(t, http.MethodPost, "/cart/add", user, map[string]any{"book_id": "zzz", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/cart/add", user, map[string]any{"book_id": a, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/cart/items/"+a, user, map[string]any{"quantity": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/cart/add", user, map[string]any{"book_id": a, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodPatch, "/cart/items/"+a, user, map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decode[struct {
		ItemCount int `json:"item_count"`
	}](t, env.Data).ItemCount)

	w, _ = s.do(t, http.MethodDelete, "/cart/remove/"+a, user, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/cart/clear", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/cart", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"memory":"Connected"`)
	assert.NotEmpty(t, w.Header().Get(requestIDKey))
}

func TestRateLimit_Login(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", RateLimit(1, 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRedactJSON(t *testing.T) {
	out := redactJSON([]byte(`{"email":"a@b.c","password":"hunter22","nested":{"refresh_token":"x"}}`))
	assert.JSONEq(t, `{"email":"a@b.c","password":"***redacted***","nested":{"refresh_token":"***redacted***"}}`, string(out))
}
