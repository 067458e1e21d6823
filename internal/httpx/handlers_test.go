package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/auth"
	"github.com/ariefcatur/go-cart-checkout/internal/cart"
	"github.com/ariefcatur/go-cart-checkout/internal/checkout"
	"github.com/ariefcatur/go-cart-checkout/internal/inventory"
	"github.com/ariefcatur/go-cart-checkout/internal/logx"
	"github.com/ariefcatur/go-cart-checkout/internal/metrics"
	"github.com/ariefcatur/go-cart-checkout/internal/orders"
	"github.com/ariefcatur/go-cart-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeCatalog struct{ products []inventory.Product }

func (f *fakeCatalog) ListProducts(context.Context) ([]inventory.Product, error) {
	return f.products, nil
}

type fakeCarts struct {
	view    cart.View
	line    cart.Line
	err     error
	gotCust string
	gotQty  int
}

func (f *fakeCarts) AddItem(_ context.Context, c, _ string, qty int) (cart.Line, error) {
	f.gotCust, f.gotQty = c, qty
	return f.line, f.err
}
func (f *fakeCarts) GetCart(_ context.Context, c string) (cart.View, error) {
	f.gotCust = c
	return f.view, f.err
}
func (f *fakeCarts) UpdateLine(_ context.Context, c, _ string, qty int) (cart.Line, error) {
	f.gotCust, f.gotQty = c, qty
	return f.line, f.err
}
func (f *fakeCarts) RemoveLine(_ context.Context, c, _ string) (cart.Line, error) {
	f.gotCust = c
	return f.line, f.err
}

type fakeCheckout struct {
	res     checkout.Result
	err     error
	calls   int
	gotKey  string
	gotCust string
}

func (f *fakeCheckout) Checkout(_ context.Context, c, key, _ string) (checkout.Result, error) {
	f.calls++
	f.gotCust, f.gotKey = c, key
	return f.res, f.err
}

type fakeOrders struct {
	order     orders.Order
	list      []orders.Order
	stats     orders.Stats
	err       error
	dbReads   int
	gotStatus string
}

func (f *fakeOrders) ListMine(context.Context, string) ([]orders.Order, error) { return f.list, f.err }
func (f *fakeOrders) GetMine(_ context.Context, c, id string) (orders.Order, error) {
	if f.err != nil {
		return orders.Order{}, f.err
	}
	if f.order.CustomerID != c || f.order.ID != id {
		return orders.Order{}, apperr.NotFound("order")
	}
	return f.order, nil
}
func (f *fakeOrders) StatusMine(ctx context.Context, c, id string) (orders.Order, error) {
	f.dbReads++
	return f.GetMine(ctx, c, id)
}
func (f *fakeOrders) ListAll(context.Context) ([]orders.Order, error) { return f.list, f.err }
func (f *fakeOrders) Dashboard(context.Context) (orders.Stats, error) { return f.stats, f.err }
func (f *fakeOrders) UpdateStatus(_ context.Context, _, status, _ string) (orders.Order, error) {
	f.gotStatus = status
	if _, err := orders.ParseStatus(status); err != nil {
		return orders.Order{}, err
	}
	return f.order, f.err
}

type fakeCache struct {
	statuses map[string]redisx.OrderStatus
	idem     map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{statuses: map[string]redisx.OrderStatus{}, idem: map[string]string{}}
}

func (f *fakeCache) GetStatus(_ context.Context, id string) (redisx.OrderStatus, bool, error) {
	st, ok := f.statuses[id]
	return st, ok, nil
}
func (f *fakeCache) SetStatusIfNewer(_ context.Context, st redisx.OrderStatus) error {
	f.statuses[st.OrderID] = st
	return nil
}
func (f *fakeCache) CheckoutOrderID(_ context.Context, c, k string) (string, bool, error) {
	id, ok := f.idem[c+":"+k]
	return id, ok, nil
}
func (f *fakeCache) RememberCheckout(_ context.Context, c, k, id string) error {
	f.idem[c+":"+k] = id
	return nil
}

type harness struct {
	router   *chi.Mux
	oracle   *auth.Oracle
	carts    *fakeCarts
	checkout *fakeCheckout
	orders   *fakeOrders
	cache    *fakeCache
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	o, err := auth.NewOracle("test-secret")
	require.NoError(t, err)

	h := &harness{
		oracle:   o,
		carts:    &fakeCarts{},
		checkout: &fakeCheckout{},
		orders:   &fakeOrders{},
		cache:    newFakeCache(),
	}
	log := logx.Discard()
	r := NewRouter(metrics.NewServerMetrics("test"))
	(&CatalogHandler{Products: &fakeCatalog{products: []inventory.Product{
		{ID: "p-1", Name: "Apel", Price: dec("10"), Stock: 5},
	}}, Log: log}).Register(r)
	(&CartHandler{Carts: h.carts, Auth: o, Log: log}).Register(r)
	(&OrdersHandler{Checkout: h.checkout, Orders: h.orders, Cache: h.cache, Auth: o, Log: log}).Register(r)
	(&AdminHandler{Orders: h.orders, Cache: h.cache, Auth: o, Log: log}).Register(r)
	h.router = r
	return h
}

func (h *harness) customerToken(t *testing.T, id string) string {
	t.Helper()
	tok, err := h.oracle.IssueCustomer(id)
	require.NoError(t, err)
	return tok
}

func (h *harness) merchantToken(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := h.oracle.IssueMerchant("m-1", role)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(method, path, token, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = h.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shop_test_http_requests_total")
}

func TestListProductsFormatsMoney(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "10.00", got[0]["price"])
}

func TestCartRequiresCustomer(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/cart", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/cart", "garbage", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/cart", h.merchantToken(t, auth.RoleAdmin), "").Code)
}

func TestGetEmptyCartShape(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.carts.view = cart.View{Items: []cart.ViewLine{}, Total: decimal.Zero}

	rec := h.do(http.MethodGet, "/api/cart", h.customerToken(t, "c-1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cart":null,"items":[],"total":"0.00"}`, rec.Body.String())
	assert.Equal(t, "c-1", h.carts.gotCust)
}

func TestAddItem(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.carts.line = cart.Line{ID: "l-1", CartID: "cart-1", ProductID: "p-1", Quantity: 2, UnitPrice: dec("10")}

	rec := h.do(http.MethodPost, "/api/cart", h.customerToken(t, "c-1"), `{"product_id":"p-1","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "10.00", body["unit_price"])
	assert.Equal(t, "20.00", body["subtotal"])
	assert.Equal(t, 2, h.carts.gotQty)

	rec = h.do(http.MethodPost, "/api/cart", h.customerToken(t, "c-1"), `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.carts.err = apperr.InsufficientStock("p-1", 9, 5)
	rec = h.do(http.MethodPost, "/api/cart", h.customerToken(t, "c-1"), `{"product_id":"p-1","quantity":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "p-1", body["product_id"])
}

func TestAddItemUnknownProduct(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.carts.err = apperr.UnknownProduct("p-x")
	rec := h.do(http.MethodPost, "/api/cart", h.customerToken(t, "c-1"), `{"product_id":"p-x","quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "unknown_product", body["code"])
	assert.Equal(t, "p-x", body["product_id"])
}

func TestCartLineErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	tok := h.customerToken(t, "c-1")

	h.carts.err = apperr.NotFound("cart item")
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPut, "/api/cart/items/x", tok, `{"quantity":1}`).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/cart/items/x", tok, "").Code)

	h.carts.err = errors.New("boom")
	rec := h.do(http.MethodDelete, "/api/cart/items/x", tok, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["error"])
}

func TestCheckout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	tok := h.customerToken(t, "c-1")
	o := orders.Order{ID: "o-1", CustomerID: "c-1", Total: dec("35"), Status: orders.StatusProcessing, UpdatedAt: time.Now()}
	h.checkout.res = checkout.Result{Order: o}
	h.orders.order = o

	rec := h.do(http.MethodPost, "/api/checkout", tok, "", "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "35.00", decode(t, rec)["total"])
	assert.Equal(t, "k-1", h.checkout.gotKey)
	assert.Equal(t, "o-1", h.cache.idem["c-1:k-1"])
	assert.Equal(t, "Processing", h.cache.statuses["o-1"].Status)

	// replay through the cache shortcut never reaches the coordinator
	rec = h.do(http.MethodPost, "/api/checkout", tok, "", "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.checkout.calls)

	h.checkout.res.Replayed = true
	rec = h.do(http.MethodPost, "/api/checkout", tok, "", "Idempotency-Key", "k-2")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	tok := h.customerToken(t, "c-1")

	h.checkout.err = apperr.ErrEmptyCart
	rec := h.do(http.MethodPost, "/api/checkout", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decode(t, rec)["code"])

	h.checkout.err = apperr.UnknownProduct("p-gone")
	rec = h.do(http.MethodPost, "/api/checkout", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "p-gone", decode(t, rec)["product_id"])

	h.checkout.err = apperr.Conflict(errors.New("lock timeout"))
	rec = h.do(http.MethodPost, "/api/checkout", tok, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, true, decode(t, rec)["retryable"])
}

func TestMyOrders(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	o := orders.Order{ID: "o-1", CustomerID: "c-1", Total: dec("12.5"), Status: orders.StatusShipped,
		Items: []orders.OrderLine{{ID: "ol-1", ProductID: "p-1", ProductName: "Kopi", Quantity: 1, UnitPrice: dec("12.5")}}}
	h.orders.order = o
	h.orders.list = []orders.Order{o}

	rec := h.do(http.MethodGet, "/api/my-orders", h.customerToken(t, "c-1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "12.50", list[0]["total"])

	rec = h.do(http.MethodGet, "/api/my-orders/o-1", h.customerToken(t, "c-1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	assert.Equal(t, "Kopi", items[0].(map[string]any)["product_name"])

	rec = h.do(http.MethodGet, "/api/my-orders/o-1", h.customerToken(t, "c-2"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderStatusUsesCacheForOwnerOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.orders.order = orders.Order{ID: "o-1", CustomerID: "c-1", Status: orders.StatusProcessing}

	// miss -> DB -> cached
	rec := h.do(http.MethodGet, "/api/my-orders/o-1/status", h.customerToken(t, "c-1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["cached"])
	assert.Equal(t, 1, h.orders.dbReads)

	rec = h.do(http.MethodGet, "/api/my-orders/o-1/status", h.customerToken(t, "c-1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["cached"])
	assert.Equal(t, 1, h.orders.dbReads)

	rec = h.do(http.MethodGet, "/api/my-orders/o-1/status", h.customerToken(t, "c-2"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 2, h.orders.dbReads)
}

func TestAdminCapabilities(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.orders.list = []orders.Order{{ID: "o-1", CustomerID: "c-1", CustomerName: "Ani", CustomerEmail: "ani@example.com", Total: dec("1")}}

	for _, path := range []string{"/api/orders", "/api/dashboard"} {
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, path, "", "").Code, path)
		assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, path, h.merchantToken(t, auth.RoleStaff), "").Code, path)
		assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, path, h.customerToken(t, "c-1"), "").Code, path)
	}

	rec := h.do(http.MethodGet, "/api/orders", h.merchantToken(t, auth.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "ani@example.com", list[0]["customer_email"])

	h.orders.stats = orders.Stats{CompletedSales: dec("120"), TotalOrders: 3, TotalCustomers: 2}
	rec = h.do(http.MethodGet, "/api/dashboard", h.merchantToken(t, auth.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completed_sales":"120.00","total_orders":3,"total_customers":2,"top_products":[]}`, rec.Body.String())
}

func TestAdminUpdateStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	admin := h.merchantToken(t, auth.RoleAdmin)
	h.orders.order = orders.Order{ID: "o-1", CustomerID: "c-1", Status: orders.StatusShipped, Total: dec("1")}

	rec := h.do(http.MethodPut, "/api/orders/o-1", admin, `{"status":"shipped"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Shipped", decode(t, rec)["status"])
	assert.Equal(t, "Shipped", h.cache.statuses["o-1"].Status)

	rec = h.do(http.MethodPut, "/api/orders/o-1", admin, `{"status":"lost"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.orders.err = apperr.NotFound("order")
	rec = h.do(http.MethodPut, "/api/orders/o-9", admin, `{"status":"shipped"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
