package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/checkout"
	"github.com/ariefcatur/go-cart-checkout/internal/orders"
	"github.com/ariefcatur/go-cart-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Checkouter interface {
	Checkout(ctx context.Context, customerID, idemKey, traceID string) (checkout.Result, error)
}

type OrderService interface {
	ListMine(ctx context.Context, customerID string) ([]orders.Order, error)
	GetMine(ctx context.Context, customerID, orderID string) (orders.Order, error)
	StatusMine(ctx context.Context, customerID, orderID string) (orders.Order, error)
	ListAll(ctx context.Context) ([]orders.Order, error)
	Dashboard(ctx context.Context) (orders.Stats, error)
	UpdateStatus(ctx context.Context, orderID, status, traceID string) (orders.Order, error)
}

// OrderCache is the Redis shortcut layer. Postgres stays the source of truth,
// so cache errors are ignored.
type OrderCache interface {
	GetStatus(ctx context.Context, orderID string) (redisx.OrderStatus, bool, error)
	SetStatusIfNewer(ctx context.Context, st redisx.OrderStatus) error
	CheckoutOrderID(ctx context.Context, customerID, key string) (string, bool, error)
	RememberCheckout(ctx context.Context, customerID, key, orderID string) error
}

type OrdersHandler struct {
	Checkout Checkouter
	Orders   OrderService
	Cache    OrderCache // optional
	Auth     Verifier
	Log      *slog.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireCustomer(h.Auth))
		r.Post("/api/checkout", h.checkout)
		r.Get("/api/my-orders", h.listMine)
		r.Get("/api/my-orders/{id}", h.getMine)
		r.Get("/api/my-orders/{id}/status", h.statusMine)
	})
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	cust := customerID(r)
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis (optional, DB tetap jadi kebenaran)
	if key != "" && h.Cache != nil {
		if id, ok, err := h.Cache.CheckoutOrderID(ctx, cust, key); err == nil && ok {
			if o, err := h.Orders.GetMine(ctx, cust, id); err == nil {
				writeJSON(w, http.StatusOK, toOrder(o))
				return
			}
		}
	}

	res, err := h.Checkout.Checkout(ctx, cust, key, middleware.GetReqID(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	if h.Cache != nil {
		if key != "" {
			_ = h.Cache.RememberCheckout(ctx, cust, key, res.Order.ID)
		}
		h.cacheStatus(ctx, res.Order)
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, toOrder(res.Order))
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListMine(ctx, customerID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(list))
}

func (h *OrdersHandler) getMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetMine(ctx, customerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *OrdersHandler) statusMine(w http.ResponseWriter, r *http.Request) {
	cust := customerID(r)
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache; entry milik customer lain diperlakukan seperti miss
	if h.Cache != nil {
		if st, ok, err := h.Cache.GetStatus(ctx, orderID); err == nil && ok && st.CustomerID == cust {
			writeJSON(w, http.StatusOK, statusJSON{OrderID: st.OrderID, Status: st.Status, UpdatedAt: st.UpdatedAt, Cached: true})
			return
		}
	}

	// 2) fallback DB
	o, err := h.Orders.StatusMine(ctx, cust, orderID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusJSON{OrderID: o.ID, Status: string(o.Status), UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Cache == nil {
		return
	}
	_ = h.Cache.SetStatusIfNewer(ctx, redisx.OrderStatus{
		OrderID: o.ID, CustomerID: o.CustomerID, Status: string(o.Status), UpdatedAt: o.UpdatedAt,
	})
}
