package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/auth"
	"github.com/ariefcatur/go-cart-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AdminHandler serves the merchant back office.
type AdminHandler struct {
	Orders OrderService
	Cache  OrderCache // optional
	Auth   Verifier
	Log    *slog.Logger
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.With(RequireCapability(h.Auth, auth.CanManageOrders)).Get("/api/orders", h.listAll)
	r.With(RequireCapability(h.Auth, auth.CanManageOrders)).Put("/api/orders/{id}", h.updateStatus)
	r.With(RequireCapability(h.Auth, auth.CanViewDashboard)).Get("/api/dashboard", h.dashboard)
}

func (h *AdminHandler) listAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.ListAll(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(list))
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status, middleware.GetReqID(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.SetStatusIfNewer(ctx, redisx.OrderStatus{
			OrderID: o.ID, CustomerID: o.CustomerID, Status: string(o.Status), UpdatedAt: o.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s, err := h.Orders.Dashboard(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toStats(s))
}
