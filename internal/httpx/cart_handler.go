package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/cart"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	AddItem(ctx context.Context, customerID, productID string, qty int) (cart.Line, error)
	GetCart(ctx context.Context, customerID string) (cart.View, error)
	UpdateLine(ctx context.Context, customerID, lineID string, qty int) (cart.Line, error)
	RemoveLine(ctx context.Context, customerID, lineID string) (cart.Line, error)
}

type CartHandler struct {
	Carts CartService
	Auth  Verifier
	Log   *slog.Logger
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateLineReq struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireCustomer(h.Auth))
		r.Post("/api/cart", h.addItem)
		r.Get("/api/cart", h.getCart)
		r.Put("/api/cart/items/{id}", h.updateLine)
		r.Delete("/api/cart/items/{id}", h.removeLine)
	})
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	line, err := h.Carts.AddItem(ctx, customerID(r), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLine(line))
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	v, err := h.Carts.GetCart(ctx, customerID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(v))
}

func (h *CartHandler) updateLine(w http.ResponseWriter, r *http.Request) {
	var req updateLineReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	line, err := h.Carts.UpdateLine(ctx, customerID(r), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLine(line))
}

func (h *CartHandler) removeLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	line, err := h.Carts.RemoveLine(ctx, customerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLine(line))
}
