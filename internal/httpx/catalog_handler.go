package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/inventory"
	"github.com/go-chi/chi/v5"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]inventory.Product, error)
}

type CatalogHandler struct {
	Products ProductLister
	Log      *slog.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/api/products", h.listProducts)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListProducts(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]productJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProduct(p))
	}
	writeJSON(w, http.StatusOK, out)
}
