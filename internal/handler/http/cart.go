package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// CatalogReader looks up products so a cart line can be added by id.
type CatalogReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// CartHandler exposes the cart store.
type CartHandler struct {
	cart    *cart.Store
	catalog CatalogReader
	logger  *slog.Logger
}

// NewCartHandler creates a cart handler.
func NewCartHandler(store *cart.Store, catalog CatalogReader, logger *slog.Logger) *CartHandler {
	return &CartHandler{cart: store, catalog: catalog, logger: logger}
}

// AddItemRequest adds either a catalog product by id or a product snapshot
// supplied by the caller. Quantities below 1 are treated as 1.
type AddItemRequest struct {
	ProductID string          `json:"product_id"`
	Product   *domain.Product `json:"product"`
	Quantity  int             `json:"quantity"`
}

// UpdateQuantityRequest sets a line's quantity. Values below 1 clamp to 1.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartView is the cart with its derived totals.
type CartView struct {
	Lines     []domain.CartLine `json:"lines"`
	Total     int64             `json:"total"`
	ItemCount int               `json:"item_count"`
}

func newCartView(c domain.Cart) CartView {
	return CartView{Lines: c.Lines, Total: c.Total(), ItemCount: c.ItemCount()}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, newCartView(h.cart.Cart()))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	var product domain.Product
	switch {
	case req.Product != nil:
		product = *req.Product
	case req.ProductID != "":
		p, err := h.catalog.GetProduct(r.Context(), req.ProductID)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		product = *p
	default:
		httputil.WriteError(w, r, apperrors.InvalidInput("product_id or product is required"), h.logger)
		return
	}

	h.cart.AddItem(r.Context(), product, req.Quantity)
	httputil.WriteData(w, http.StatusOK, newCartView(h.cart.Cart()))
}

// UpdateQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	h.cart.UpdateQuantity(r.Context(), chi.URLParam(r, "productId"), req.Quantity)
	httputil.WriteData(w, http.StatusOK, newCartView(h.cart.Cart()))
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.cart.RemoveItem(r.Context(), chi.URLParam(r, "productId"))
	httputil.WriteData(w, http.StatusOK, newCartView(h.cart.Cart()))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear(r.Context())
	httputil.WriteData(w, http.StatusOK, newCartView(h.cart.Cart()))
}
