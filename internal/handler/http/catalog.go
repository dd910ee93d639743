package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

// Catalog is the read side of the storefront API.
type Catalog interface {
	CatalogReader
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// CatalogHandler forwards catalog reads so the UI talks to one origin.
type CatalogHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(catalog Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// ListProducts handles GET /api/v1/catalog/products?page=&per_page=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		CategoryID: q.Get("category"),
		Search:     q.Get("search"),
	}
	if raw := q.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("featured must be a boolean"), h.logger)
			return
		}
		filter.Featured = &featured
	}

	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, pagination.Paginate(products, pagination.FromRequest(r)))
}

// GetProduct handles GET /api/v1/catalog/products/{productId}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// ListCategories handles GET /api/v1/catalog/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}
