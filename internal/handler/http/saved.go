package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/saved"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// SavedHandler exposes the saved-items store.
type SavedHandler struct {
	saved  *saved.Store
	logger *slog.Logger
}

// NewSavedHandler creates a saved-items handler.
func NewSavedHandler(store *saved.Store, logger *slog.Logger) *SavedHandler {
	return &SavedHandler{saved: store, logger: logger}
}

// SavedItemRequest optionally carries the product name used in
// notifications. The product id is taken from the path.
type SavedItemRequest struct {
	Name string `json:"name" validate:"max=500"`
}

// SavedView lists saved product ids.
type SavedView struct {
	ProductIDs []string `json:"product_ids"`
	Count      int      `json:"count"`
}

// SavedStatus reports one product's membership.
type SavedStatus struct {
	ProductID string `json:"product_id"`
	Saved     bool   `json:"saved"`
}

func (h *SavedHandler) view() SavedView {
	ids := h.saved.IDs()
	return SavedView{ProductIDs: ids, Count: len(ids)}
}

// List handles GET /api/v1/saved
func (h *SavedHandler) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.view())
}

// Status handles GET /api/v1/saved/{productId}
func (h *SavedHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	httputil.WriteData(w, http.StatusOK, SavedStatus{ProductID: id, Saved: h.saved.IsSaved(id)})
}

// Add handles PUT /api/v1/saved/{productId}
func (h *SavedHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req SavedItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	h.saved.Add(r.Context(), chi.URLParam(r, "productId"), req.Name)
	httputil.WriteData(w, http.StatusOK, h.view())
}

// Remove handles DELETE /api/v1/saved/{productId}. The product name may be
// passed as the "name" query parameter.
func (h *SavedHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.saved.Remove(r.Context(), chi.URLParam(r, "productId"), r.URL.Query().Get("name"))
	httputil.WriteData(w, http.StatusOK, h.view())
}

// Toggle handles POST /api/v1/saved/{productId}/toggle
func (h *SavedHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req SavedItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	id := chi.URLParam(r, "productId")
	isSaved := h.saved.Toggle(r.Context(), domain.Product{ID: id, Name: req.Name})
	httputil.WriteData(w, http.StatusOK, SavedStatus{ProductID: id, Saved: isSaved})
}
