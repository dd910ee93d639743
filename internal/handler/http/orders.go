package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// OrderTracker manages order confirmation sessions.
type OrderTracker interface {
	Watch(merchantReference string, preconfirmed domain.OrderStatus) domain.OrderStatusSession
	Get(merchantReference string) (domain.OrderStatusSession, bool)
	Forget(merchantReference string) bool
}

// OrderHandler exposes order confirmation sessions.
type OrderHandler struct {
	tracker OrderTracker
	logger  *slog.Logger
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(tracker OrderTracker, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{tracker: tracker, logger: logger}
}

// WatchOrderRequest opens a confirmation session. PreconfirmedStatus carries
// an outcome already known from the payment redirect, if any.
type WatchOrderRequest struct {
	PreconfirmedStatus string `json:"preconfirmed_status" validate:"omitempty,max=64"`
}

// Watch handles POST /api/v1/orders/{reference}/watch
func (h *OrderHandler) Watch(w http.ResponseWriter, r *http.Request) {
	var req WatchOrderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	var preconfirmed domain.OrderStatus
	if req.PreconfirmedStatus != "" {
		preconfirmed = domain.NormalizeOrderStatus(req.PreconfirmedStatus)
	}

	session := h.tracker.Watch(chi.URLParam(r, "reference"), preconfirmed)
	httputil.WriteData(w, http.StatusAccepted, session)
}

// Get handles GET /api/v1/orders/{reference}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	session, ok := h.tracker.Get(ref)
	if !ok {
		httputil.WriteError(w, r, apperrors.NotFound("order session", ref), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, session)
}

// Forget handles DELETE /api/v1/orders/{reference}
func (h *OrderHandler) Forget(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	if !h.tracker.Forget(ref) {
		httputil.WriteError(w, r, apperrors.NotFound("order session", ref), h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
