package http

import (
	"net/http"

	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/pkg/httputil"
)

// NotificationSource hands out queued notifications once.
type NotificationSource interface {
	Drain() []notify.Notification
}

// NotificationHandler lets the UI collect transient messages.
type NotificationHandler struct {
	source NotificationSource
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(source NotificationSource) *NotificationHandler {
	return &NotificationHandler{source: source}
}

// Drain handles GET /api/v1/notifications
func (h *NotificationHandler) Drain(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.source.Drain())
}
