package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/saved"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

const serviceName = "storefront"

// Dependencies are the stores and collaborators the router exposes.
type Dependencies struct {
	Cart          *cart.Store
	Saved         *saved.Store
	Catalog       Catalog
	Orders        OrderTracker
	Notifications NotificationSource
	Health        *health.Handler
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(deps.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	cartHandler := NewCartHandler(deps.Cart, deps.Catalog, logger)
	savedHandler := NewSavedHandler(deps.Saved, logger)
	orderHandler := NewOrderHandler(deps.Orders, logger)
	catalogHandler := NewCatalogHandler(deps.Catalog, logger)
	notificationHandler := NewNotificationHandler(deps.Notifications)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.UpdateQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.Route("/saved", func(r chi.Router) {
			r.Get("/", savedHandler.List)
			r.Get("/{productId}", savedHandler.Status)
			r.Put("/{productId}", savedHandler.Add)
			r.Delete("/{productId}", savedHandler.Remove)
			r.Post("/{productId}/toggle", savedHandler.Toggle)
		})

		r.Route("/orders/{reference}", func(r chi.Router) {
			r.Get("/", orderHandler.Get)
			r.Delete("/", orderHandler.Forget)
			r.Post("/watch", orderHandler.Watch)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", catalogHandler.ListProducts)
			r.Get("/products/{productId}", catalogHandler.GetProduct)
			r.Get("/categories", catalogHandler.ListCategories)
		})

		r.Get("/notifications", notificationHandler.Drain)
	})

	return r
}
