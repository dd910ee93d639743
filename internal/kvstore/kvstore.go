package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
)

// Backend is a durable string key-value medium. Get returns an error
// wrapping apperrors.ErrNotFound when the key was never written.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

var (
	degradedGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_kvstore_degraded",
			Help: "1 when the key-value store has fallen back to memory after a backend failure",
		},
		[]string{"backend"},
	)

	backendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_kvstore_backend_errors_total",
			Help: "Backend failures seen by the key-value store, by operation",
		},
		[]string{"backend", "op"},
	)
)

// opTimeout bounds a single backend call.
const opTimeout = 5 * time.Second

// Keys used by the stores. Each holds only its own JSON array.
const (
	CartKeySuffix  = "cart"
	SavedKeySuffix = "saved-items"
)

// Key joins a namespace and a key suffix, e.g. "storefront:cart".
func Key(namespace, suffix string) string {
	return namespace + ":" + suffix
}

// Adapter is the only component that performs persistence I/O. It never
// returns errors: the first backend failure is logged and the adapter keeps
// serving every later call from memory for the rest of the process. Backend
// calls outlive the caller's cancellation and are bounded by opTimeout, so an
// abandoned request never counts as a backend failure.
type Adapter struct {
	backend Backend
	name    string
	logger  *slog.Logger

	mu       sync.Mutex
	degraded bool
	mem      map[string]string
}

// New creates an adapter over backend. name labels logs and metrics.
func New(backend Backend, name string, logger *slog.Logger) *Adapter {
	degradedGauge.WithLabelValues(name).Set(0)
	return &Adapter{
		backend: backend,
		name:    name,
		logger:  logger.With(slog.String("component", "kvstore"), slog.String("backend", name)),
		mem:     make(map[string]string),
	}
}

// Load returns the stored value for key. ok is false if the key was never
// written or cannot be read.
func (a *Adapter) Load(ctx context.Context, key string) (value string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.degraded {
		ioCtx, cancel := backendContext(ctx)
		v, err := a.backend.Get(ioCtx, key)
		cancel()
		switch {
		case err == nil:
			a.mem[key] = v
			return v, true
		case errors.Is(err, apperrors.ErrNotFound):
			delete(a.mem, key)
			return "", false
		default:
			a.degrade(ctx, "load", key, err)
		}
	}

	v, ok := a.mem[key]
	return v, ok
}

// Save overwrites key with value.
func (a *Adapter) Save(ctx context.Context, key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mem[key] = value
	if a.degraded {
		return
	}
	ioCtx, cancel := backendContext(ctx)
	defer cancel()
	if err := a.backend.Set(ioCtx, key, value); err != nil {
		a.degrade(ctx, "save", key, err)
	}
}

// Remove deletes key. Removing an absent key is not an error.
func (a *Adapter) Remove(ctx context.Context, key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.mem, key)
	if a.degraded {
		return
	}
	ioCtx, cancel := backendContext(ctx)
	defer cancel()
	if err := a.backend.Delete(ioCtx, key); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		a.degrade(ctx, "remove", key, err)
	}
}

// Degraded reports whether the adapter has fallen back to memory.
func (a *Adapter) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded
}

// HealthCheck reports a degraded adapter as health.ErrDegraded, and
// otherwise pings the backend.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.Degraded() {
		return fmt.Errorf("%s backend failed, serving from memory: %w", a.name, health.ErrDegraded)
	}
	return a.backend.Ping(ctx)
}

// backendContext keeps ctx values such as the trace span but drops its
// cancellation and deadline.
func backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
}

// degrade must be called with a.mu held.
func (a *Adapter) degrade(ctx context.Context, op, key string, err error) {
	backendErrors.WithLabelValues(a.name, op).Inc()
	a.degraded = true
	degradedGauge.WithLabelValues(a.name).Set(1)
	a.logger.WarnContext(ctx, "storage backend failed, continuing in memory for this session",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
