// Package orderstatus drives the order confirmation page: after checkout
// returns, a Poller asks the order API for the payment status on a fixed
// interval until the order is paid, failed, unknown to the API, or the
// attempt budget runs out.
package orderstatus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/tracing"
)

// MessageMissingReference is shown when the page has no order to look up.
const MessageMissingReference = "missing order reference"

// StatusFetcher returns the raw status string for an order. An error wrapping
// apperrors.ErrNotFound means the API does not know the order.
type StatusFetcher interface {
	GetOrderStatus(ctx context.Context, merchantReference string) (string, error)
}

// Config controls polling cadence. Retention is how long a Tracker keeps a
// resolved session readable before dropping it; a Poller ignores it.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	Retention   time.Duration
}

// DefaultConfig polls every 3 seconds, at most 10 times, and keeps resolved
// sessions for 5 minutes.
func DefaultConfig() Config {
	return Config{
		Interval:    3 * time.Second,
		MaxAttempts: 10,
		Retention:   5 * time.Minute,
	}
}

// Option configures a Poller.
type Option func(*Poller)

// WithPreconfirmed marks the order as already settled when the page was
// opened, for example because the payment redirect carried the outcome. A
// terminal status puts the session straight into its terminal state and Start
// never fetches.
func WithPreconfirmed(status domain.OrderStatus) Option {
	return func(p *Poller) {
		switch status {
		case domain.OrderStatusPaid:
			p.session.CurrentStatus = status
			p.setTerminal(domain.PollStatePaid)
		case domain.OrderStatusFailed:
			p.session.CurrentStatus = status
			p.setTerminal(domain.PollStateFailed)
		}
	}
}

// Poller is the state machine for one order confirmation session:
//
//	INIT -> POLLING -> PAID | FAILED | TIMED_OUT | NOT_FOUND
//
// Every state on the right is terminal. A Poller is safe for concurrent use.
type Poller struct {
	fetcher StatusFetcher
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer

	mu       sync.Mutex
	session  domain.OrderStatusSession
	started  bool
	finished bool
	cancel   context.CancelFunc
	done     chan struct{}

	deliverMu sync.Mutex
	subsMu    sync.Mutex
	subs      map[uint64]func(domain.OrderStatusSession)
	nextSub   uint64
}

// New creates a poller for merchantReference. Polling begins with Start.
func New(merchantReference string, fetcher StatusFetcher, cfg Config, logger *slog.Logger, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}

	p := &Poller{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "orderstatus"), slog.String("merchant_reference", merchantReference)),
		tracer:  tracing.Tracer("github.com/utafrali/storefront/internal/orderstatus"),
		session: domain.OrderStatusSession{
			MerchantReference: merchantReference,
			CurrentStatus:     domain.OrderStatusUnknown,
			State:             domain.PollStateInit,
		},
		done: make(chan struct{}),
		subs: make(map[uint64]func(domain.OrderStatusSession)),
	}
	if merchantReference == "" {
		p.session.Message = MessageMissingReference
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// setTerminal moves the session into a terminal state. Callers hold p.mu or
// own p exclusively.
func (p *Poller) setTerminal(s domain.PollState) {
	p.session.State = s
	p.session.Message = s.Message()
	p.finishLocked()
}

func (p *Poller) finishLocked() {
	if p.finished {
		return
	}
	if p.session.IsPolling {
		activeSessions.Dec()
	}
	p.finished = true
	p.session.IsPolling = false
	if p.cancel != nil {
		p.cancel()
	}
	close(p.done)
}

// Start issues the first fetch immediately and then one per interval, on a
// goroutine owned by the poller. It does nothing when the reference is empty,
// the session is already terminal, or Start was called before. Cancelling ctx
// stops the poller.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.finished || p.session.MerchantReference == "" {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.session.State = domain.PollStatePolling
	p.session.IsPolling = true
	activeSessions.Inc()

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.DebugContext(ctx, "order status polling started")
	p.publish()
	go p.run(pollCtx)
}

func (p *Poller) run(ctx context.Context) {
	if p.tick(ctx) {
		return
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return
		case <-ticker.C:
			if p.tick(ctx) {
				return
			}
		}
	}
}

// tick performs one fetch and applies its result. It reports whether polling
// is over.
func (p *Poller) tick(ctx context.Context) bool {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return true
	}
	p.session.PollAttempt++
	attempt := p.session.PollAttempt
	ref := p.session.MerchantReference
	p.mu.Unlock()

	pollAttemptsTotal.Inc()

	ctx, span := p.tracer.Start(ctx, "orderstatus.fetch", trace.WithAttributes(
		attribute.String("order.merchant_reference", ref),
		attribute.Int("order.poll_attempt", attempt),
	))
	raw, err := p.fetcher.GetOrderStatus(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("order.status", raw))
	}
	span.End()

	return p.apply(ctx, raw, err)
}

func (p *Poller) apply(ctx context.Context, raw string, fetchErr error) bool {
	p.mu.Lock()
	if p.finished {
		// Stopped while the request was in flight.
		p.mu.Unlock()
		return true
	}

	switch {
	case errors.Is(fetchErr, apperrors.ErrNotFound):
		p.setTerminal(domain.PollStateNotFound)
	case fetchErr != nil:
		p.logger.WarnContext(ctx, "order status fetch failed",
			slog.Int("attempt", p.session.PollAttempt),
			slog.String("error", fetchErr.Error()),
		)
	default:
		p.session.CurrentStatus = domain.NormalizeOrderStatus(raw)
		switch p.session.CurrentStatus {
		case domain.OrderStatusPaid:
			p.setTerminal(domain.PollStatePaid)
		case domain.OrderStatusFailed:
			p.setTerminal(domain.PollStateFailed)
		}
	}

	if !p.finished && p.session.PollAttempt >= p.cfg.MaxAttempts {
		p.setTerminal(domain.PollStateTimedOut)
	}

	terminal := p.finished
	state := p.session.State
	attempt := p.session.PollAttempt
	p.mu.Unlock()

	if terminal {
		pollOutcomesTotal.WithLabelValues(string(state)).Inc()
		p.logger.InfoContext(ctx, "order status resolved",
			slog.String("state", string(state)),
			slog.Int("attempts", attempt),
		)
	}
	p.publish()
	return terminal
}

// Stop ends polling. Responses still in flight are discarded. The session
// keeps whatever state it had reached.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finishLocked()
	p.mu.Unlock()

	p.publish()
}

// Done is closed when the session reaches a terminal state or is stopped.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Snapshot returns the current session.
func (p *Poller) Snapshot() domain.OrderStatusSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Subscribe registers fn to receive the session after every change.
func (p *Poller) Subscribe(fn func(domain.OrderStatusSession)) (unsubscribe func()) {
	p.subsMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subsMu.Unlock()

	return func() {
		p.subsMu.Lock()
		delete(p.subs, id)
		p.subsMu.Unlock()
	}
}

// publish hands the latest session to subscribers. Deliveries are serialised
// so no subscriber sees an older session after a newer one.
func (p *Poller) publish() {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	snapshot := p.Snapshot()

	p.subsMu.Lock()
	fns := make([]func(domain.OrderStatusSession), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subsMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
