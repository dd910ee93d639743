package orderstatus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// TerminalHook is called once when a tracked session reaches a terminal
// state.
type TerminalHook func(ctx context.Context, session domain.OrderStatusSession)

// Tracker owns one Poller per merchant reference so that repeated requests
// for the same confirmation page share a session. Resolved sessions stay
// readable for Config.Retention and are then dropped.
type Tracker struct {
	fetcher StatusFetcher
	cfg     Config
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pollers  map[string]*Poller
	evictors map[string]*time.Timer
	hooks    []TerminalHook
	closed   bool
}

// NewTracker creates an empty tracker.
func NewTracker(fetcher StatusFetcher, cfg Config, logger *slog.Logger) *Tracker {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		pollers:  make(map[string]*Poller),
		evictors: make(map[string]*time.Timer),
	}
}

// OnTerminal registers a hook run when any session resolves. Register hooks
// before the first Watch.
func (t *Tracker) OnTerminal(hook TerminalHook) {
	t.mu.Lock()
	t.hooks = append(t.hooks, hook)
	t.mu.Unlock()
}

// Watch returns the session for merchantReference, starting a poller if none
// exists. preconfirmed may be empty; see WithPreconfirmed. Watching a
// reference that is already tracked returns the existing session unchanged.
func (t *Tracker) Watch(merchantReference string, preconfirmed domain.OrderStatus) domain.OrderStatusSession {
	t.mu.Lock()
	if p, ok := t.pollers[merchantReference]; ok {
		t.mu.Unlock()
		return p.Snapshot()
	}
	if t.closed {
		t.mu.Unlock()
		return New(merchantReference, t.fetcher, t.cfg, t.logger).Snapshot()
	}

	var opts []Option
	if preconfirmed != "" {
		opts = append(opts, WithPreconfirmed(preconfirmed))
	}
	p := New(merchantReference, t.fetcher, t.cfg, t.logger, opts...)
	t.pollers[merchantReference] = p
	hooks := append([]TerminalHook(nil), t.hooks...)
	t.mu.Unlock()

	var once sync.Once
	fire := func(s domain.OrderStatusSession) {
		once.Do(func() {
			ctx := context.WithoutCancel(t.ctx)
			for _, hook := range hooks {
				hook(ctx, s)
			}
			t.scheduleEviction(merchantReference, p)
		})
	}

	if s := p.Snapshot(); s.State.IsTerminal() {
		fire(s)
		return s
	}

	p.Subscribe(func(s domain.OrderStatusSession) {
		if s.State.IsTerminal() {
			fire(s)
		}
	})
	p.Start(t.ctx)
	return p.Snapshot()
}

// scheduleEviction drops p after the retention window unless the reference
// has been forgotten or re-watched in the meantime.
func (t *Tracker) scheduleEviction(merchantReference string, p *Poller) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.pollers[merchantReference] != p {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.cfg.Retention, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.pollers[merchantReference] == p {
			delete(t.pollers, merchantReference)
		}
		if t.evictors[merchantReference] == timer {
			delete(t.evictors, merchantReference)
		}
	})
	t.evictors[merchantReference] = timer
}

// Get returns the tracked session for merchantReference.
func (t *Tracker) Get(merchantReference string) (domain.OrderStatusSession, bool) {
	t.mu.Lock()
	p, ok := t.pollers[merchantReference]
	t.mu.Unlock()
	if !ok {
		return domain.OrderStatusSession{}, false
	}
	return p.Snapshot(), true
}

// Forget stops the session's poller and drops it, as when the confirmation
// page is closed.
func (t *Tracker) Forget(merchantReference string) bool {
	t.mu.Lock()
	p, ok := t.pollers[merchantReference]
	delete(t.pollers, merchantReference)
	if timer, scheduled := t.evictors[merchantReference]; scheduled {
		timer.Stop()
		delete(t.evictors, merchantReference)
	}
	t.mu.Unlock()

	if ok {
		p.Stop()
	}
	return ok
}

// Len returns the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pollers)
}

// Close stops every poller and pending eviction. Later Watch calls return an
// unstarted session.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	pollers := make([]*Poller, 0, len(t.pollers))
	for _, p := range t.pollers {
		pollers = append(pollers, p)
	}
	for ref, timer := range t.evictors {
		timer.Stop()
		delete(t.evictors, ref)
	}
	t.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
	t.cancel()
}
