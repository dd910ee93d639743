package orderstatus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

type hookRecorder struct {
	mu       sync.Mutex
	sessions []domain.OrderStatusSession
}

func (h *hookRecorder) hook(_ context.Context, s domain.OrderStatusSession) {
	h.mu.Lock()
	h.sessions = append(h.sessions, s)
	h.mu.Unlock()
}

func (h *hookRecorder) all() []domain.OrderStatusSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.OrderStatusSession(nil), h.sessions...)
}

func TestTracker_WatchSharesSession(t *testing.T) {
	f := script(response{status: "PENDING"})
	tr := NewTracker(f, Config{Interval: time.Hour, MaxAttempts: 10}, logger.Discard())
	t.Cleanup(tr.Close)

	tr.Watch("ORD-1", "")
	tr.Watch("ORD-1", "")
	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, 1, tr.Len())
	s, ok := tr.Get("ORD-1")
	require.True(t, ok)
	assert.Equal(t, domain.PollStatePolling, s.State)
}

func TestTracker_OnTerminalFiresOnce(t *testing.T) {
	f := script(response{status: "PENDING"}, response{status: "PAID"})
	tr := NewTracker(f, fastConfig(10), logger.Discard())
	t.Cleanup(tr.Close)

	rec := &hookRecorder{}
	tr.OnTerminal(rec.hook)
	tr.Watch("ORD-2", "")

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, domain.PollStatePaid, got[0].State)
	assert.Equal(t, "ORD-2", got[0].MerchantReference)
}

func TestTracker_PreconfirmedFiresHookWithoutFetching(t *testing.T) {
	f := script(response{status: "PENDING"})
	tr := NewTracker(f, fastConfig(10), logger.Discard())
	t.Cleanup(tr.Close)

	rec := &hookRecorder{}
	tr.OnTerminal(rec.hook)
	s := tr.Watch("ORD-3", domain.OrderStatusPaid)

	assert.Equal(t, domain.PollStatePaid, s.State)
	require.Len(t, rec.all(), 1)
	assert.Equal(t, 0, f.Calls())
}

func TestTracker_StoppedSessionDoesNotFireHook(t *testing.T) {
	f := script(response{status: "PENDING"})
	tr := NewTracker(f, Config{Interval: time.Hour, MaxAttempts: 10}, logger.Discard())

	rec := &hookRecorder{}
	tr.OnTerminal(rec.hook)
	tr.Watch("ORD-4", "")
	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)

	assert.True(t, tr.Forget("ORD-4"))
	assert.False(t, tr.Forget("ORD-4"))
	_, ok := tr.Get("ORD-4")
	assert.False(t, ok)

	tr.Close()
	assert.Empty(t, rec.all())
}

func TestTracker_CloseStopsPollers(t *testing.T) {
	f := script(response{status: "PENDING"})
	tr := NewTracker(f, Config{Interval: time.Hour, MaxAttempts: 10}, logger.Discard())

	tr.Watch("ORD-5", "")
	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)
	tr.Close()

	s, ok := tr.Get("ORD-5")
	require.True(t, ok)
	assert.False(t, s.IsPolling)

	late := tr.Watch("ORD-6", "")
	assert.Equal(t, domain.PollStateInit, late.State)
	assert.Equal(t, 1, f.Calls())
}

func TestTracker_EvictsResolvedSessionsAfterRetention(t *testing.T) {
	f := script(response{err: apperrors.NotFound("order", "x")})
	cfg := fastConfig(10)
	cfg.Retention = 20 * time.Millisecond
	tr := NewTracker(f, cfg, logger.Discard())
	t.Cleanup(tr.Close)

	refs := make([]string, 200)
	for i := range refs {
		refs[i] = fmt.Sprintf("ORD-%d", i)
		tr.Watch(refs[i], "")
	}

	require.Eventually(t, func() bool { return tr.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	_, ok := tr.Get(refs[0])
	assert.False(t, ok)
}

func TestTracker_ResolvedSessionReadableWithinRetention(t *testing.T) {
	f := script(response{status: "PAID"})
	cfg := fastConfig(10)
	cfg.Retention = time.Hour
	tr := NewTracker(f, cfg, logger.Discard())
	t.Cleanup(tr.Close)

	tr.Watch("ORD-7", "")
	require.Eventually(t, func() bool {
		s, ok := tr.Get("ORD-7")
		return ok && s.State == domain.PollStatePaid
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_PreconfirmedSessionIsEvicted(t *testing.T) {
	f := script(response{status: "PENDING"})
	cfg := fastConfig(10)
	cfg.Retention = 10 * time.Millisecond
	tr := NewTracker(f, cfg, logger.Discard())
	t.Cleanup(tr.Close)

	tr.Watch("ORD-8", domain.OrderStatusFailed)
	require.Eventually(t, func() bool { return tr.Len() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, f.Calls())
}

func TestTracker_EvictionSparesRewatchedReference(t *testing.T) {
	f := script(response{status: "PAID"})
	cfg := fastConfig(10)
	cfg.Retention = 30 * time.Millisecond
	tr := NewTracker(f, cfg, logger.Discard())
	t.Cleanup(tr.Close)

	tr.Watch("ORD-9", domain.OrderStatusPaid)
	require.True(t, tr.Forget("ORD-9"))

	block := make(chan struct{})
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()
	defer close(block)

	tr.Watch("ORD-9", "")
	time.Sleep(60 * time.Millisecond)

	s, ok := tr.Get("ORD-9")
	require.True(t, ok)
	assert.Equal(t, domain.PollStatePolling, s.State)
}
