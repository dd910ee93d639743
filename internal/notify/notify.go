// Package notify delivers the short user-facing messages the stores emit,
// such as "Mug added to cart".
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level distinguishes success from error messages.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one transient message.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier is a fire-and-forget sink. Implementations must not block for
// long and never fail the caller.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

func newNotification(level Level, message string) Notification {
	return Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notify"))}
}

func (n *LogNotifier) Success(ctx context.Context, message string) {
	n.logger.InfoContext(ctx, "notification", slog.String("level", string(LevelSuccess)), slog.String("message", message))
}

func (n *LogNotifier) Error(ctx context.Context, message string) {
	n.logger.WarnContext(ctx, "notification", slog.String("level", string(LevelError)), slog.String("message", message))
}

// DefaultRecorderCapacity bounds the queue when nobody drains it.
const DefaultRecorderCapacity = 100

// Recorder queues notifications until the presentation layer drains them.
// It is a fixed ring: when full, the oldest entry is overwritten.
type Recorder struct {
	mu   sync.Mutex
	ring []Notification
	head int
	size int
}

// NewRecorder creates a recorder holding at most capacity entries.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	return &Recorder{ring: make([]Notification, capacity)}
}

func (r *Recorder) Success(_ context.Context, message string) {
	r.push(newNotification(LevelSuccess, message))
}

func (r *Recorder) Error(_ context.Context, message string) {
	r.push(newNotification(LevelError, message))
}

func (r *Recorder) push(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tail := (r.head + r.size) % len(r.ring)
	r.ring[tail] = n
	if r.size == len(r.ring) {
		r.head = (r.head + 1) % len(r.ring)
		return
	}
	r.size++
}

// snapshotLocked copies the queued entries oldest first.
func (r *Recorder) snapshotLocked() []Notification {
	out := make([]Notification, r.size)
	for i := range out {
		out[i] = r.ring[(r.head+i)%len(r.ring)]
	}
	return out
}

// Drain returns queued notifications oldest first and empties the queue.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.snapshotLocked()
	clear(r.ring)
	r.head, r.size = 0, 0
	return out
}

// Messages returns the queued message texts without draining. Useful in tests.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, r.size)
	for i, n := range r.snapshotLocked() {
		msgs[i] = n.Message
	}
	return msgs
}

// Multi fans a notification out to several sinks in order.
type Multi []Notifier

func (m Multi) Success(ctx context.Context, message string) {
	for _, n := range m {
		n.Success(ctx, message)
	}
}

func (m Multi) Error(ctx context.Context, message string) {
	for _, n := range m {
		n.Error(ctx, message)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Success(context.Context, string) {}
func (Discard) Error(context.Context, string)   {}
