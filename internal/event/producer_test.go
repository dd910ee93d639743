package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
	block  chan struct{}
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{topic: topic, event: event})
	return f.err
}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.events...)
}

var _ notify.Notifier = (*Producer)(nil)

func TestProducer_PublishesNotifications(t *testing.T) {
	fake := &fakePublisher{}
	p := NewProducer(fake, "storefront.notifications", "storefront.orders", 8, logger.Discard())

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	ctx = logger.WithSessionID(ctx, "tab-1")
	p.Success(ctx, "Mug added to cart")
	p.Error(context.Background(), "could not load product")
	require.NoError(t, p.Close(context.Background()))

	events := fake.all()
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "storefront.notifications", first.topic)
	assert.Equal(t, TypeNotification, first.event.EventType)
	assert.Equal(t, "tab-1", first.event.AggregateID)
	assert.Equal(t, "corr-1", first.event.CorrelationID)
	assert.Equal(t, "tab-1", first.event.Metadata[pkgkafka.MetadataSessionID])

	var data NotificationData
	require.NoError(t, first.event.UnmarshalData(&data))
	assert.Equal(t, notify.LevelSuccess, data.Level)
	assert.Equal(t, "Mug added to cart", data.Message)

	assert.Equal(t, SourceStorefront, events[1].event.AggregateID)
	assert.Empty(t, events[1].event.Metadata)
}

func TestProducer_PublishOrderResolved(t *testing.T) {
	fake := &fakePublisher{}
	p := NewProducer(fake, "n", "storefront.orders", 8, logger.Discard())

	p.PublishOrderResolved(context.Background(), domain.OrderStatusSession{
		MerchantReference: "ORD-42",
		CurrentStatus:     domain.OrderStatusPaid,
		PollAttempt:       3,
		State:             domain.PollStatePaid,
	})
	require.NoError(t, p.Close(context.Background()))

	events := fake.all()
	require.Len(t, events, 1)
	assert.Equal(t, "storefront.orders", events[0].topic)
	assert.Equal(t, "ORD-42", events[0].event.AggregateID)

	var data OrderResolvedData
	require.NoError(t, events[0].event.UnmarshalData(&data))
	assert.Equal(t, domain.PollStatePaid, data.State)
	assert.Equal(t, 3, data.Attempts)
}

func TestProducer_PublishFailureIsSwallowed(t *testing.T) {
	fake := &fakePublisher{err: errors.New("broker down")}
	p := NewProducer(fake, "n", "o", 8, logger.Discard())

	p.Success(context.Background(), "x")
	require.NoError(t, p.Close(context.Background()))
	assert.Len(t, fake.all(), 1)
}

func TestProducer_DropsWhenQueueFull(t *testing.T) {
	fake := &fakePublisher{block: make(chan struct{})}
	p := NewProducer(fake, "n", "o", 1, logger.Discard())

	for i := 0; i < 10; i++ {
		p.Success(context.Background(), "x")
	}
	close(fake.block)
	require.NoError(t, p.Close(context.Background()))

	got := len(fake.all())
	assert.GreaterOrEqual(t, got, 1)
	assert.LessOrEqual(t, got, 2)
}

func TestProducer_CloseIsIdempotentAndIgnoresLateEvents(t *testing.T) {
	fake := &fakePublisher{}
	p := NewProducer(fake, "n", "o", 1, logger.Discard())

	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))
	p.Success(context.Background(), "late")

	assert.Empty(t, fake.all())
}

func TestProducer_CloseHonoursDeadline(t *testing.T) {
	fake := &fakePublisher{block: make(chan struct{})}
	defer close(fake.block)
	p := NewProducer(fake, "n", "o", 4, logger.Discard())
	p.Success(context.Background(), "stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)
}
