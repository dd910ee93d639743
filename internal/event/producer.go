package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Event types and envelope constants.
const (
	TypeNotification  = "storefront.notification"
	TypeOrderResolved = "storefront.order.resolved"

	AggregateTypeNotification = "notification"
	AggregateTypeOrder        = "order"

	SourceStorefront = "storefront"
)

const publishTimeout = 5 * time.Second

// NotificationData is the payload of a storefront.notification event.
type NotificationData struct {
	Level   notify.Level `json:"level"`
	Message string       `json:"message"`
}

// OrderResolvedData is the payload of a storefront.order.resolved event.
type OrderResolvedData struct {
	MerchantReference string             `json:"merchant_reference"`
	State             domain.PollState   `json:"state"`
	Status            domain.OrderStatus `json:"status"`
	Attempts          int                `json:"attempts"`
}

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

type pending struct {
	ctx   context.Context
	topic string
	event *pkgkafka.Event
}

// Producer publishes storefront events without blocking callers: events are
// queued and written by a background goroutine. When the queue is full new
// events are dropped and logged.
type Producer struct {
	kafka             Publisher
	notificationTopic string
	orderTopic        string
	logger            *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan pending
	done   chan struct{}
}

// NewProducer creates a producer and starts its publishing goroutine.
func NewProducer(kafka Publisher, notificationTopic, orderTopic string, buffer int, logger *slog.Logger) *Producer {
	if buffer <= 0 {
		buffer = 256
	}
	p := &Producer{
		kafka:             kafka,
		notificationTopic: notificationTopic,
		orderTopic:        orderTopic,
		logger:            logger.With(slog.String("component", "event")),
		queue:             make(chan pending, buffer),
		done:              make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Producer) run() {
	defer close(p.done)
	for item := range p.queue {
		ctx, cancel := context.WithTimeout(item.ctx, publishTimeout)
		if err := p.kafka.Publish(ctx, item.topic, item.event); err != nil {
			p.logger.WarnContext(ctx, "dropping storefront event after publish failure",
				slog.String("event_type", item.event.EventType),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}

// Success publishes a success notification. It implements notify.Notifier.
func (p *Producer) Success(ctx context.Context, message string) {
	p.publishNotification(ctx, notify.LevelSuccess, message)
}

// Error publishes an error notification. It implements notify.Notifier.
func (p *Producer) Error(ctx context.Context, message string) {
	p.publishNotification(ctx, notify.LevelError, message)
}

func (p *Producer) publishNotification(ctx context.Context, level notify.Level, message string) {
	aggregateID := logger.SessionIDFromContext(ctx)
	if aggregateID == "" {
		aggregateID = SourceStorefront
	}
	p.enqueue(ctx, p.notificationTopic, TypeNotification, aggregateID, AggregateTypeNotification,
		NotificationData{Level: level, Message: message})
}

// PublishOrderResolved announces that a confirmation session reached a
// terminal state.
func (p *Producer) PublishOrderResolved(ctx context.Context, s domain.OrderStatusSession) {
	p.enqueue(ctx, p.orderTopic, TypeOrderResolved, s.MerchantReference, AggregateTypeOrder, OrderResolvedData{
		MerchantReference: s.MerchantReference,
		State:             s.State,
		Status:            s.CurrentStatus,
		Attempts:          s.PollAttempt,
	})
}

func (p *Producer) enqueue(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) {
	event, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "build event", slog.String("event_type", eventType), slog.String("error", err.Error()))
		return
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata(pkgkafka.MetadataSessionID, logger.SessionIDFromContext(ctx))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- pending{ctx: context.WithoutCancel(ctx), topic: topic, event: event}:
	default:
		p.logger.WarnContext(ctx, "event queue full, dropping event", slog.String("event_type", eventType))
	}
}

// Close stops accepting events and waits for queued ones to be published or
// for ctx to expire.
func (p *Producer) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush storefront events: %w", ctx.Err())
	}
}
