// Package eventbus implements the Event Bus: a way for interested
// parties (an auto-execution backend, an audit log, a notification
// webhook) to observe every WorkItem the Router Service decides on,
// without the router knowing who is listening.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cognitive-bandwidth/router/pkg/models"
)

// Handler processes one published WorkItem for a topic.
type Handler func(ctx context.Context, item models.WorkItem) error

// Subscription identifies one Subscribe call so it can later be passed
// to Unsubscribe. The zero value is not a valid subscription.
type Subscription struct {
	id    uint64
	topic string
}

type subscriber struct {
	id      uint64
	handler Handler
}

// InMemoryBus is a synchronous, per-topic FIFO fan-out. Publish calls
// every subscribed handler in registration order on the caller's
// goroutine; a panicking or erroring handler is isolated so it never
// stops the remaining handlers from running, mirroring the per-
// operation error isolation in the teacher's leader-election and sink
// dispatch code.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]subscriber
	nextID   atomic.Uint64
	logger   *logrus.Logger
}

// NewInMemoryBus builds an empty bus.
func NewInMemoryBus(logger *logrus.Logger) *InMemoryBus {
	if logger == nil {
		logger = logrus.New()
	}
	return &InMemoryBus{handlers: make(map[string][]subscriber), logger: logger}
}

// Subscribe registers handler under topic and returns a Subscription
// that Unsubscribe can later remove. Handlers are invoked in the order
// they were subscribed.
func (b *InMemoryBus) Subscribe(topic string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.handlers[topic] = append(b.handlers[topic], subscriber{id: id, handler: handler})
	return Subscription{id: id, topic: topic}
}

// Unsubscribe removes the handler registered under sub, if it is still
// present. Unsubscribing an already-removed or zero-value Subscription
// is a no-op.
func (b *InMemoryBus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[sub.topic]
	for i, s := range subs {
		if s.id == sub.id {
			b.handlers[sub.topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish invokes every handler subscribed to topic with item. A
// handler that panics is recovered and logged as a failure; a handler
// that returns an error is logged the same way. Either case never
// aborts the remaining handlers.
func (b *InMemoryBus) Publish(ctx context.Context, topic string, item models.WorkItem) {
	b.mu.RLock()
	subs := append([]subscriber{}, b.handlers[topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(ctx, topic, s.handler, item)
	}
}

func (b *InMemoryBus) invoke(ctx context.Context, topic string, handler Handler, item models.WorkItem) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("topic", topic).WithField("panic", r).Error("event bus handler panicked")
		}
	}()
	if err := handler(ctx, item); err != nil {
		b.logger.WithError(err).WithField("topic", topic).Error("event bus handler failed")
	}
}
