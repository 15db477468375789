package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PubSub provides in-memory publish-subscribe messaging for single-machine
// operation. It uses Go channels for message delivery and maintains topic
// subscriptions in memory. Delivery is non-blocking: a subscriber whose
// buffer is full misses messages rather than stalling the publisher.
type PubSub[T any] interface {
	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, message T) error

	// Subscribe creates a subscription to the specified topic.
	Subscribe(ctx context.Context, topic string) (<-chan Message[T], func(), error)

	// Close gracefully shuts down the pub-sub system.
	Close() error
}

// Message represents a published message with metadata.
type Message[T any] struct {
	// ID is a unique identifier for this message.
	ID string

	// Topic is the topic this message was published to.
	Topic string

	// Payload is the actual message content.
	Payload T

	// Timestamp when the message was published.
	Timestamp time.Time
}

// memoryPubSub provides the in-memory implementation.
type memoryPubSub[T any] struct {
	topics      map[string]*topic[T]
	topicsMutex sync.RWMutex
	bufferSize  int
	closed      bool
	closeMutex  sync.RWMutex
	messageID   int64
	idMutex     sync.Mutex
}

// topic represents a single topic with its subscribers.
type topic[T any] struct {
	name        string
	subscribers map[string]*subscriber[T]
	subMutex    sync.RWMutex
}

// subscriber represents a single subscription to a topic.
type subscriber[T any] struct {
	id      string
	channel chan Message[T]
	cancel  context.CancelFunc
}

// Option represents a functional option for configuring the PubSub system.
type Option[T any] func(*memoryPubSub[T])

// WithBufferSize sets the buffer size for subscriber channels.
func WithBufferSize[T any](size int) Option[T] {
	return func(p *memoryPubSub[T]) {
		if size > 0 {
			p.bufferSize = size
		}
	}
}

// NewPubSub creates a new in-memory pub-sub system with functional options.
func NewPubSub[T any](opts ...Option[T]) PubSub[T] {
	p := &memoryPubSub[T]{
		topics:     make(map[string]*topic[T]),
		bufferSize: 64, // default
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Publish sends a message to the specified topic.
func (p *memoryPubSub[T]) Publish(ctx context.Context, topicName string, message T) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p.closeMutex.RLock()
	defer p.closeMutex.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	t := p.getOrCreateTopic(topicName)

	msg := Message[T]{
		ID:        fmt.Sprintf("%d", p.nextMessageID()),
		Topic:     topicName,
		Payload:   message,
		Timestamp: time.Now(),
	}

	t.subMutex.RLock()
	subscribers := make([]*subscriber[T], 0, len(t.subscribers))
	for _, sub := range t.subscribers {
		subscribers = append(subscribers, sub)
	}
	t.subMutex.RUnlock()

	// Deliver to subscribers (non-blocking)
	for _, sub := range subscribers {
		select {
		case sub.channel <- msg:
		default:
			// Channel is full, skip this subscriber
		}
	}

	return nil
}

// Subscribe creates a subscription to the specified topic.
func (p *memoryPubSub[T]) Subscribe(ctx context.Context, topicName string) (<-chan Message[T], func(), error) {
	p.closeMutex.RLock()
	defer p.closeMutex.RUnlock()
	if p.closed {
		return nil, nil, ErrSubscriberClosed
	}

	t := p.getOrCreateTopic(topicName)

	subCtx, cancel := context.WithCancel(ctx)
	subscriberID := fmt.Sprintf("sub_%d_%d", time.Now().UnixNano(), p.nextMessageID())

	sub := &subscriber[T]{
		id:      subscriberID,
		channel: make(chan Message[T], p.bufferSize),
		cancel:  cancel,
	}

	t.subMutex.Lock()
	t.subscribers[subscriberID] = sub
	t.subMutex.Unlock()

	unsubscribe := func() {
		cancel()

		t.subMutex.Lock()
		if _, exists := t.subscribers[subscriberID]; exists {
			delete(t.subscribers, subscriberID)
			close(sub.channel)
		}
		t.subMutex.Unlock()
	}

	// Prune the subscription when its context ends
	go func() {
		<-subCtx.Done()
		unsubscribe()
	}()

	return sub.channel, unsubscribe, nil
}

// Close gracefully shuts down the pub-sub system.
func (p *memoryPubSub[T]) Close() error {
	p.closeMutex.Lock()
	defer p.closeMutex.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	p.topicsMutex.Lock()
	defer p.topicsMutex.Unlock()

	for _, t := range p.topics {
		t.subMutex.Lock()
		for _, sub := range t.subscribers {
			sub.cancel()
			close(sub.channel)
		}
		t.subscribers = make(map[string]*subscriber[T])
		t.subMutex.Unlock()
	}

	p.topics = make(map[string]*topic[T])
	return nil
}

func (p *memoryPubSub[T]) getOrCreateTopic(name string) *topic[T] {
	p.topicsMutex.RLock()
	if t, exists := p.topics[name]; exists {
		p.topicsMutex.RUnlock()
		return t
	}
	p.topicsMutex.RUnlock()

	p.topicsMutex.Lock()
	defer p.topicsMutex.Unlock()

	// Double-check after acquiring write lock
	if t, exists := p.topics[name]; exists {
		return t
	}

	t := &topic[T]{
		name:        name,
		subscribers: make(map[string]*subscriber[T]),
	}

	p.topics[name] = t
	return t
}

func (p *memoryPubSub[T]) nextMessageID() int64 {
	p.idMutex.Lock()
	defer p.idMutex.Unlock()
	p.messageID++
	return p.messageID
}
