// Package event provides the console's publish-subscribe bus. Scan results
// are published per session and per client token so that sessions can
// stream each other's output without holding references.
package event

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Handler handles one published event.
type Handler func(ctx context.Context, topic string, data any)

// Topic helpers.
const (
	TopicScanResult = "scan.result."
	TopicClient     = "client."
	TopicTarget     = "target.added"
	TopicCredential = "credential.added"
	TopicSession    = "session.created"
	TopicSessionEnd = "session.closed"
)

// ScanResultTopic is the topic results of one scanner session go to.
func ScanResultTopic(sessionID string) string { return TopicScanResult + sessionID }

// ClientTopic is the topic results streamed to a client token go to.
func ClientTopic(token string) string { return TopicClient + token }

// EventBus is the interface sessions see.
type EventBus interface {
	Subscribe(topic string, handler Handler) (unsubscribe func())
	Publish(ctx context.Context, topic string, data any)
}

type subscription struct {
	id      uint64
	pattern string
	prefix  bool
	handler Handler
}

func (s subscription) matches(topic string) bool {
	if s.prefix {
		return strings.HasPrefix(topic, s.pattern)
	}
	return s.pattern == topic
}

// Bus is the default EventBus. Handlers run synchronously in subscription
// order so a subscriber sees events of one topic in publish order.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
	next atomic.Uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers handler for topic. A topic ending in "*" matches
// every topic with that prefix.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	sub := subscription{id: b.next.Add(1), pattern: topic, handler: handler}
	if p, ok := strings.CutSuffix(topic, "*"); ok {
		sub.pattern, sub.prefix = p, true
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers data to every matching handler.
func (b *Bus) Publish(ctx context.Context, topic string, data any) {
	b.mu.RLock()
	var handlers []Handler
	for _, s := range b.subs {
		if s.matches(topic) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, topic, data)
	}
}

// PublishAsync delivers data on a new goroutine per handler.
func (b *Bus) PublishAsync(ctx context.Context, topic string, data any) {
	b.mu.RLock()
	var handlers []Handler
	for _, s := range b.subs {
		if s.matches(topic) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		go h(ctx, topic, data)
	}
}

// Subscribers returns the number of registered handlers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
