// Package bus is a small in-process publish/subscribe channel keyed by topic.
//
// Handlers run synchronously on the publishing goroutine, in subscription
// order. A handler that panics is logged and skipped; the remaining handlers
// still receive the payload.
package bus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/paperbroker/internal/logging"
)

// Handler receives a published payload.
type Handler func(payload any)

// Subscription identifies one registered handler so it can be removed.
type Subscription struct {
	topic string
	id    uint64
}

type entry struct {
	id uint64
	fn Handler
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]entry
	nextID uint64
	log    *zap.Logger
}

func New(log *zap.Logger) *Bus {
	return &Bus{
		subs: make(map[string][]entry),
		log:  logging.OrNop(log),
	}
}

// Subscribe registers fn for topic.
func (b *Bus) Subscribe(topic string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[topic] = append(b.subs[topic], entry{id: b.nextID, fn: fn})
	return Subscription{topic: topic, id: b.nextID}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[s.topic]
	for i, e := range list {
		if e.id != s.id {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		break
	}
	if len(list) == 0 {
		delete(b.subs, s.topic)
		return
	}
	b.subs[s.topic] = list
}

// SubscriberCount returns the number of handlers registered for topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish delivers payload to every handler of topic. The handler list is
// copied before delivery, so handlers may subscribe or publish themselves.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	list := make([]entry, len(b.subs[topic]))
	copy(list, b.subs[topic])
	b.mu.RUnlock()

	for _, e := range list {
		b.deliver(topic, e.fn, payload)
	}
}

func (b *Bus) deliver(topic string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus handler panic", zap.String("topic", topic), zap.Any("panic", r))
		}
	}()
	fn(payload)
}
