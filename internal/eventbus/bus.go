package eventbus

import (
	"sync"
	"time"
)

// Notification is one published tender message routed through the bus.
// Category is the subscriber filter attribute.
type Notification struct {
	Category    string
	Subject     string
	Body        []byte
	PublishedAt time.Time
}

// Bus is an in-process pub/sub hub that routes tender notifications to
// subscribers by category. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan<- Notification
	closed      bool
}

// All subscribes to every category.
const All = "*"

func New() *Bus {
	return &Bus{subscribers: make(map[string][]chan<- Notification)}
}

// Subscribe registers a channel for one category (or All). The caller owns
// the channel and its buffer; slow subscribers have notifications dropped.
func (b *Bus) Subscribe(category string, ch chan<- Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[category] = append(b.subscribers[category], ch)
}

// Unsubscribe removes a previously registered channel from a category.
func (b *Bus) Unsubscribe(category string, ch chan<- Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[category]
	for i, existing := range subs {
		if existing == ch {
			b.subscribers[category] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers a notification to the category's subscribers and to
// wildcard subscribers. Full channels are skipped; publish never blocks.
func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	deliver := func(chs []chan<- Notification) {
		for _, ch := range chs {
			select {
			case ch <- n:
			default:
				// drop for slow subscribers
			}
		}
	}
	deliver(b.subscribers[n.Category])
	deliver(b.subscribers[All])
}

// Close makes further publishes no-ops. Subscriber channels stay open;
// closing them is the subscriber's job.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
