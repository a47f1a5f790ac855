// Package feed fans newly issued alerts out to live subscribers.
package feed

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

const subscriberBuffer = 32

// Filter selects the alerts a subscriber receives. A nil Filter accepts all.
type Filter func(*models.Alert) bool

// ForCommunity accepts alerts targeted at communityID. An empty id accepts all.
func ForCommunity(communityID string) Filter {
	if communityID == "" {
		return nil
	}
	return func(a *models.Alert) bool {
		return a.TargetCommunityID != nil && *a.TargetCommunityID == communityID
	}
}

type subscriber struct {
	ch     chan *models.Alert
	filter Filter
}

type Broadcaster struct {
	subscribers map[uint64]subscriber
	nextID      atomic.Uint64
	mu          sync.RWMutex
	closed      bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]subscriber),
	}
}

// Subscribe registers a listener. The returned channel is closed by
// Unsubscribe or Close.
func (b *Broadcaster) Subscribe(filter Filter) (uint64, <-chan *models.Alert) {
	id := b.nextID.Add(1)
	ch := make(chan *models.Alert, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish never blocks: a subscriber whose buffer is full misses the alert.
func (b *Broadcaster) Publish(a *models.Alert) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.filter != nil && !sub.filter(a) {
			continue
		}
		select {
		case sub.ch <- a:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
