// Package bus is a small in-process snapshot bus. Components register
// interest in a topic and receive full-state snapshots; cancellation is
// explicit via the returned unsubscribe func. A slow subscriber never blocks
// a publisher: each subscription keeps only the latest undelivered snapshot.
package bus

import "sync"

type subscriber[T any] struct {
	ch chan T
}

type Bus[T any] struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber[T]]struct{}
}

func New[T any]() *Bus[T] {
	return &Bus[T]{topics: make(map[string]map[*subscriber[T]]struct{})}
}

// Subscribe registers interest in a topic. The returned channel carries
// snapshots until unsubscribe is called; unsubscribe closes the channel and
// is safe to call more than once.
func (b *Bus[T]) Subscribe(topic string) (<-chan T, func()) {
	sub := &subscriber[T]{ch: make(chan T, 1)}

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*subscriber[T]]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.topics[topic]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe
}

// Publish delivers a snapshot to every subscriber of the topic. If a
// subscriber has not consumed the previous snapshot it is replaced; only the
// most recent state matters to consumers.
func (b *Bus[T]) Publish(topic string, v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.topics[topic] {
		select {
		case sub.ch <- v:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- v:
			default:
			}
		}
	}
}

// SubscriberCount reports how many subscriptions a topic currently has.
func (b *Bus[T]) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
