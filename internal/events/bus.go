package events

import (
	"sync"
)

const defaultBufSize = 256

// subscriber is one registered channel. An empty topic receives every topic
// and an empty session receives every session.
type subscriber struct {
	ch      chan Event
	topic   string
	session string
}

func (s *subscriber) wants(topic string, e Event) bool {
	if s.topic != "" && s.topic != topic {
		return false
	}
	return s.session == "" || s.session == e.Session()
}

// EventBus is a channel-based pub-sub event bus.
// Publishing never blocks: a full subscriber misses the event.
type EventBus struct {
	mu     sync.RWMutex
	subs   []*subscriber
	closed bool
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe creates a subscription to a specific topic.
// bufSize defaults to 256 if <= 0.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	return b.add(&subscriber{topic: topic}, bufSize)
}

// SubscribeAll creates a subscription to ALL topics.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	return b.add(&subscriber{}, bufSize)
}

// SubscribeSession creates a subscription to every event of one session.
func (b *EventBus) SubscribeSession(sessionID string, bufSize int) <-chan Event {
	return b.add(&subscriber{session: sessionID}, bufSize)
}

func (b *EventBus) add(s *subscriber, bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	s.ch = make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(s.ch)
		return s.ch
	}
	b.subs = append(b.subs, s)
	return s.ch
}

// Unsubscribe removes the subscription owning ch and closes it. Unknown
// channels are ignored.
func (b *EventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.ch == ch {
			close(s.ch)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish sends an event to every matching subscriber.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, s := range b.subs {
		if !s.wants(topic, event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

// Close closes the event bus and all subscriber channels.
// Safe to call multiple times.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
