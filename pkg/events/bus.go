package events

import (
	"context"
	"sync"
	"time"

	"github.com/certdirectory/crawlcore/pkg/ids"
)

// replayLimit bounds how many buffered events a late subscriber replays on
// Subscribe, mirroring ConnectionManager.handleCatchup's fixed catchup
// window rather than replaying unbounded history.
const replayLimit = 500

// Filter restricts which events a Subscription receives. A zero-value
// SessionID or empty Kinds means "no restriction" on that dimension.
type Filter struct {
	SessionID ids.SessionID
	Kinds     []Kind
}

func (f Filter) matches(ev AppEvent) bool {
	if f.SessionID != "" && f.SessionID != ev.SessionID {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == ev.Payload.Kind() {
			return true
		}
	}
	return false
}

// Bus is an in-process, lossy, broadcast event bus. Publish never blocks:
// a subscriber whose inbox is full has its oldest buffered event dropped
// in favor of the new one. This is the in-process analog of
// ConnectionManager's per-connection send queue, without a network
// transport underneath it.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	bufferSize  int

	replayMu sync.Mutex
	replay   []AppEvent
	maxAge   time.Duration

	nextID uint64
}

// NewBus builds a Bus whose subscriber inboxes hold up to bufferSize
// events and whose replay buffer discards events older than maxAge (0
// disables age-based pruning; see retention.go for the sweep that enforces
// it).
func NewBus(bufferSize int, maxAge time.Duration) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[string]*subscriber),
		bufferSize:  bufferSize,
		maxAge:      maxAge,
	}
}

// Publish broadcasts ev to every subscriber whose filter matches,
// recording it in the replay buffer for future late subscribers.
func (b *Bus) Publish(ev AppEvent) {
	b.replayMu.Lock()
	b.replay = append(b.replay, ev)
	if len(b.replay) > replayLimit {
		b.replay = b.replay[len(b.replay)-replayLimit:]
	}
	b.replayMu.Unlock()

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.push(ev)
	}
}

// Subscribe registers a new subscriber matching filter and returns a
// Subscription. If since is non-nil, buffered events at or after that time
// matching filter are replayed before live events.
func (b *Bus) Subscribe(filter Filter, since *time.Time) *Subscription {
	s := &subscriber{
		filter:   filter,
		capacity: b.bufferSize,
		notify:   make(chan struct{}, 1),
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	key := subscriberKey(id)
	b.subscribers[key] = s
	b.mu.Unlock()

	if since != nil {
		b.replayMu.Lock()
		for _, ev := range b.replay {
			if ev.Timestamp.Before(*since) {
				continue
			}
			if filter.matches(ev) {
				s.queue = append(s.queue, ev)
			}
		}
		b.replayMu.Unlock()
	}

	return &Subscription{bus: b, key: key, sub: s}
}

// ActiveSubscribers reports the current subscriber count.
func (b *Bus) ActiveSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) unsubscribe(key string) {
	b.mu.Lock()
	delete(b.subscribers, key)
	b.mu.Unlock()
}

// pruneOlderThan drops replay entries older than cutoff. Called by the
// retention sweep in retention.go.
func (b *Bus) pruneOlderThan(cutoff time.Time) {
	b.replayMu.Lock()
	defer b.replayMu.Unlock()

	kept := b.replay[:0]
	for _, ev := range b.replay {
		if ev.Timestamp.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	b.replay = kept
}

func subscriberKey(id uint64) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 0, 16)
	if id == 0 {
		return "0"
	}
	for id > 0 {
		buf = append([]byte{hex[id%16]}, buf...)
		id /= 16
	}
	return string(buf)
}

// subscriber is one bus subscriber's bounded, mutex-protected inbox.
type subscriber struct {
	filter   Filter
	capacity int

	mu      sync.Mutex
	queue   []AppEvent
	dropped int64
	closed  bool

	notify chan struct{}
}

func (s *subscriber) push(ev AppEvent) {
	if !s.filter.matches(ev) {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		s.dropped++
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) recv(ctx context.Context) (AppEvent, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return AppEvent{}, false
		}

		select {
		case <-ctx.Done():
			return AppEvent{}, false
		case <-s.notify:
		}
	}
}

func (s *subscriber) droppedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Subscription is a live handle returned by Bus.Subscribe.
type Subscription struct {
	bus *Bus
	key string
	sub *subscriber
}

// Recv blocks until an event arrives, ctx is cancelled, or the
// subscription is closed. ok is false only on cancellation or close.
func (s *Subscription) Recv(ctx context.Context) (AppEvent, bool) {
	return s.sub.recv(ctx)
}

// Dropped reports how many events this subscription has lost to inbox
// overflow.
func (s *Subscription) Dropped() int64 {
	return s.sub.droppedCount()
}

// Close unregisters the subscription from the bus.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.key)
	s.sub.close()
}
