package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// DefaultHistorySize is the number of recent events retained for replay.
	DefaultHistorySize = 1000

	// DefaultChannelBuffer is the buffer size for subscriber channels.
	DefaultChannelBuffer = 100
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus is closed")

// SubscriptionID identifies a subscription.
type SubscriptionID string

type subscription struct {
	id        SubscriptionID
	eventType EventType
	handler   func(Event)
	ch        chan Event
	done      chan struct{}
}

// Bus is a non-blocking pub/sub hub. Each subscriber gets its own goroutine
// and buffered channel; a full channel drops the event for that subscriber
// only, so a slow subscriber never stalls a request.
type Bus struct {
	mu         sync.RWMutex
	subs       map[SubscriptionID]*subscription
	subCounter atomic.Uint64
	dropped    atomic.Uint64

	historyMu   sync.RWMutex
	history     []Event
	historySize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a bus with the default history size.
func New() *Bus {
	return NewWithHistory(DefaultHistorySize)
}

// NewWithHistory creates a bus retaining up to historySize events.
func NewWithHistory(historySize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subs:        make(map[SubscriptionID]*subscription),
		history:     make([]Event, 0, max(historySize, 0)),
		historySize: historySize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers handler for eventType. An empty eventType receives
// every event. Handlers run on the subscription's goroutine, one event at a
// time.
func (b *Bus) Subscribe(eventType EventType, handler func(Event)) (SubscriptionID, error) {
	if b.closed.Load() {
		return "", ErrClosed
	}

	sub := &subscription{
		id:        SubscriptionID(fmt.Sprintf("sub_%d", b.subCounter.Add(1))),
		eventType: eventType,
		handler:   handler,
		ch:        make(chan Event, DefaultChannelBuffer),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(sub)

	return sub.id, nil
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()

	for {
		select {
		case event := <-sub.ch:
			sub.handler(event)
		case <-sub.done:
			return
		case <-b.ctx.Done():
			return
		}
	}
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("subscription %s not found", id)
	}
	close(sub.done)
	return nil
}

// Publish delivers event to every matching subscriber without blocking.
func (b *Bus) Publish(event Event) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.addToHistory(event)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.eventType != "" && sub.eventType != event.Type {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

func (b *Bus) addToHistory(event Event) {
	if b.historySize <= 0 {
		return
	}

	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history = append(b.history, event)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
}

// History returns up to the last n events, oldest first. n <= 0 returns all
// retained events.
func (b *Bus) History(n int) []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	out := make([]Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// Subscriptions returns the number of active subscriptions.
func (b *Bus) Subscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were dropped on full channels.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops every subscriber goroutine and waits for them to exit.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	b.subs = make(map[SubscriptionID]*subscription)
	b.mu.Unlock()

	return nil
}
