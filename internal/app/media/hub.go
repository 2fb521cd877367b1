package media

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Kind represents a notification kind.
type Kind int

const (
	KindProgress      Kind = iota // Playback position advanced
	KindDurationKnown             // True source duration determined
	KindEnded                     // Source played to its end
)

// String returns the string representation of the notification kind.
func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindDurationKnown:
		return "duration_known"
	case KindEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Notification is an asynchronous signal emitted by a resource.
type Notification struct {
	Kind       Kind
	Value      float64 // Position for progress/ended, duration for duration_known
	SequenceNo uint64
	Generation uint64 // Source generation current at emission
}

// Listener receives notifications.
type Listener func(Notification)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id   string
	kind Kind
	hub  *Hub
	once sync.Once
}

// ID returns the subscription ID.
func (s *Subscription) ID() string {
	return s.id
}

// Kind returns the notification kind the subscription listens to.
func (s *Subscription) Kind() Kind {
	return s.kind
}

// Unsubscribe detaches the listener. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.id)
	})
}

type subscriber struct {
	kind     Kind
	listener Listener
}

// Hub manages notification subscriptions and delivers notifications to them.
// A single dispatch goroutine delivers notifications in emission order.
// Emit never blocks, so resources may emit while holding their own locks.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]subscriber

	pendingMu  sync.Mutex
	pending    []Notification
	sequenceNo uint64
	generation uint64

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a new hub and starts its dispatcher.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		subscribers: make(map[string]subscriber),
		wake:        make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

// Subscribe adds a listener for the given kind.
func (h *Hub) Subscribe(kind Kind, fn Listener) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	h.subscribers[id] = subscriber{kind: kind, listener: fn}
	return &Subscription{id: id, kind: kind, hub: h}
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Emit queues a notification for delivery. Notifications emitted after Close
// are dropped.
func (h *Hub) Emit(kind Kind, value float64) {
	h.pendingMu.Lock()
	if h.ctx.Err() != nil {
		h.pendingMu.Unlock()
		return
	}
	h.sequenceNo++
	h.pending = append(h.pending, Notification{
		Kind:       kind,
		Value:      value,
		SequenceNo: h.sequenceNo,
		Generation: h.generation,
	})
	h.pendingMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Supersede starts a new source generation and discards notifications not
// yet handed to the dispatcher. Resources call it whenever their source
// changes; listeners compare Notification.Generation against Generation.
func (h *Hub) Supersede() uint64 {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	h.generation++
	h.pending = nil
	return h.generation
}

// Generation returns the current source generation.
func (h *Hub) Generation() uint64 {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	return h.generation
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.wake:
		}

		for {
			h.pendingMu.Lock()
			batch := h.pending
			h.pending = nil
			h.pendingMu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, n := range batch {
				if h.ctx.Err() != nil {
					return
				}
				h.deliver(n)
			}
		}
	}
}

func (h *Hub) deliver(n Notification) {
	// Copy listeners to avoid holding the lock during callbacks
	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		if s.kind == n.Kind {
			listeners = append(listeners, s.listener)
		}
	}
	h.mu.RUnlock()

	for _, fn := range listeners {
		fn(n)
	}
}

// Close stops the dispatcher and removes all subscriptions.
// It must not be called from inside a listener.
func (h *Hub) Close() {
	h.pendingMu.Lock()
	h.cancel()
	h.pending = nil
	h.pendingMu.Unlock()

	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = make(map[string]subscriber)
}
