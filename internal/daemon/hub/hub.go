// Package hub fans snapshots out to subscribers. Every subscriber has a
// bounded queue; one that falls behind is dropped instead of slowing down
// the writer or other subscribers.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is the per-subscriber queue length.
const DefaultQueueSize = 64

// Source provides the snapshot a new subscriber starts from.
type Source interface {
	Current() *models.Snapshot
}

// DropHook is called after a subscriber was removed for a full queue.
type DropHook func(sub *Subscriber)

// Subscriber is one registered observer.
type Subscriber struct {
	id       string
	ch       chan *models.Snapshot
	done     chan struct{}
	lastSent atomic.Uint64
	acked    atomic.Uint64
	dropped  atomic.Bool
	once     sync.Once
}

// ID returns the subscriber's identity.
func (s *Subscriber) ID() string { return s.id }

// C delivers snapshots in strictly increasing version order. It is closed
// when the subscriber leaves the hub.
func (s *Subscriber) C() <-chan *models.Snapshot { return s.ch }

// Done is closed when the subscriber leaves the hub.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Ack records the last version the client reports having processed.
func (s *Subscriber) Ack(version uint64) {
	for {
		cur := s.acked.Load()
		if version <= cur || s.acked.CompareAndSwap(cur, version) {
			return
		}
	}
}

// LastSent is the version of the newest snapshot enqueued for this subscriber.
func (s *Subscriber) LastSent() uint64 { return s.lastSent.Load() }

// Lag is the number of versions sent but not yet acknowledged.
func (s *Subscriber) Lag() uint64 {
	sent, acked := s.lastSent.Load(), s.acked.Load()
	if acked >= sent {
		return 0
	}
	return sent - acked
}

// Dropped reports whether the hub removed this subscriber for falling behind.
func (s *Subscriber) Dropped() bool { return s.dropped.Load() }

func (s *Subscriber) close() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}

// Hub is the broadcast point between the store and its observers.
type Hub struct {
	mu        sync.Mutex
	source    Source
	subs      map[string]*Subscriber
	queueSize int
	logger    *logrus.Entry
	metrics   *Metrics
	onDrop    []DropHook
	closed    bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithQueueSize sets the per-subscriber queue length. Values below one are
// ignored.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithRegisterer registers hub metrics with reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Hub) {
		h.metrics = NewMetrics(reg)
	}
}

// OnDrop adds a hook run whenever a subscriber is dropped.
func OnDrop(hook DropHook) Option {
	return func(h *Hub) {
		h.onDrop = append(h.onDrop, hook)
	}
}

// New creates a hub whose subscribers start from source.Current().
func New(source Source, opts ...Option) *Hub {
	h := &Hub{
		source:    source,
		subs:      make(map[string]*Subscriber),
		queueSize: DefaultQueueSize,
		logger:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return h
}

// Subscribe registers a new subscriber. Its first message is the current
// full snapshot; every later message is a newer version.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:   uuid.NewString(),
		ch:   make(chan *models.Snapshot, h.queueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.close()
		return sub
	}

	snap := h.source.Current()
	sub.ch <- snap
	sub.lastSent.Store(snap.Version)
	h.subs[sub.id] = sub
	h.metrics.Subscribers.Set(float64(len(h.subs)))
	h.metrics.Delivered.Inc()

	h.logger.WithFields(logrus.Fields{
		"subscriber": sub.id,
		"version":    snap.Version,
	}).Debug("Subscriber registered")
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it again, or for
// a subscriber that was already dropped, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		h.metrics.Subscribers.Set(float64(len(h.subs)))
		h.logger.WithField("subscriber", sub.id).Debug("Subscriber removed")
	}
	sub.close()
}

// Publish enqueues snap for every subscriber that has not seen it yet. It
// never blocks: a subscriber whose queue is full is dropped.
func (h *Hub) Publish(snap *models.Snapshot) {
	if snap == nil {
		return
	}

	var dropped []*Subscriber

	h.mu.Lock()
	h.metrics.Published.Inc()
	for id, sub := range h.subs {
		if sub.lastSent.Load() >= snap.Version {
			continue
		}
		select {
		case sub.ch <- snap:
			sub.lastSent.Store(snap.Version)
			h.metrics.Delivered.Inc()
		default:
			delete(h.subs, id)
			sub.dropped.Store(true)
			sub.close()
			dropped = append(dropped, sub)
		}
	}
	if len(dropped) > 0 {
		h.metrics.Dropped.Add(float64(len(dropped)))
		h.metrics.Subscribers.Set(float64(len(h.subs)))
	}
	hooks := h.onDrop
	h.mu.Unlock()

	for _, sub := range dropped {
		h.logger.WithFields(logrus.Fields{
			"subscriber": sub.id,
			"last_sent":  sub.LastSent(),
			"version":    snap.Version,
		}).Warn("Dropped slow subscriber")
		for _, hook := range hooks {
			hook(sub)
		}
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close removes every subscriber. Later Subscribe calls return a subscriber
// whose channel is already closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.close()
	}
	h.metrics.Subscribers.Set(0)
}
