package hub

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/pulse/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	cur atomic.Pointer[models.Snapshot]
}

func newSource(version uint64) *fakeSource {
	s := &fakeSource{}
	s.cur.Store(&models.Snapshot{Version: version})
	return s
}

func (s *fakeSource) Current() *models.Snapshot { return s.cur.Load() }

// advance mimics the store: swap first, then publish.
func (s *fakeSource) advance(h *Hub) *models.Snapshot {
	next := s.cur.Load().Derive(time.Now())
	s.cur.Store(next)
	h.Publish(next)
	return next
}

func receive(t *testing.T, sub *Subscriber) *models.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C():
		require.True(t, ok, "channel closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribeStartsWithCurrentSnapshot(t *testing.T) {
	src := newSource(7)
	h := New(src)

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, uint64(7), receive(t, sub).Version)
	assert.Equal(t, 1, h.Len())

	// A republish of the version the subscriber already has is skipped.
	h.Publish(src.Current())
	select {
	case snap := <-sub.C():
		t.Fatalf("unexpected snapshot %d", snap.Version)
	default:
	}
}

func TestSubscribersSeeGapFreeVersions(t *testing.T) {
	src := newSource(0)
	h := New(src, WithQueueSize(256))

	subs := []*Subscriber{h.Subscribe(), h.Subscribe(), h.Subscribe()}
	for i := 0; i < 100; i++ {
		src.advance(h)
	}

	for _, sub := range subs {
		var versions []uint64
		for len(versions) < 101 {
			versions = append(versions, receive(t, sub).Version)
		}
		for i, v := range versions {
			assert.Equal(t, uint64(i), v)
		}
	}
}

func TestSlowSubscriberIsDroppedOthersContinue(t *testing.T) {
	src := newSource(0)
	reg := prometheus.NewRegistry()

	var dropped []string
	var mu sync.Mutex
	h := New(src,
		WithQueueSize(4),
		WithRegisterer(reg),
		OnDrop(func(sub *Subscriber) {
			mu.Lock()
			defer mu.Unlock()
			dropped = append(dropped, sub.ID())
		}),
	)

	slow := h.Subscribe()
	fast := h.Subscribe()

	var got []uint64
	for i := 0; i < 10; i++ {
		src.advance(h)
		// fast drains as it goes; slow never reads.
		for len(fast.C()) > 0 {
			got = append(got, receive(t, fast).Version)
		}
	}

	assert.True(t, slow.Dropped())
	assert.False(t, fast.Dropped())
	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber not closed")
	}
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)

	mu.Lock()
	assert.Equal(t, []string{slow.ID()}, dropped)
	mu.Unlock()

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Dropped))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Subscribers))
	assert.Equal(t, float64(10), testutil.ToFloat64(h.metrics.Published))

	// The dropped subscriber's channel drains what was queued, then closes.
	n := 0
	for range slow.C() {
		n++
	}
	assert.Equal(t, 4, n)

	// Unsubscribing a dropped subscriber is harmless.
	h.Unsubscribe(slow)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := New(newSource(0))
	sub := h.Subscribe()

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)

	assert.Equal(t, 0, h.Len())
	assert.False(t, sub.Dropped())
	_, ok := <-sub.C()
	assert.True(t, ok, "initial snapshot still buffered")
	_, ok = <-sub.C()
	assert.False(t, ok)
}

func TestAckAndLag(t *testing.T) {
	src := newSource(0)
	h := New(src)
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	src.advance(h)
	src.advance(h)
	assert.Equal(t, uint64(2), sub.LastSent())
	assert.Equal(t, uint64(2), sub.Lag())

	sub.Ack(1)
	assert.Equal(t, uint64(1), sub.Lag())
	sub.Ack(0)
	assert.Equal(t, uint64(1), sub.Lag())
	sub.Ack(5)
	assert.Equal(t, uint64(0), sub.Lag())
}

func TestSubscribeDuringPublishIsGapFree(t *testing.T) {
	src := newSource(0)
	h := New(src, WithQueueSize(1024))

	const writes = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			src.advance(h)
		}
	}()

	subs := make([]*Subscriber, 0, 20)
	for i := 0; i < 20; i++ {
		subs = append(subs, h.Subscribe())
	}
	wg.Wait()

	for _, sub := range subs {
		first := receive(t, sub).Version
		prev := first
		for prev < writes {
			v := receive(t, sub).Version
			require.Equal(t, prev+1, v)
			prev = v
		}
	}
}

func TestCloseRemovesEveryone(t *testing.T) {
	h := New(newSource(0))
	a := h.Subscribe()
	h.Close()

	<-a.Done()
	late := h.Subscribe()
	_, ok := <-late.C()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}
