package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/internal/view"
	"github.com/fkhayef/meetsync/pkg/logger"
)

func startHub(t *testing.T, sessions prometheus.Gauge) *Hub {
	t.Helper()
	hub := NewHub(sessions)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func registered(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.Register(c)
	require.Eventually(t, func() bool {
		for _, other := range hub.Clients(c.Viewer.ClientID) {
			if other == c {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send queue closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHubBroadcastIsPerProfile(t *testing.T) {
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_sessions"})
	hub := startHub(t, sessions)

	a1 := NewClient(nil, view.Viewer{ClientID: "a"})
	a2 := NewClient(nil, view.Viewer{ClientID: "a"})
	b := NewClient(nil, view.Viewer{ClientID: "b"})
	registered(t, hub, a1)
	registered(t, hub, a2)
	registered(t, hub, b)
	assert.Equal(t, 3.0, testutil.ToFloat64(sessions))

	hub.Broadcast("a", []byte("hello"))

	assert.Equal(t, []byte("hello"), <-a1.Send)
	assert.Equal(t, []byte("hello"), <-a2.Send)
	select {
	case <-b.Send:
		t.Fatal("profile b received a message for profile a")
	default:
	}
}

func TestHubUnregisterClosesQueue(t *testing.T) {
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_sessions"})
	hub := startHub(t, sessions)

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("queue was not closed")
	}
	assert.Empty(t, hub.Clients("a"))
	assert.Eventually(t, func() bool { return testutil.ToFloat64(sessions) == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, c.push([]byte("late")))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t, nil)

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)
	for i := 0; i < cap(c.Send); i++ {
		require.True(t, c.push([]byte("x")))
	}

	hub.Broadcast("a", []byte("overflow"))
	assert.Eventually(t, func() bool { return len(hub.Clients("a")) == 0 }, time.Second, 5*time.Millisecond)
}

type gatedRenderer struct {
	started chan string
	release chan struct{}
	err     error
}

func (g *gatedRenderer) Render(_ context.Context, _ view.Viewer, eventID string) (*view.Snapshot, error) {
	if g.started != nil {
		g.started <- eventID
	}
	if g.release != nil {
		<-g.release
	}
	if g.err != nil {
		return nil, g.err
	}
	return &view.Snapshot{EventID: eventID, EventName: "Planning"}, nil
}

func TestDispatchPushesSnapshot(t *testing.T) {
	hub := startHub(t, nil)
	svc := NewService(hub, &gatedRenderer{}, kvstore.NewMemory(), logger.Discard())

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)
	c.Mount("e1")

	svc.Dispatch(context.Background(), kvstore.Change{Profile: "a", Key: "checked-state-e1"})

	msg := receive(t, c)
	assert.Equal(t, ActionStorageChanged, msg.Action)
	assert.Equal(t, "e1", msg.EventID)
	assert.Equal(t, "checked-state-e1", msg.Key)
	require.NotNil(t, msg.Snapshot)
	assert.Equal(t, "Planning", msg.Snapshot.EventName)
}

func TestDispatchSkipsUnmountedSessions(t *testing.T) {
	hub := startHub(t, nil)
	svc := NewService(hub, &gatedRenderer{}, kvstore.NewMemory(), logger.Discard())

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)

	svc.refresh(context.Background(), c, ActionSnapshot, "")
	select {
	case <-c.Send:
		t.Fatal("unmounted session received a message")
	default:
	}
}

func TestDispatchReportsRenderFailure(t *testing.T) {
	hub := startHub(t, nil)
	svc := NewService(hub, &gatedRenderer{err: errors.New("boom")}, kvstore.NewMemory(), logger.Discard())

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)
	c.Mount("e1")

	svc.refresh(context.Background(), c, ActionSnapshot, "")

	msg := receive(t, c)
	assert.Equal(t, ActionError, msg.Action)
	assert.Nil(t, msg.Snapshot)
	assert.NotEmpty(t, msg.Error)
}

func TestStaleRenderIsDiscarded(t *testing.T) {
	hub := startHub(t, nil)
	renderer := &gatedRenderer{started: make(chan string, 1), release: make(chan struct{})}
	svc := NewService(hub, renderer, kvstore.NewMemory(), logger.Discard())

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)
	c.Mount("e1")

	done := make(chan struct{})
	go func() {
		svc.refresh(context.Background(), c, ActionSnapshot, "")
		close(done)
	}()

	assert.Equal(t, "e1", <-renderer.started)
	c.Mount("e2")
	close(renderer.release)
	<-done

	select {
	case data := <-c.Send:
		t.Fatalf("stale render was delivered: %s", data)
	default:
	}
}

// sequencedRenderer blocks the n-th render until release[n] is closed and
// names each snapshot after its call order
type sequencedRenderer struct {
	mu      sync.Mutex
	calls   int
	started chan int
	release []chan struct{}
}

func (s *sequencedRenderer) Render(_ context.Context, _ view.Viewer, eventID string) (*view.Snapshot, error) {
	s.mu.Lock()
	n := s.calls
	s.calls++
	s.mu.Unlock()

	s.started <- n
	<-s.release[n]
	return &view.Snapshot{EventID: eventID, EventName: fmt.Sprintf("render-%d", n)}, nil
}

func TestSlowerOlderRenderDoesNotOverwriteNewer(t *testing.T) {
	hub := startHub(t, nil)
	renderer := &sequencedRenderer{
		started: make(chan int, 2),
		release: []chan struct{}{make(chan struct{}), make(chan struct{})},
	}
	svc := NewService(hub, renderer, kvstore.NewMemory(), logger.Discard())

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)
	c.Mount("e1")

	refresh := func() chan struct{} {
		done := make(chan struct{})
		go func() {
			svc.refresh(context.Background(), c, ActionStorageChanged, "checked-state-e1")
			close(done)
		}()
		return done
	}

	older := refresh()
	require.Equal(t, 0, <-renderer.started)
	newer := refresh()
	require.Equal(t, 1, <-renderer.started)

	close(renderer.release[1])
	<-newer
	close(renderer.release[0])
	<-older

	msg := receive(t, c)
	assert.Equal(t, "render-1", msg.Snapshot.EventName)
	select {
	case data := <-c.Send:
		t.Fatalf("older render was delivered after a newer one: %s", data)
	default:
	}
}

func TestRendersFinishingInOrderAreAllDelivered(t *testing.T) {
	hub := startHub(t, nil)
	renderer := &sequencedRenderer{
		started: make(chan int, 2),
		release: []chan struct{}{make(chan struct{}), make(chan struct{})},
	}
	close(renderer.release[0])
	close(renderer.release[1])
	svc := NewService(hub, renderer, kvstore.NewMemory(), logger.Discard())

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)
	c.Mount("e1")

	svc.refresh(context.Background(), c, ActionStorageChanged, "")
	svc.refresh(context.Background(), c, ActionStorageChanged, "")

	assert.Equal(t, "render-0", receive(t, c).Snapshot.EventName)
	assert.Equal(t, "render-1", receive(t, c).Snapshot.EventName)
}

func TestListenForwardsPublishedChanges(t *testing.T) {
	hub := startHub(t, nil)
	backend := kvstore.NewMemory()
	svc := NewService(hub, &gatedRenderer{}, backend, logger.Discard())

	c := NewClient(nil, view.Viewer{ClientID: "a"})
	registered(t, hub, c)
	c.Mount("e1")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Listen(ctx) }()

	require.Eventually(t, func() bool {
		_ = kvstore.Scoped(backend, "a").Set(ctx, "availability-e1", []byte(`{}`))
		select {
		case data := <-c.Send:
			var msg Message
			return json.Unmarshal(data, &msg) == nil && msg.Key == "availability-e1"
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not stop")
	}
}
