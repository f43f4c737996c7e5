package notification

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fkhayef/meetsync/internal/view"
)

// Client is one open websocket session of a browser profile
type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	Viewer view.Viewer

	mu        sync.Mutex
	eventID   string
	gen       uint64
	seq       uint64 // last render started
	delivered uint64 // last render pushed
	closed    bool
}

// pushResult is the outcome of offering a rendered message to a session
type pushResult int

const (
	pushed pushResult = iota
	// superseded renders are older than the mount or the last delivered render
	superseded
	// dropped means the queue was full or the session is gone
	dropped
)

// NewClient creates a session for viewer with a buffered send queue
func NewClient(conn *websocket.Conn, v view.Viewer) *Client {
	return &Client{Conn: conn, Send: make(chan []byte, 16), Viewer: v}
}

// Mount records the event the session is currently showing. Renders started
// for an earlier mount are discarded.
func (c *Client) Mount(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventID = eventID
	c.gen++
}

// beginRender stamps a render of the mounted event. Renders are ordered by
// the stamp, not by when they finish.
func (c *Client) beginRender() (eventID string, gen, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.eventID, c.gen, c.seq
}

// pushRender queues a render unless the session remounted since it started or
// a newer render was already delivered
func (c *Client) pushRender(eventID string, gen, seq uint64, data []byte) pushResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eventID != eventID || c.gen != gen || seq < c.delivered {
		return superseded
	}
	if !c.sendLocked(data) {
		return dropped
	}
	c.delivered = seq
	return pushed
}

// push queues data without blocking. It reports false when the queue is full
// or the session is gone.
func (c *Client) push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(data)
}

func (c *Client) sendLocked(data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Hub tracks open sessions, one room per browser profile
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	mu         sync.Mutex
	sessions   prometheus.Gauge
}

// NewHub creates an idle hub; call Run to start it. sessions may be nil.
func NewHub(sessions prometheus.Gauge) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		sessions:   sessions,
	}
}

// Run processes registrations until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			room := c.Viewer.ClientID
			if h.rooms[room] == nil {
				h.rooms[room] = make(map[*Client]bool)
			}
			h.rooms[room][c] = true
			h.mu.Unlock()
			if h.sessions != nil {
				h.sessions.Inc()
			}

		case c := <-h.unregister:
			h.remove(c)

		case <-h.stop:
			h.mu.Lock()
			for room, conns := range h.rooms {
				for c := range conns {
					c.close()
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every session's queue
func (h *Hub) Stop() {
	close(h.stop)
}

// Register adds a session to its profile's room
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stop:
	}
}

// Unregister removes a session and closes its queue
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	conns := h.rooms[c.Viewer.ClientID]
	_, ok := conns[c]
	if ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, c.Viewer.ClientID)
		}
	}
	h.mu.Unlock()

	c.close()
	if ok && h.sessions != nil {
		h.sessions.Dec()
	}
}

// Clients returns the open sessions of a profile
func (h *Hub) Clients(profile string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Client, 0, len(h.rooms[profile]))
	for c := range h.rooms[profile] {
		out = append(out, c)
	}
	return out
}

// Broadcast queues data to every session of a profile. Sessions that cannot
// keep up are dropped.
func (h *Hub) Broadcast(profile string, data []byte) {
	for _, c := range h.Clients(profile) {
		if !c.push(data) {
			h.Unregister(c)
		}
	}
}
