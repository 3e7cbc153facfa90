package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// Identity names the author of a message as clients render it.
type Identity struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
}

// AISender is the synthetic identity attached to assistant replies.
var AISender = Identity{ID: "ai", Email: "AI"}

// Message is the chat payload relayed between room members.
type Message struct {
	Sender  Identity `json:"sender"`
	Message string   `json:"message"`
}

// Event is the wire envelope delivered to WebSocket clients.
type Event struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"projectId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventProjectMessage is the only event type the relay currently emits.
const EventProjectMessage = "project-message"

type wsConn interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
	Close(status websocket.StatusCode, reason string) error
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
}

type client struct {
	connID   string
	conn     wsConn
	send     chan Event
	identity Identity
}

func (c *client) enqueue(event Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop(ctx context.Context) error {
	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err = c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *client) close(status websocket.StatusCode, reason string) {
	_ = c.conn.Close(status, reason)
}

// inbound is a message received from a connected client, queued for the
// room's dispatch goroutine.
type inbound struct {
	from *client
	msg  Message
}

// room fans messages out to every member of one project. All inbound
// traffic for the project flows through a single dispatch goroutine, so
// members observe messages in a single order.
type room struct {
	projectID string
	hub       *Hub

	mu      sync.RWMutex
	clients map[*client]struct{}

	events chan inbound
	done   chan struct{}
}

func newRoom(projectID string, hub *Hub, queueSize int) *room {
	r := &room{
		projectID: projectID,
		hub:       hub,
		clients:   make(map[*client]struct{}),
		events:    make(chan inbound, queueSize),
		done:      make(chan struct{}),
	}
	go r.dispatchLoop()
	return r
}

func (r *room) dispatchLoop() {
	for {
		select {
		case in := <-r.events:
			r.hub.router.handle(r, in)
		case <-r.done:
			return
		}
	}
}

// submit queues an inbound message for dispatch. Returns false when the
// room queue is full.
func (r *room) submit(in inbound) bool {
	select {
	case r.events <- in:
		return true
	default:
		return false
	}
}

func (r *room) add(c *client) {
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()
}

// broadcast delivers an event to all members except the listed ones.
// Slow consumers are dropped from the room.
func (r *room) broadcast(event Event, except *client) {
	r.mu.RLock()
	var slow []*client
	for c := range r.clients {
		if c == except {
			continue
		}
		if !c.enqueue(event) {
			slow = append(slow, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range slow {
		go r.hub.removeClient(r.projectID, c)
	}
}

func (r *room) memberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Hub owns the per-project rooms.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	router *router

	roomQueueSize   int
	clientQueueSize int
}

// NewHub creates a hub whose rooms dispatch through the given router.
func NewHub(router *router, roomQueueSize, clientQueueSize int) *Hub {
	if roomQueueSize <= 0 {
		roomQueueSize = 256
	}
	if clientQueueSize <= 0 {
		clientQueueSize = 64
	}
	return &Hub{
		rooms:           make(map[string]*room),
		router:          router,
		roomQueueSize:   roomQueueSize,
		clientQueueSize: clientQueueSize,
	}
}

// join registers a connection in the project's room, creating the room
// on first join.
func (h *Hub) join(projectID string, conn wsConn, identity Identity) (*room, *client) {
	c := &client{
		connID:   uuid.NewString(),
		conn:     conn,
		send:     make(chan Event, h.clientQueueSize),
		identity: identity,
	}

	h.mu.Lock()
	r, ok := h.rooms[projectID]
	if !ok {
		r = newRoom(projectID, h, h.roomQueueSize)
		h.rooms[projectID] = r
	}
	// Adding under the hub lock keeps empty-room teardown from racing
	// with a concurrent join.
	r.add(c)
	h.mu.Unlock()

	roomMembers.WithLabelValues(projectID).Inc()
	return r, c
}

// removeClient disconnects a client and tears the room down when it was
// the last member.
func (h *Hub) removeClient(projectID string, c *client) {
	h.mu.Lock()
	r, ok := h.rooms[projectID]
	if !ok {
		h.mu.Unlock()
		return
	}

	r.mu.Lock()
	_, present := r.clients[c]
	if present {
		delete(r.clients, c)
		close(c.send)
	}
	empty := len(r.clients) == 0
	r.mu.Unlock()

	if empty {
		delete(h.rooms, projectID)
		close(r.done)
	}
	h.mu.Unlock()

	if present {
		roomMembers.WithLabelValues(projectID).Dec()
	}
}

// Broadcast delivers an event to every member of the project's room.
func (h *Hub) Broadcast(projectID string, event Event) {
	h.mu.RLock()
	r, ok := h.rooms[projectID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	r.broadcast(event, nil)
}

// RoomCount reports the number of active rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
