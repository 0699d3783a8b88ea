package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ballpit/backend/internal/protocol"
	"github.com/ballpit/backend/internal/sim"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin is validated by the upgrade middleware
	},
}

// Client represents a connected WebSocket client
type Client struct {
	conn     *websocket.Conn
	connID   string
	guestID  int    // 0 until hello
	arenaID  string // "" until join_arena
	heldBall string // one drag per connection
	send     chan []byte
}

// Hub maintains the set of active clients and their arena rooms
type Hub struct {
	clients      map[string]*Client            // connID -> Client
	arenaRooms   map[string]map[string]*Client // arenaID -> connID -> Client
	broadcasters map[string]bool               // arenaID -> frame loop running
	register     chan *Client
	unregister   chan *Client
	mu           sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		arenaRooms:   make(map[string]map[string]*Client),
		broadcasters: make(map[string]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
	}
}

// joinRoom moves the client into an arena room, leaving any previous one
func (h *Hub) joinRoom(c *Client, arenaID string) {
	h.mu.Lock()
	if c.arenaID != "" {
		if room, exists := h.arenaRooms[c.arenaID]; exists {
			delete(room, c.connID)
			if len(room) == 0 {
				delete(h.arenaRooms, c.arenaID)
			}
		}
	}
	c.arenaID = arenaID
	if _, exists := h.arenaRooms[arenaID]; !exists {
		h.arenaRooms[arenaID] = make(map[string]*Client)
	}
	h.arenaRooms[arenaID][c.connID] = c
	h.mu.Unlock()

	h.ensureFrameBroadcaster(arenaID)
}

// leaveRoom removes the client from its current arena room
func (h *Hub) leaveRoom(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.arenaID == "" {
		return
	}
	if room, exists := h.arenaRooms[c.arenaID]; exists {
		delete(room, c.connID)
		if len(room) == 0 {
			delete(h.arenaRooms, c.arenaID)
		}
	}
	c.arenaID = ""
}

// BroadcastToArena sends a message to every client in an arena room
func (h *Hub) BroadcastToArena(arenaID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	h.broadcastRaw(arenaID, data)
}

// broadcastRaw fans out an already-marshaled frame to a room
func (h *Hub) broadcastRaw(arenaID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, exists := h.arenaRooms[arenaID]; exists {
		for _, client := range room {
			select {
			case client.send <- data:
			default:
				// Client's buffer is full
				log.Printf("Client send buffer full for conn %s in arena %s, dropping message", client.connID, arenaID)
			}
		}
	}
}

// SendToGuest sends a message to every connection held by a guest
func (h *Hub) SendToGuest(guestID int, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := false
	for _, client := range h.clients {
		if client.guestID != guestID {
			continue
		}
		select {
		case client.send <- data:
			sent = true
		default:
			log.Printf("[WS] SendToGuest dropped message for guest %d (buffer full)", guestID)
		}
	}
	if !sent {
		log.Printf("[WS] SendToGuest no connection for guest %d", guestID)
	}
}

// ensureFrameBroadcaster starts the arena's frame loop if it is not running
func (h *Hub) ensureFrameBroadcaster(arenaID string) {
	h.mu.Lock()
	if h.broadcasters[arenaID] {
		h.mu.Unlock()
		return
	}
	h.broadcasters[arenaID] = true
	h.mu.Unlock()

	go h.runFrameBroadcaster(arenaID)
}

// runFrameBroadcaster pushes frames to an arena room whenever the store
// version advanced. Exits when the room empties or the arena closes; a later
// join starts a fresh loop.
func (h *Hub) runFrameBroadcaster(arenaID string) {
	stop := func() {
		h.mu.Lock()
		delete(h.broadcasters, arenaID)
		h.mu.Unlock()
	}

	if sim.Manager == nil {
		stop()
		return
	}
	arena, err := sim.Manager.GetArena(arenaID)
	if err != nil {
		stop()
		return
	}

	ticker := time.NewTicker(arena.Params().FrameInterval())
	defer ticker.Stop()

	var lastVersion uint64
	for range ticker.C {
		if arena.Closed() {
			stop()
			return
		}

		h.mu.Lock()
		if len(h.arenaRooms[arenaID]) == 0 {
			// Check-and-exit under the lock so a join either sees the loop
			// still registered or starts a new one.
			delete(h.broadcasters, arenaID)
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()

		v := arena.Version()
		if v == lastVersion {
			continue
		}
		lastVersion = v

		data, err := protocol.Encode(protocol.TypeFrame, protocol.FrameData{
			ArenaID: arenaID,
			Version: v,
			Balls:   arena.Snapshot(),
		})
		if err != nil {
			log.Printf("[WS] Frame encode failed for arena %s: %v", arenaID, err)
			continue
		}
		h.broadcastRaw(arenaID, data)
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed while cleaning up. Best-effort close frame;
				// the conn may already be gone.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for conn %s: %v", c.connID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for conn %s: %v", c.connID, err)
				return
			}
		}
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	data, err := protocol.Encode(protocol.TypeError, protocol.ErrorData{Message: message})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// sendMessage encodes and queues a protocol message for this client
func (c *Client) sendMessage(msgType string, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Printf("[WS] Encode %s failed for conn %s: %v", msgType, c.connID, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Send buffer full for conn %s, dropping %s", c.connID, msgType)
	}
}
