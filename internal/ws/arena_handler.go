package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"

	"github.com/ballpit/backend/internal/protocol"
	"github.com/ballpit/backend/internal/sim"
)

// ArenaHub is the single hub for all arena rooms.
var ArenaHub *Hub

func init() {
	ArenaHub = NewHub()
	go runArenaHub(ArenaHub)
}

// HandleWebSocket upgrades the connection and starts the client pumps. The
// socket is unauthenticated until the client sends hello.
func HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:   conn,
		connID: newConnID(),
		send:   make(chan []byte, 256),
	}

	ArenaHub.register <- client

	go client.writePump()
	go client.readPump()
}

// runArenaHub tracks connections and cleans up after them.
func runArenaHub(h *Hub) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.connID] = client
			h.mu.Unlock()
			log.Printf("[WS] Conn %s connected", client.connID)

		case client := <-h.unregister:
			// A dropped connection must not leave a ball pinned under a
			// phantom pointer.
			if client.arenaID != "" && client.heldBall != "" {
				if a, err := sim.Manager.GetArena(client.arenaID); err == nil {
					a.PointerUp(client.heldBall)
					log.Printf("[WS] Conn %s disconnected holding ball %s; released", client.connID, client.heldBall)
				}
				client.heldBall = ""
			}

			h.mu.Lock()
			if cur, ok := h.clients[client.connID]; ok && cur == client {
				delete(h.clients, client.connID)
				if client.arenaID != "" {
					if room, exists := h.arenaRooms[client.arenaID]; exists {
						delete(room, client.connID)
						if len(room) == 0 {
							delete(h.arenaRooms, client.arenaID)
						}
					}
				}

				log.Printf("[WS] Conn %s disconnected (guest %d, arena %q)", client.connID, client.guestID, client.arenaID)

				select {
				case <-client.send:
				default:
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// readPump reads and dispatches client messages.
func (c *Client) readPump() {
	defer func() {
		ArenaHub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error (unexpected) for conn %s: %v", c.connID, err)
			} else {
				log.Printf("WebSocket read error for conn %s: %v", c.connID, err)
			}
			break
		}

		msg, err := protocol.Decode(message)
		if err != nil {
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage processes one incoming protocol message.
func (c *Client) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeHello:
		c.handleHello(msg.Data)
		return
	case protocol.TypePing:
		c.sendMessage(protocol.TypePong, nil)
		return
	}

	if c.guestID == 0 {
		c.sendError("authenticate with hello first")
		return
	}

	switch msg.Type {
	case protocol.TypeJoinArena:
		var data protocol.JoinArenaData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid join data")
			return
		}
		c.handleJoinArena(data)

	case protocol.TypeLeaveArena:
		c.handleLeaveArena()

	case protocol.TypeSpawnBall:
		var data protocol.SpawnBallData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.sendError("invalid spawn data")
				return
			}
		}
		c.handleSpawnBall(data)

	case protocol.TypeRemoveBall:
		c.handleRemoveBall()

	case protocol.TypeClearBalls:
		c.handleClearBalls()

	case protocol.TypePointerDown:
		var data protocol.PointerDownData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid pointer data")
			return
		}
		c.handlePointerDown(data)

	case protocol.TypePointerMove:
		var data protocol.PointerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		c.handlePointerMove(data)

	case protocol.TypePointerUp:
		var data protocol.PointerData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				return
			}
		}
		c.handlePointerUp()

	case protocol.TypeDoubleClick:
		var data protocol.DoubleClickData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid double_click data")
			return
		}
		c.handleDoubleClick(data)

	case protocol.TypeResize:
		var data protocol.ResizeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid resize data")
			return
		}
		c.handleResize(data)

	default:
		c.sendError("unknown message type")
	}
}

// handleHello authenticates the socket with a guest JWT.
func (c *Client) handleHello(data json.RawMessage) {
	var hello protocol.HelloData
	if err := json.Unmarshal(data, &hello); err != nil {
		c.sendError("invalid hello data")
		return
	}

	if hello.ProtocolVersion != "" && hello.ProtocolVersion != protocol.Version {
		c.sendError(fmt.Sprintf("unsupported protocol version %s", hello.ProtocolVersion))
		return
	}

	guestID, err := parseGuestToken(hello.Token)
	if err != nil {
		log.Printf("[WS] Hello rejected for conn %s: %v", c.connID, err)
		c.sendError("invalid token")
		return
	}

	c.guestID = guestID
	log.Printf("[WS] Conn %s authenticated as guest %d", c.connID, guestID)
	c.sendMessage(protocol.TypeWelcome, protocol.WelcomeData{
		GuestID:         guestID,
		ProtocolVersion: protocol.Version,
	})
}

func (c *Client) handleJoinArena(data protocol.JoinArenaData) {
	arena, err := sim.Manager.GetArena(data.ArenaID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if arena.Closed() {
		c.sendError("arena is closed")
		return
	}

	c.releaseHeldBall()
	ArenaHub.joinRoom(c, arena.ID)
	sim.Manager.TouchArena(arena.ID)

	log.Printf("[WS] Guest %d joined arena %s (conn %s)", c.guestID, arena.ID, c.connID)

	c.sendMessage(protocol.TypeArenaJoined, protocol.ArenaJoinedData{
		Arena: protocol.ArenaInfo{
			ID:     arena.ID,
			Name:   arena.Name,
			Bounds: arena.Bounds(),
		},
		Balls:  arena.Snapshot(),
		TickMS: arena.Params().TickMs,
	})
}

func (c *Client) handleLeaveArena() {
	c.releaseHeldBall()
	ArenaHub.leaveRoom(c)
}

func (c *Client) handleSpawnBall(data protocol.SpawnBallData) {
	if c.arenaID == "" {
		c.sendError("join an arena first")
		return
	}

	var err error
	if data.Preset != "" {
		_, err = sim.Manager.SpawnPreset(c.arenaID, data.Preset)
	} else {
		_, err = sim.Manager.SpawnBall(c.arenaID, sim.SpawnOptions{X: data.X, Y: data.Y, Size: data.Size})
	}
	if err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleRemoveBall() {
	if c.arenaID == "" {
		c.sendError("join an arena first")
		return
	}
	if _, err := sim.Manager.RemoveNewestBall(c.arenaID); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleClearBalls() {
	if c.arenaID == "" {
		c.sendError("join an arena first")
		return
	}
	c.heldBall = ""
	if _, err := sim.Manager.ClearArena(c.arenaID); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handlePointerDown(data protocol.PointerDownData) {
	if c.arenaID == "" {
		c.sendError("join an arena first")
		return
	}
	if c.heldBall != "" {
		c.sendError("already holding a ball")
		return
	}

	arena, err := sim.Manager.GetArena(c.arenaID)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	if err := arena.PointerDown(data.BallID, sim.Vec2{X: data.X, Y: data.Y}, time.Now()); err != nil {
		c.sendError(err.Error())
		return
	}

	c.heldBall = data.BallID
	sim.Manager.TouchArena(c.arenaID)
}

func (c *Client) handlePointerMove(data protocol.PointerData) {
	if c.arenaID == "" || c.heldBall == "" {
		return
	}
	arena, err := sim.Manager.GetArena(c.arenaID)
	if err != nil {
		return
	}
	arena.PointerMove(c.heldBall, sim.Vec2{X: data.X, Y: data.Y})
}

func (c *Client) handlePointerUp() {
	if c.heldBall == "" {
		return
	}
	c.releaseHeldBall()
	if c.arenaID != "" {
		sim.Manager.TouchArena(c.arenaID)
	}
}

func (c *Client) handleDoubleClick(data protocol.DoubleClickData) {
	if c.arenaID == "" {
		c.sendError("join an arena first")
		return
	}
	arena, err := sim.Manager.GetArena(c.arenaID)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	arena.DoubleClick(data.BallID)
	if c.heldBall == data.BallID {
		c.heldBall = ""
	}
	sim.Manager.TouchArena(c.arenaID)
}

func (c *Client) handleResize(data protocol.ResizeData) {
	if c.arenaID == "" {
		c.sendError("join an arena first")
		return
	}
	arena, err := sim.Manager.GetArena(c.arenaID)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	bounds := arena.Resize(data.Width, data.Height)
	sim.Manager.TouchArena(c.arenaID)
	sim.Manager.PublishArenaEvent(map[string]interface{}{
		"type":     "arena_resized",
		"arena_id": c.arenaID,
		"width":    bounds.Width,
		"height":   bounds.Height,
	})
}

// releaseHeldBall drops any ball this connection is dragging.
func (c *Client) releaseHeldBall() {
	if c.heldBall == "" || c.arenaID == "" {
		c.heldBall = ""
		return
	}
	if arena, err := sim.Manager.GetArena(c.arenaID); err == nil {
		arena.PointerUp(c.heldBall)
	}
	c.heldBall = ""
}

// parseGuestToken validates a guest JWT against the shared secret.
func parseGuestToken(token string) (int, error) {
	if wsConfig == nil {
		return 0, fmt.Errorf("ws config not set")
	}
	if token == "" {
		return 0, fmt.Errorf("empty token")
	}

	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(wsConfig.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid claims")
	}
	guestIDf, ok := claims["guest_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("missing guest_id claim")
	}
	return int(guestIDf), nil
}

func newConnID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("c_%d", time.Now().UnixNano())
	}
	return "c_" + hex.EncodeToString(b)
}
