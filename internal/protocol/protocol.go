// Package protocol defines the JSON wire format spoken over /ws. Every frame
// is a text message shaped {type, data}; data payloads are defined per type.
package protocol

import "encoding/json"

const Version = "1.0"

// Client -> server message types.
const (
	TypeHello       = "hello"
	TypeJoinArena   = "join_arena"
	TypeLeaveArena  = "leave_arena"
	TypeSpawnBall   = "spawn_ball"
	TypeRemoveBall  = "remove_ball"
	TypeClearBalls  = "clear_balls"
	TypePointerDown = "pointer_down"
	TypePointerMove = "pointer_move"
	TypePointerUp   = "pointer_up"
	TypeDoubleClick = "double_click"
	TypeResize      = "resize"
	TypePing        = "ping"
)

// Server -> client message types.
const (
	TypeWelcome       = "welcome"
	TypeArenaJoined   = "arena_joined"
	TypeFrame         = "frame"
	TypeBallCollision = "ball_collision"
	TypeArenaEvent    = "arena_event"
	TypeError         = "error"
	TypePong          = "pong"
)

// Message is the envelope for every WebSocket frame.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw frame into the envelope without touching the payload.
func Decode(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}

// Encode builds a complete frame from a type and its payload.
func Encode(msgType string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		d, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = d
	}
	return json.Marshal(Message{Type: msgType, Data: data})
}
