package protocol

import "github.com/ballpit/backend/internal/sim"

// hello (client -> server)
type HelloData struct {
	Token           string `json:"token"`
	ProtocolVersion string `json:"protocol_version"`
}

// join_arena (client -> server)
type JoinArenaData struct {
	ArenaID string `json:"arena_id"`
}

// spawn_ball (client -> server). Preset wins over explicit size when both are
// set; absent coordinates fall back to the randomized spawn window.
type SpawnBallData struct {
	Preset string   `json:"preset,omitempty"`
	Size   *float64 `json:"size,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
}

// pointer_down (client -> server). Coordinates are arena-local pixels.
type PointerDownData struct {
	BallID string  `json:"ball_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// pointer_move / pointer_up (client -> server)
type PointerData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// double_click (client -> server)
type DoubleClickData struct {
	BallID string `json:"ball_id"`
}

// resize (client -> server)
type ResizeData struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// welcome (server -> client)
type WelcomeData struct {
	GuestID         int    `json:"guest_id"`
	DisplayName     string `json:"display_name,omitempty"`
	ProtocolVersion string `json:"protocol_version"`
}

// ArenaInfo is the arena header shared by arena_joined and the REST list.
type ArenaInfo struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Bounds sim.Bounds `json:"bounds"`
}

// arena_joined (server -> client): full snapshot sent once on join.
type ArenaJoinedData struct {
	Arena  ArenaInfo  `json:"arena"`
	Balls  []sim.Ball `json:"balls"`
	TickMS int        `json:"tick_ms"`
}

// frame (server -> client): broadcast whenever the store version advanced.
type FrameData struct {
	ArenaID string     `json:"arena_id"`
	Version uint64     `json:"version"`
	Balls   []sim.Ball `json:"balls"`
}

// ball_collision (server -> client): impact cue with relative approach speed.
type BallCollisionData struct {
	ArenaID string  `json:"arena_id"`
	BallID  string  `json:"ball_id"`
	OtherID string  `json:"other_id"`
	Speed   float64 `json:"speed"`
}

// error (server -> client)
type ErrorData struct {
	Message string `json:"message"`
}
