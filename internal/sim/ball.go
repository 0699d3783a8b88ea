package sim

// Ball is one simulated ball in an arena. Position is the top-left anchor in
// container-local pixels; velocity is pixels per tick.
type Ball struct {
	ID              string  `json:"id"`
	Position        Vec2    `json:"position"`
	Velocity        Vec2    `json:"velocity"`
	Size            float64 `json:"size"`
	Animating       bool    `json:"is_animating"`
	Dragging        bool    `json:"is_dragging"`
	LastCollisionAt int64   `json:"last_collision_at,omitempty"` // unix ms; 0 = never collided
}

// Mass derives from diameter; size 80 is the reference ball with mass 1.
// Mass is never stored, always computed.
func (b Ball) Mass() float64 {
	r := b.Size / MassReferenceSize
	return r * r
}

func (b Ball) Center() Vec2 {
	return Vec2{X: b.Position.X + b.Size/2, Y: b.Position.Y + b.Size/2}
}

// Contains reports whether an arena-local point falls inside the ball's
// bounding box. Used to validate pointer grabs.
func (b Ball) Contains(p Vec2) bool {
	return p.X >= b.Position.X && p.X <= b.Position.X+b.Size &&
		p.Y >= b.Position.Y && p.Y <= b.Position.Y+b.Size
}
