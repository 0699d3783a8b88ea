package sim

import "math"

// CollisionEvent describes one resolved impact. Speed is the closing speed
// along the normal; clients use it to scale sound cues.
type CollisionEvent struct {
	BallID  string  `json:"ball_id"`
	OtherID string  `json:"other_id"`
	Speed   float64 `json:"speed"`
}

// CollisionResult is what CheckCollisions hands back to the acting ball's
// integrator: the corrected state for the acting ball plus deferred updates
// for every ball it hit this tick.
type CollisionResult struct {
	Velocity         Vec2
	Position         Vec2
	Collided         bool
	OtherBallUpdates []BallUpdate
	Events           []CollisionEvent
}

// CheckCollisions resolves the acting ball's tentative position and velocity
// against the roster. Pure: nothing is mutated, all corrections are returned.
//
// Candidates are every other ball that is not being dragged and whose last
// collision is older than the cooldown window. They are processed in roster
// order, each refining the acting ball's running state, so a later candidate
// sees the already-adjusted position and velocity, not the original.
func CheckCollisions(actingID string, pos, vel Vec2, roster []Ball, now int64, p Params) CollisionResult {
	res := CollisionResult{Velocity: vel, Position: pos}

	var acting *Ball
	for i := range roster {
		if roster[i].ID == actingID {
			acting = &roster[i]
			break
		}
	}
	if acting == nil {
		return res
	}

	size1 := acting.Size
	mass1 := acting.Mass()

	for i := range roster {
		other := roster[i]
		if other.ID == actingID || other.Dragging {
			continue
		}
		if other.LastCollisionAt != 0 && now-other.LastCollisionAt <= p.CooldownMillis {
			continue
		}

		actingCenter := Vec2{X: res.Position.X + size1/2, Y: res.Position.Y + size1/2}
		delta := actingCenter.Minus(other.Center())
		distance := delta.Magnitude()
		minDistance := (size1 + other.Size) / 2

		// Coincident centers have no defined normal; skip rather than guess.
		if distance == 0 || distance >= minDistance {
			continue
		}

		normal := delta.Times(1 / distance)
		speed := res.Velocity.Minus(other.Velocity).Dot(normal)
		if speed > 0 {
			// Already separating.
			continue
		}

		mass2 := other.Mass()
		totalMass := mass1 + mass2
		impulse := 2 * speed * p.Restitution / totalMass

		res.Velocity = res.Velocity.Minus(normal.Times(impulse * mass2))

		// Push the pair apart so they do not re-overlap next tick; the
		// heavier side moves the lighter one further.
		overlap := minDistance - distance + p.SeparationSlack
		res.Position = res.Position.Plus(normal.Times(overlap * mass2 / totalMass))

		res.OtherBallUpdates = append(res.OtherBallUpdates, BallUpdate{
			ID:              other.ID,
			Velocity:        other.Velocity.Plus(normal.Times(impulse * mass1)),
			Position:        other.Position.Minus(normal.Times(overlap * mass1 / totalMass)),
			Animating:       true,
			LastCollisionAt: now,
		})
		res.Events = append(res.Events, CollisionEvent{
			BallID:  actingID,
			OtherID: other.ID,
			Speed:   math.Abs(speed),
		})
		res.Collided = true
	}

	return res
}
