package sim

import (
	"math"
	"testing"
	"time"
)

// Helper to build a roster ball at a given top-left position.
func rosterBall(id string, x, y, size float64) Ball {
	return Ball{
		ID:        id,
		Position:  Vec2{X: x, Y: y},
		Size:      size,
		Animating: true,
	}
}

func TestContactBoundary(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	// Two size-80 balls, centers 79px apart, acting ball moving right
	// toward the other: inside contact distance, must collide.
	roster := []Ball{
		rosterBall("a", 0, 0, 80),
		rosterBall("b", 79, 0, 80),
	}
	res := CheckCollisions("a", Vec2{X: 0, Y: 0}, Vec2{X: 1, Y: 0}, roster, now, p)
	if !res.Collided {
		t.Error("Centers 79px apart should collide (contact distance is 80)")
	}

	// Centers 81px apart: outside contact distance, no collision even
	// while approaching.
	roster[1].Position.X = 81
	res = CheckCollisions("a", Vec2{X: 0, Y: 0}, Vec2{X: 1, Y: 0}, roster, now, p)
	if res.Collided {
		t.Error("Centers 81px apart should not collide (contact distance is 80)")
	}
}

func TestSeparatingBallsDoNotCollide(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	// Overlapping pair, but the acting ball is moving away: the pass
	// leaves them alone so the overlap resolves on its own.
	roster := []Ball{
		rosterBall("a", 0, 0, 80),
		rosterBall("b", 70, 0, 80),
	}
	res := CheckCollisions("a", Vec2{X: 0, Y: 0}, Vec2{X: -5, Y: 0}, roster, now, p)
	if res.Collided {
		t.Error("Separating balls should not be re-resolved")
	}
	if res.Velocity.X != -5 || res.Velocity.Y != 0 {
		t.Errorf("Velocity should be untouched: got (%.4f,%.4f)", res.Velocity.X, res.Velocity.Y)
	}
}

func TestHeadOnCollisionConservesMomentum(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	// Equal masses approaching head-on.
	roster := []Ball{
		rosterBall("a", 0, 0, 80),
		rosterBall("b", 70, 0, 80),
	}
	roster[0].Velocity = Vec2{X: 4, Y: 0}
	roster[1].Velocity = Vec2{X: -2, Y: 0}

	m1 := roster[0].Mass()
	m2 := roster[1].Mass()
	before := m1*roster[0].Velocity.X + m2*roster[1].Velocity.X

	res := CheckCollisions("a", roster[0].Position, roster[0].Velocity, roster, now, p)
	if !res.Collided {
		t.Fatal("Overlapping approaching balls should collide")
	}
	if len(res.OtherBallUpdates) != 1 {
		t.Fatalf("Expected one deferred update, got %d", len(res.OtherBallUpdates))
	}

	after := m1*res.Velocity.X + m2*res.OtherBallUpdates[0].Velocity.X
	if math.Abs(before-after) > 1e-9 {
		t.Errorf("Momentum not conserved: before=%.6f after=%.6f", before, after)
	}

	// The impulse must push the pair apart: acting slows or reverses,
	// target picks up rightward speed.
	if res.Velocity.X >= 4 {
		t.Errorf("Acting ball should lose forward speed: got %.4f", res.Velocity.X)
	}
	if res.OtherBallUpdates[0].Velocity.X <= -2 {
		t.Errorf("Target ball should be pushed right: got %.4f", res.OtherBallUpdates[0].Velocity.X)
	}
}

func TestUnequalMassTransfer(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	// Heavy ball into a light one: the light ball should come out much
	// faster than the heavy one slows down.
	roster := []Ball{
		rosterBall("heavy", 0, 0, 120),
		rosterBall("light", 90, 20, 50),
	}
	roster[0].Velocity = Vec2{X: 6, Y: 0}

	res := CheckCollisions("heavy", roster[0].Position, roster[0].Velocity, roster, now, p)
	if !res.Collided {
		t.Fatal("Expected heavy/light contact")
	}

	heavyLoss := 6 - res.Velocity.X
	lightGain := res.OtherBallUpdates[0].Velocity.Magnitude()
	if heavyLoss <= 0 {
		t.Errorf("Heavy ball should shed speed: lost %.4f", heavyLoss)
	}
	if lightGain <= heavyLoss {
		t.Errorf("Light ball should gain more speed than the heavy one lost: gain=%.4f loss=%.4f", lightGain, heavyLoss)
	}
}

func TestCooldownExcludesRecentCollision(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	roster := []Ball{
		rosterBall("a", 0, 0, 80),
		rosterBall("b", 70, 0, 80),
	}
	roster[0].Velocity = Vec2{X: 4, Y: 0}

	// Exactly at the 50ms boundary: still cooling down, excluded.
	roster[1].LastCollisionAt = now - p.CooldownMillis
	res := CheckCollisions("a", roster[0].Position, roster[0].Velocity, roster, now, p)
	if res.Collided {
		t.Error("Ball hit exactly cooldown-ms ago should still be excluded")
	}

	// One millisecond past the window: candidate again.
	roster[1].LastCollisionAt = now - p.CooldownMillis - 1
	res = CheckCollisions("a", roster[0].Position, roster[0].Velocity, roster, now, p)
	if !res.Collided {
		t.Error("Ball past the cooldown window should collide")
	}
}

func TestDraggedBallsAreNotCandidates(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	roster := []Ball{
		rosterBall("a", 0, 0, 80),
		rosterBall("b", 70, 0, 80),
	}
	roster[0].Velocity = Vec2{X: 4, Y: 0}
	roster[1].Dragging = true

	res := CheckCollisions("a", roster[0].Position, roster[0].Velocity, roster, now, p)
	if res.Collided {
		t.Error("A held ball should pass through collision checks")
	}
}

func TestCoincidentCentersAreSkipped(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	// Identical positions: no defined normal, resolution must skip
	// without producing NaNs.
	roster := []Ball{
		rosterBall("a", 100, 100, 80),
		rosterBall("b", 100, 100, 80),
	}
	roster[0].Velocity = Vec2{X: 4, Y: 0}

	res := CheckCollisions("a", roster[0].Position, roster[0].Velocity, roster, now, p)
	if res.Collided {
		t.Error("Coincident centers should be skipped")
	}
	if math.IsNaN(res.Velocity.X) || math.IsNaN(res.Position.X) {
		t.Error("Coincident centers produced NaN state")
	}
}

func TestSequentialRefinementAcrossCandidates(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	// Acting ball overlaps two neighbors at once. Both must be resolved
	// in one pass, the second against the state the first produced.
	roster := []Ball{
		rosterBall("a", 0, 0, 80),
		rosterBall("right", 60, 0, 80),
		rosterBall("below", 0, 60, 80),
	}
	roster[0].Velocity = Vec2{X: 3, Y: 3}

	res := CheckCollisions("a", roster[0].Position, roster[0].Velocity, roster, now, p)
	if !res.Collided {
		t.Fatal("Expected contact with both neighbors")
	}
	if len(res.OtherBallUpdates) != 2 {
		t.Fatalf("Expected 2 deferred updates, got %d", len(res.OtherBallUpdates))
	}
	if len(res.Events) != 2 {
		t.Fatalf("Expected 2 collision events, got %d", len(res.Events))
	}
	for _, ev := range res.Events {
		if ev.Speed < 0 {
			t.Errorf("Event speed must be reported as magnitude: got %.4f", ev.Speed)
		}
	}
	for _, u := range res.OtherBallUpdates {
		if !u.Animating {
			t.Errorf("Struck ball %s should be woken", u.ID)
		}
		if u.LastCollisionAt != now {
			t.Errorf("Struck ball %s should carry the collision timestamp", u.ID)
		}
	}
}

func TestSeparationPushesPairApart(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	roster := []Ball{
		rosterBall("a", 0, 0, 80),
		rosterBall("b", 70, 0, 80),
	}
	roster[0].Velocity = Vec2{X: 4, Y: 0}

	res := CheckCollisions("a", roster[0].Position, roster[0].Velocity, roster, now, p)
	if !res.Collided {
		t.Fatal("Expected contact")
	}

	// After resolution the centers should sit further apart than before.
	actingCenter := Vec2{X: res.Position.X + 40, Y: res.Position.Y + 40}
	otherCenter := Vec2{
		X: res.OtherBallUpdates[0].Position.X + 40,
		Y: res.OtherBallUpdates[0].Position.Y + 40,
	}
	gap := actingCenter.Minus(otherCenter).Magnitude()
	if gap <= 70 {
		t.Errorf("Pair should be separated: center gap %.4f", gap)
	}
}

func TestUnknownActingBallIsUntouched(t *testing.T) {
	p := DefaultParams()
	now := time.Now().UnixMilli()

	roster := []Ball{rosterBall("a", 0, 0, 80)}
	res := CheckCollisions("ghost", Vec2{X: 1, Y: 2}, Vec2{X: 3, Y: 4}, roster, now, p)
	if res.Collided {
		t.Error("Unknown acting id should resolve nothing")
	}
	if res.Position.X != 1 || res.Position.Y != 2 || res.Velocity.X != 3 || res.Velocity.Y != 4 {
		t.Error("Unknown acting id should return inputs unchanged")
	}
}

func TestMassDerivesFromSize(t *testing.T) {
	cases := []struct {
		size float64
		mass float64
	}{
		{80, 1.0},
		{40, 0.25},
		{120, 2.25},
		{50, 0.390625},
	}
	for _, c := range cases {
		b := Ball{Size: c.size}
		if got := b.Mass(); math.Abs(got-c.mass) > 1e-12 {
			t.Errorf("Size %.0f: mass=%.6f want %.6f", c.size, got, c.mass)
		}
	}
}
