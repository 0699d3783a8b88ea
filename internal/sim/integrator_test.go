package sim

import (
	"math"
	"testing"
	"time"
)

// Helper to set up a store with one ball and an integrator driven manually,
// without real timers.
func setupDrop(x, y, size, w, h float64) (*Store, *Integrator, string) {
	store := NewStore()
	id := store.Add(SpawnOptions{X: &x, Y: &y, Size: &size})
	bounds := func() Bounds { return Bounds{Width: w, Height: h} }
	it := NewIntegrator(id, store, DefaultParams(), bounds, nil)
	return store, it, id
}

// stepTicks advances the integrator n steps at the nominal tick interval.
func stepTicks(it *Integrator, start time.Time, n int) time.Time {
	now := start
	for i := 0; i < n; i++ {
		now = now.Add(16 * time.Millisecond)
		if !it.Tick(now) {
			break
		}
	}
	return now
}

func TestDroppedBallSettlesOnFloor(t *testing.T) {
	// Size-80 ball dropped from the top of an 800x600 container: it must
	// come to rest exactly on the floor line at y=520.
	store, it, id := setupDrop(100, 0, 80, 800, 600)

	now := time.Now()
	settled := false
	for i := 0; i < 2000; i++ {
		now = now.Add(16 * time.Millisecond)
		it.Tick(now)
		if b, _ := store.Get(id); !b.Animating {
			settled = true
			break
		}
	}
	if !settled {
		t.Fatal("Ball never settled after 2000 ticks")
	}

	b, _ := store.Get(id)
	if b.Position.Y != 520 {
		t.Errorf("Settled ball should rest at y=520, got %.4f", b.Position.Y)
	}
	if !b.Velocity.IsZero() {
		t.Errorf("Settled ball should be motionless, got (%.4f,%.4f)", b.Velocity.X, b.Velocity.Y)
	}
	if b.Position.X != 100 {
		t.Errorf("Straight drop should not drift in x: got %.4f", b.Position.X)
	}
}

func TestSettledBallTicksAreFree(t *testing.T) {
	store, it, id := setupDrop(100, 0, 80, 800, 600)

	now := stepTicks(it, time.Now(), 2000)
	if b, _ := store.Get(id); b.Animating {
		t.Fatal("Ball should have settled")
	}

	// Further ticks must not write to the store at all.
	version := store.Version()
	stepTicks(it, now, 50)
	if store.Version() != version {
		t.Errorf("Settled ticks wrote to the store: version %d -> %d", version, store.Version())
	}
}

func TestGravityScalesWithMassUpToCap(t *testing.T) {
	p := DefaultParams()

	// Mass 0.25 falls slower than mass 1; mass above the cap accelerates
	// no faster than the cap allows.
	if g1, g2 := p.Gravity(0.25), p.Gravity(1); g1 >= g2 {
		t.Errorf("Lighter ball should fall slower: %.4f vs %.4f", g1, g2)
	}
	if gCap, gHuge := p.Gravity(2), p.Gravity(5); gCap != gHuge {
		t.Errorf("Gravity should cap at mass 2: %.4f vs %.4f", gCap, gHuge)
	}
}

func TestRightWallBounce(t *testing.T) {
	// Ball flying right at the wall: clamped to the wall line with a
	// damped, reversed x velocity.
	store, it, id := setupDrop(719, 100, 80, 800, 600)
	vel := Vec2{X: 10, Y: 0}
	store.Update(id, Patch{Velocity: &vel})

	it.Tick(time.Now())

	p := DefaultParams()
	b, _ := store.Get(id)
	if b.Position.X != 720 {
		t.Errorf("Ball should be clamped to the right wall at 720, got %.4f", b.Position.X)
	}
	wantVX := -(10 * p.Friction(1)) * p.Bounce(1)
	if math.Abs(b.Velocity.X-wantVX) > 1e-9 {
		t.Errorf("Reflected velocity: got %.6f want %.6f", b.Velocity.X, wantVX)
	}
}

func TestLeftWallBounce(t *testing.T) {
	store, it, id := setupDrop(1, 100, 80, 800, 600)
	vel := Vec2{X: -10, Y: 0}
	store.Update(id, Patch{Velocity: &vel})

	it.Tick(time.Now())

	b, _ := store.Get(id)
	if b.Position.X != 0 {
		t.Errorf("Ball should be clamped to the left wall at 0, got %.4f", b.Position.X)
	}
	if b.Velocity.X <= 0 {
		t.Errorf("Velocity should reflect off the left wall: got %.4f", b.Velocity.X)
	}
}

func TestCeilingBounce(t *testing.T) {
	store, it, id := setupDrop(100, 1, 80, 800, 600)
	vel := Vec2{X: 0, Y: -10}
	store.Update(id, Patch{Velocity: &vel})

	it.Tick(time.Now())

	b, _ := store.Get(id)
	if b.Position.Y != 0 {
		t.Errorf("Ball should be clamped to the ceiling at 0, got %.4f", b.Position.Y)
	}
	if b.Velocity.Y <= 0 {
		t.Errorf("Velocity should reflect downward off the ceiling: got %.4f", b.Velocity.Y)
	}
}

func TestFloorSnapKillsSmallBounces(t *testing.T) {
	// Slow floor contact: the reflected bounce would be under the snap
	// threshold, so vertical velocity zeroes instead of micro-bouncing.
	store, it, id := setupDrop(100, 519, 80, 800, 600)
	vel := Vec2{X: 0, Y: 2}
	store.Update(id, Patch{Velocity: &vel})

	it.Tick(time.Now())

	b, _ := store.Get(id)
	if b.Velocity.Y != 0 {
		t.Errorf("Small floor bounce should snap to 0, got %.4f", b.Velocity.Y)
	}
	// With no horizontal motion either, the ball settles outright.
	if b.Animating {
		t.Error("Slow vertical-only floor contact should settle the ball")
	}
}

func TestSlidingBallDoesNotSettle(t *testing.T) {
	// Same floor contact but with real horizontal speed: the bounce still
	// snaps flat, yet the ball keeps sliding.
	store, it, id := setupDrop(100, 519, 80, 800, 600)
	vel := Vec2{X: 5, Y: 2}
	store.Update(id, Patch{Velocity: &vel})

	it.Tick(time.Now())

	b, _ := store.Get(id)
	if b.Velocity.Y != 0 {
		t.Errorf("Floor contact should flatten vertical speed, got %.4f", b.Velocity.Y)
	}
	if !b.Animating {
		t.Error("Ball still sliding horizontally must not settle")
	}
	if b.Velocity.X <= 0 {
		t.Errorf("Horizontal slide should continue: got %.4f", b.Velocity.X)
	}
}

func TestDragSuspendsPhysics(t *testing.T) {
	store, it, id := setupDrop(100, 100, 80, 800, 600)

	now := time.Now()
	if !it.PointerDown(Vec2{X: 140, Y: 140}, now) {
		t.Fatal("PointerDown inside the ball should succeed")
	}

	version := store.Version()
	stepTicks(it, now, 20)

	b, _ := store.Get(id)
	if b.Position.X != 100 || b.Position.Y != 100 {
		t.Errorf("Held ball must not move: got (%.4f,%.4f)", b.Position.X, b.Position.Y)
	}
	if store.Version() != version {
		t.Error("Held ticks should not write to the store")
	}
	if !b.Dragging {
		t.Error("Ball should be flagged as dragging")
	}
}

func TestDragFollowsPointerWithOffset(t *testing.T) {
	store, it, id := setupDrop(100, 100, 80, 800, 600)

	now := time.Now()
	// Grab 30px into the ball; the ball must keep that grip offset.
	if !it.PointerDown(Vec2{X: 130, Y: 110}, now) {
		t.Fatal("PointerDown should succeed")
	}
	it.PointerMove(Vec2{X: 200, Y: 150})

	b, _ := store.Get(id)
	if b.Position.X != 170 || b.Position.Y != 140 {
		t.Errorf("Ball should follow pointer minus grip offset: got (%.4f,%.4f)", b.Position.X, b.Position.Y)
	}
}

func TestDragClampsToBounds(t *testing.T) {
	store, it, id := setupDrop(100, 100, 80, 800, 600)

	now := time.Now()
	if !it.PointerDown(Vec2{X: 140, Y: 140}, now) {
		t.Fatal("PointerDown should succeed")
	}
	// Yank the pointer far outside the container.
	it.PointerMove(Vec2{X: 5000, Y: 5000})

	b, _ := store.Get(id)
	if b.Position.X != 720 || b.Position.Y != 520 {
		t.Errorf("Dragged ball must stay inside bounds: got (%.4f,%.4f)", b.Position.X, b.Position.Y)
	}
}

func TestReleaseAppliesSmoothedMomentum(t *testing.T) {
	store, it, id := setupDrop(100, 0, 80, 800, 600)

	now := time.Now()
	if !it.PointerDown(Vec2{X: 140, Y: 40}, now) {
		t.Fatal("PointerDown should succeed")
	}

	// Two 10px-right moves: accumulator is 0*0.5+10*0.5=5, then
	// 5*0.5+10*0.5=7.5. Release scales by 0.75*(1+mass*0.2)=0.9.
	it.PointerMove(Vec2{X: 150, Y: 40})
	it.PointerMove(Vec2{X: 160, Y: 40})
	it.PointerUp()

	b, _ := store.Get(id)
	if b.Dragging {
		t.Error("Released ball should not be dragging")
	}
	if !b.Animating {
		t.Error("Released ball should be animating")
	}
	if math.Abs(b.Velocity.X-6.75) > 1e-9 {
		t.Errorf("Throw velocity: got %.6f want 6.75", b.Velocity.X)
	}
	if b.Velocity.Y != 0 {
		t.Errorf("Horizontal throw should have no vertical speed: got %.4f", b.Velocity.Y)
	}
}

func TestDragSafetyTimeoutForcesRelease(t *testing.T) {
	store, it, id := setupDrop(100, 100, 80, 800, 600)

	now := time.Now()
	if !it.PointerDown(Vec2{X: 140, Y: 140}, now) {
		t.Fatal("PointerDown should succeed")
	}

	// A tick just inside the window keeps the hold.
	it.Tick(now.Add(9 * time.Second))
	if b, _ := store.Get(id); !b.Dragging {
		t.Fatal("Hold should survive 9 seconds")
	}

	// Past the timeout the hold is forcibly broken.
	it.Tick(now.Add(11 * time.Second))
	b, _ := store.Get(id)
	if b.Dragging {
		t.Error("Hold should be force-released after the safety timeout")
	}
	if it.Dragging() {
		t.Error("Integrator should have dropped its drag state")
	}
}

func TestDoubleClickUnsticksHeldBall(t *testing.T) {
	store, it, id := setupDrop(100, 100, 80, 800, 600)

	now := time.Now()
	if !it.PointerDown(Vec2{X: 140, Y: 140}, now) {
		t.Fatal("PointerDown should succeed")
	}

	it.DoubleClick()

	b, _ := store.Get(id)
	if b.Dragging {
		t.Error("Double-click should force a release")
	}
	if !b.Animating {
		t.Error("Released ball should resume physics")
	}
}

func TestPointerDownValidatesHit(t *testing.T) {
	_, it, _ := setupDrop(100, 100, 80, 800, 600)

	now := time.Now()
	if it.PointerDown(Vec2{X: 10, Y: 10}, now) {
		t.Error("PointerDown far from the ball should fail")
	}
	if !it.PointerDown(Vec2{X: 100, Y: 100}, now) {
		t.Error("PointerDown on the ball's corner should succeed")
	}
	// A second grab while held must be rejected.
	if it.PointerDown(Vec2{X: 140, Y: 140}, now) {
		t.Error("PointerDown on a held ball should fail")
	}
}

func TestTickStopsWhenBallRemoved(t *testing.T) {
	store, it, id := setupDrop(100, 100, 80, 800, 600)

	store.Remove(id)
	if it.Tick(time.Now()) {
		t.Error("Tick should report false once the ball is gone")
	}
}

func TestFallingBallWakesRestingTarget(t *testing.T) {
	// A settled ball on the floor gets hit by a falling one: the impact
	// must wake it and stamp its collision time.
	store := NewStore()

	fx, fy, size := 100.0, 300.0, 80.0
	faller := store.Add(SpawnOptions{X: &fx, Y: &fy, Size: &size})

	rx, ry := 100.0, 520.0
	resting := store.Add(SpawnOptions{X: &rx, Y: &ry, Size: &size})
	asleep := false
	store.Update(resting, Patch{Animating: &asleep})

	bounds := func() Bounds { return Bounds{Width: 800, Height: 600} }
	it := NewIntegrator(faller, store, DefaultParams(), bounds, nil)

	now := time.Now()
	woke := false
	for i := 0; i < 500; i++ {
		now = now.Add(16 * time.Millisecond)
		it.Tick(now)
		if b, _ := store.Get(resting); b.Animating {
			woke = true
			if b.LastCollisionAt == 0 {
				t.Error("Woken ball should carry a collision timestamp")
			}
			break
		}
	}
	if !woke {
		t.Error("Falling ball never woke the resting one")
	}
}

func TestCollisionEventsReachSink(t *testing.T) {
	store := NewStore()

	fx, fy, size := 100.0, 380.0, 80.0
	faller := store.Add(SpawnOptions{X: &fx, Y: &fy, Size: &size})

	rx, ry := 100.0, 520.0
	store.Add(SpawnOptions{X: &rx, Y: &ry, Size: &size})

	var got []CollisionEvent
	sink := func(events []CollisionEvent) { got = append(got, events...) }
	bounds := func() Bounds { return Bounds{Width: 800, Height: 600} }
	it := NewIntegrator(faller, store, DefaultParams(), bounds, sink)

	now := time.Now()
	for i := 0; i < 500 && len(got) == 0; i++ {
		now = now.Add(16 * time.Millisecond)
		it.Tick(now)
	}

	if len(got) == 0 {
		t.Fatal("No collision events reached the sink")
	}
	if got[0].BallID != faller {
		t.Errorf("Event should name the acting ball: got %s", got[0].BallID)
	}
	if got[0].Speed <= 0 {
		t.Errorf("Impact speed should be positive: got %.4f", got[0].Speed)
	}
}
