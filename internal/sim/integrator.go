package sim

import (
	"log"
	"math"
	"sync"
	"time"
)

// Integrator advances one ball on its own ~16ms ticker. All shared state
// flows through the Store; the integrator keeps only transient working
// values (drag accumulator, pointer offset) that are not part of the model.
//
// State machine: Idle (settled) <-> Animating <-> Dragging. Settle is the
// only intentional stable Idle; spawn, drag release, incoming collisions and
// container resizes all wake a settled ball.
type Integrator struct {
	ballID string
	store  *Store
	params Params
	bounds func() Bounds // latest known bounds, re-read at every tick start
	events func([]CollisionEvent)

	mu          sync.Mutex
	dragging    bool
	dragOffset  Vec2
	dragVel     Vec2
	lastPointer Vec2
	dragStart   time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewIntegrator(ballID string, store *Store, params Params, bounds func() Bounds, events func([]CollisionEvent)) *Integrator {
	return &Integrator{
		ballID: ballID,
		store:  store,
		params: params,
		bounds: bounds,
		events: events,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the tick loop. The loop ends when Stop is called or the
// ball disappears from the store.
func (it *Integrator) Start() {
	go it.run()
}

func (it *Integrator) run() {
	defer close(it.done)

	ticker := time.NewTicker(it.params.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-it.stop:
			return
		case <-ticker.C:
			if !it.Tick(time.Now()) {
				return
			}
		}
	}
}

// Stop ends the tick loop and releases any in-flight drag state.
func (it *Integrator) Stop() {
	it.stopOnce.Do(func() { close(it.stop) })
}

// Done is closed when the tick loop has exited.
func (it *Integrator) Done() <-chan struct{} {
	return it.done
}

// Tick advances the ball by one step. Returns false when the ball no longer
// exists. Exported so tests can drive the integrator without real timers.
func (it *Integrator) Tick(now time.Time) bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	b, ok := it.store.Get(it.ballID)
	if !ok {
		return false
	}

	if it.dragging {
		// Physics stays suspended while held. The safety timeout is the
		// escape hatch for a pointer-up that never arrived.
		if now.Sub(it.dragStart) >= it.params.DragTimeout() {
			log.Printf("[SIM] ball %s held past %v; forcing release", it.ballID, it.params.DragTimeout())
			it.releaseLocked(b)
		}
		return true
	}

	if !b.Animating {
		// Settled: position is stable until something wakes the ball.
		return true
	}

	bounds := it.bounds()
	mass := b.Mass()

	vel := b.Velocity
	vel.X *= it.params.Friction(mass)
	vel.Y += it.params.Gravity(mass)

	pos := b.Position.Plus(vel)
	animating := true

	if it.store.Len() > 1 {
		result := CheckCollisions(it.ballID, pos, vel, it.store.Snapshot(), now.UnixMilli(), it.params)
		if result.Collided {
			vel = result.Velocity
			pos = result.Position
			it.store.ApplyCollisionUpdates(result.OtherBallUpdates)
			if it.events != nil {
				it.events(result.Events)
			}
		}
	}

	bounce := it.params.Bounce(mass)
	maxX := bounds.Width - b.Size
	maxY := bounds.Height - b.Size

	if pos.X <= 0 {
		pos.X = 0
		vel.X = -vel.X * bounce
	}
	if pos.X >= maxX {
		pos.X = maxX
		vel.X = -vel.X * bounce
	}

	if pos.Y >= maxY {
		pos.Y = maxY
		vel.Y = -vel.Y * bounce
		if math.Abs(vel.Y) < it.params.FloorSnapVel {
			vel.Y = 0
		}
		if math.Abs(vel.Y) < it.params.RestVelY && math.Abs(vel.X) < it.params.RestVelX {
			animating = false
			vel = Vec2{}
		}
	}
	if pos.Y <= 0 {
		pos.Y = 0
		vel.Y = -vel.Y * bounce
	}

	pos.X = clamp(pos.X, 0, maxX)
	pos.Y = clamp(pos.Y, 0, maxY)

	it.store.Update(it.ballID, Patch{Position: &pos, Velocity: &vel, Animating: &animating})
	return true
}

// PointerDown begins a drag. The point is arena-local and must hit the
// ball's box. Returns false if the ball is gone, already held, or missed.
func (it *Integrator) PointerDown(p Vec2, now time.Time) bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	b, ok := it.store.Get(it.ballID)
	if !ok || b.Dragging || !b.Contains(p) {
		return false
	}

	it.dragging = true
	it.dragOffset = p.Minus(b.Position)
	it.dragVel = Vec2{}
	it.lastPointer = p
	it.dragStart = now

	dragging := true
	it.store.Update(it.ballID, Patch{Dragging: &dragging})
	return true
}

// PointerMove tracks the pointer while dragging: the position follows the
// pointer minus the captured offset, and the raw per-event delta feeds an
// exponentially smoothed velocity accumulator.
func (it *Integrator) PointerMove(p Vec2) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if !it.dragging {
		return
	}
	b, ok := it.store.Get(it.ballID)
	if !ok {
		it.dragging = false
		return
	}

	instant := p.Minus(it.lastPointer)
	w := it.params.DragSmoothing
	it.dragVel = it.dragVel.Times(1 - w).Plus(instant.Times(w))
	it.lastPointer = p

	bounds := it.bounds()
	pos := p.Minus(it.dragOffset)
	pos.X = clamp(pos.X, 0, bounds.Width-b.Size)
	pos.Y = clamp(pos.Y, 0, bounds.Height-b.Size)

	dragging := true
	it.store.Update(it.ballID, Patch{Position: &pos, Dragging: &dragging})
}

// PointerUp releases the ball with the accumulated throw velocity.
func (it *Integrator) PointerUp() {
	it.mu.Lock()
	defer it.mu.Unlock()

	if !it.dragging {
		return
	}
	b, ok := it.store.Get(it.ballID)
	if !ok {
		it.dragging = false
		return
	}
	it.releaseLocked(b)
}

// DoubleClick is the manual unstick: if the ball is somehow still held,
// force a release.
func (it *Integrator) DoubleClick() {
	it.mu.Lock()
	defer it.mu.Unlock()

	if !it.dragging {
		return
	}
	b, ok := it.store.Get(it.ballID)
	if !ok {
		it.dragging = false
		return
	}
	log.Printf("[SIM] ball %s released by double-click", it.ballID)
	it.releaseLocked(b)
}

// Dragging reports whether this integrator currently owns a drag.
func (it *Integrator) Dragging() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.dragging
}

// releaseLocked ends the drag and applies the mass-scaled throw velocity.
// Caller holds it.mu.
func (it *Integrator) releaseLocked(b Ball) {
	vel := it.dragVel.Times(it.params.MomentumScale(b.Mass()))
	it.dragging = false

	dragging := false
	animating := true
	it.store.Update(it.ballID, Patch{Velocity: &vel, Dragging: &dragging, Animating: &animating})
}

func clamp(v, min, max float64) float64 {
	if max < min {
		max = min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
