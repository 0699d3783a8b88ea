package sim

import (
	"errors"
	"sync"
	"time"
)

// Arena statuses persisted to the arenas table.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

var (
	ErrArenaClosed  = errors.New("arena is closed")
	ErrArenaFull    = errors.New("arena is at ball capacity")
	ErrBallNotFound = errors.New("ball not found")
	ErrBallHeld     = errors.New("ball is already held")
	ErrPointerMiss  = errors.New("pointer not on ball")
	ErrBadPreset    = errors.New("unknown size preset")
)

// Bounds is the arena container size in pixels. It mirrors the hosting
// client's viewport.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// EventSink receives resolved collision events for fanout (sound cues, the
// event log). May be nil.
type EventSink func(arenaID string, events []CollisionEvent)

// Arena is one bounded container: a roster store, one integrator per ball,
// and the latest known bounds.
type Arena struct {
	ID        string
	Name      string
	CreatedBy int
	CreatedAt time.Time

	store  *Store
	params Params
	sink   EventSink

	mu          sync.RWMutex
	bounds      Bounds
	status      string
	integrators map[string]*Integrator
	lastActive  time.Time
}

func NewArena(id, name string, bounds Bounds, params Params, createdBy int, sink EventSink) *Arena {
	return &Arena{
		ID:          id,
		Name:        name,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		store:       NewStore(),
		params:      params,
		sink:        sink,
		bounds:      clampBounds(bounds),
		status:      StatusActive,
		integrators: make(map[string]*Integrator),
		lastActive:  time.Now(),
	}
}

func clampBounds(b Bounds) Bounds {
	if b.Width == 0 {
		b.Width = DefaultArenaWidth
	}
	if b.Height == 0 {
		b.Height = DefaultArenaHeight
	}
	b.Width = clamp(b.Width, MinArenaDimension, MaxArenaDimension)
	b.Height = clamp(b.Height, MinArenaDimension, MaxArenaDimension)
	return b
}

func (a *Arena) Store() *Store { return a.store }

func (a *Arena) Params() Params { return a.params }

// Bounds returns the latest known container size. Integrators re-read it at
// every tick start so an in-flight tick never clamps against stale bounds.
func (a *Arena) Bounds() Bounds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bounds
}

// Resize adopts a client's reported viewport and wakes every settled ball so
// it re-clamps on its next tick. Last writer wins.
func (a *Arena) Resize(w, h float64) Bounds {
	a.mu.Lock()
	a.bounds = clampBounds(Bounds{Width: w, Height: h})
	b := a.bounds
	a.lastActive = time.Now()
	a.mu.Unlock()

	a.store.WakeAll()
	return b
}

func (a *Arena) Status() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *Arena) Closed() bool {
	return a.Status() == StatusClosed
}

func (a *Arena) LastActive() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastActive
}

// Touch refreshes the in-memory activity clock.
func (a *Arena) Touch() {
	a.mu.Lock()
	a.lastActive = time.Now()
	a.mu.Unlock()
}

// SpawnBall adds a ball to the roster and starts its integrator.
func (a *Arena) SpawnBall(opt SpawnOptions) (string, error) {
	a.mu.Lock()
	if a.status != StatusActive {
		a.mu.Unlock()
		return "", ErrArenaClosed
	}
	if a.store.Len() >= a.params.MaxBalls {
		a.mu.Unlock()
		return "", ErrArenaFull
	}

	id := a.store.Add(opt)
	it := NewIntegrator(id, a.store, a.params, a.Bounds, a.collisionEvents)
	a.integrators[id] = it
	a.lastActive = time.Now()
	a.mu.Unlock()

	it.Start()
	return id, nil
}

// SpawnPreset spawns at randomized coordinates with a preset diameter.
func (a *Arena) SpawnPreset(kind string) (string, error) {
	size, ok := PresetSize(kind)
	if !ok {
		return "", ErrBadPreset
	}
	x, y := RandomSpawn(a.params, a.Bounds(), size)
	return a.SpawnBall(SpawnOptions{X: &x, Y: &y, Size: &size})
}

// RemoveNewest removes the most recently added ball.
func (a *Arena) RemoveNewest() (string, bool) {
	id, ok := a.store.RemoveNewest()
	if !ok {
		return "", false
	}
	a.dropIntegrator(id)
	a.Touch()
	return id, true
}

// RemoveBall removes a specific ball. No-op if unknown.
func (a *Arena) RemoveBall(id string) {
	a.store.Remove(id)
	a.dropIntegrator(id)
	a.Touch()
}

// ClearBalls empties the arena and returns how many balls were removed.
func (a *Arena) ClearBalls() int {
	a.mu.Lock()
	n := a.store.Len()
	for id, it := range a.integrators {
		it.Stop()
		delete(a.integrators, id)
	}
	a.lastActive = time.Now()
	a.mu.Unlock()

	a.store.ClearAll()
	return n
}

func (a *Arena) dropIntegrator(id string) {
	a.mu.Lock()
	if it, ok := a.integrators[id]; ok {
		it.Stop()
		delete(a.integrators, id)
	}
	a.mu.Unlock()
}

func (a *Arena) integrator(id string) *Integrator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.integrators[id]
}

// PointerDown starts a drag on the given ball.
func (a *Arena) PointerDown(ballID string, p Vec2, now time.Time) error {
	if a.Closed() {
		return ErrArenaClosed
	}
	it := a.integrator(ballID)
	if it == nil {
		return ErrBallNotFound
	}
	b, ok := a.store.Get(ballID)
	if !ok {
		return ErrBallNotFound
	}
	if b.Dragging {
		return ErrBallHeld
	}
	if !b.Contains(p) {
		return ErrPointerMiss
	}
	if !it.PointerDown(p, now) {
		return ErrBallHeld
	}
	a.Touch()
	return nil
}

func (a *Arena) PointerMove(ballID string, p Vec2) {
	if it := a.integrator(ballID); it != nil {
		it.PointerMove(p)
	}
}

func (a *Arena) PointerUp(ballID string) {
	if it := a.integrator(ballID); it != nil {
		it.PointerUp()
		a.Touch()
	}
}

func (a *Arena) DoubleClick(ballID string) {
	if it := a.integrator(ballID); it != nil {
		it.DoubleClick()
	}
}

func (a *Arena) Snapshot() []Ball {
	return a.store.Snapshot()
}

func (a *Arena) BallCount() int {
	return a.store.Len()
}

func (a *Arena) Version() uint64 {
	return a.store.Version()
}

// Rehydrate rebuilds the roster from a snapshot. Drag state never survives a
// restart: every ball comes back animating and free.
func (a *Arena) Rehydrate(balls []Ball) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range balls {
		b.Dragging = false
		b.Animating = true
		a.store.Restore(b)
		it := NewIntegrator(b.ID, a.store, a.params, a.Bounds, a.collisionEvents)
		a.integrators[b.ID] = it
		it.Start()
	}
}

// Close stops every integrator and marks the arena closed. Idempotent.
func (a *Arena) Close() {
	a.mu.Lock()
	if a.status == StatusClosed {
		a.mu.Unlock()
		return
	}
	a.status = StatusClosed
	for id, it := range a.integrators {
		it.Stop()
		delete(a.integrators, id)
	}
	a.mu.Unlock()
}

func (a *Arena) collisionEvents(events []CollisionEvent) {
	if a.sink != nil {
		a.sink(a.ID, events)
	}
}
