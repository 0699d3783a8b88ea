package sim

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// SpawnOptions overrides the spawn defaults (x=100, y=0, size=80). Nil fields
// keep the default.
type SpawnOptions struct {
	X    *float64
	Y    *float64
	Size *float64
}

// Patch is a partial ball update. Nil fields are left untouched.
type Patch struct {
	Position        *Vec2
	Velocity        *Vec2
	Size            *float64
	Animating       *bool
	Dragging        *bool
	LastCollisionAt *int64
}

// BallUpdate is a deferred correction computed by the collision resolver for
// a ball other than the acting one. Applied by the store as absolute values.
type BallUpdate struct {
	ID              string
	Position        Vec2
	Velocity        Vec2
	Animating       bool
	LastCollisionAt int64
}

// Store holds the authoritative roster for one arena. Every mutation goes
// through it and is applied atomically per call; writes that change nothing
// are skipped so the version only advances on effective change.
type Store struct {
	mu      sync.RWMutex
	balls   map[string]*Ball
	order   []string // insertion order; defines collision iteration order
	version uint64
}

func NewStore() *Store {
	return &Store{balls: make(map[string]*Ball)}
}

// Add creates a ball and returns its id. Always succeeds.
func (s *Store) Add(opt SpawnOptions) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &Ball{
		Position:  Vec2{X: DefaultSpawnX, Y: DefaultSpawnY},
		Size:      DefaultBallSize,
		Animating: true,
	}
	if opt.X != nil {
		b.Position.X = *opt.X
	}
	if opt.Y != nil {
		b.Position.Y = *opt.Y
	}
	if opt.Size != nil {
		b.Size = *opt.Size
	}

	id := newBallID()
	for s.balls[id] != nil {
		id = newBallID()
	}
	b.ID = id

	s.balls[id] = b
	s.order = append(s.order, id)
	s.version++
	return id
}

// Restore inserts a ball carrying its existing id, used when rebuilding a
// roster from a persisted snapshot. Replaces a ball with the same id.
func (s *Store) Restore(b Ball) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balls[b.ID]; !ok {
		s.order = append(s.order, b.ID)
	}
	copied := b
	s.balls[b.ID] = &copied
	s.version++
}

// Remove deletes a ball. No-op if the id is unknown.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balls[id]; !ok {
		return
	}
	delete(s.balls, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
}

// RemoveNewest deletes the most recently added ball.
func (s *Store) RemoveNewest() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return "", false
	}
	id := s.order[len(s.order)-1]
	delete(s.balls, id)
	s.order = s.order[:len(s.order)-1]
	s.version++
	return id, true
}

// Update merges the supplied fields into an existing ball. No-op if the id is
// unknown. Returns false without bumping the version when no supplied field
// actually differs, so downstream consumers never recompute on no-change
// writes.
func (s *Store) Update(id string, p Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balls[id]
	if !ok {
		return false
	}

	changed := false
	if p.Position != nil && !b.Position.IsEqualTo(*p.Position) {
		changed = true
	}
	if p.Velocity != nil && !b.Velocity.IsEqualTo(*p.Velocity) {
		changed = true
	}
	if p.Size != nil && b.Size != *p.Size {
		changed = true
	}
	if p.Animating != nil && b.Animating != *p.Animating {
		changed = true
	}
	if p.Dragging != nil && b.Dragging != *p.Dragging {
		changed = true
	}
	if p.LastCollisionAt != nil && b.LastCollisionAt != *p.LastCollisionAt {
		changed = true
	}
	if !changed {
		return false
	}

	if p.Position != nil {
		b.Position = *p.Position
	}
	if p.Velocity != nil {
		b.Velocity = *p.Velocity
	}
	if p.Size != nil {
		b.Size = *p.Size
	}
	if p.Animating != nil {
		b.Animating = *p.Animating
	}
	if p.Dragging != nil {
		b.Dragging = *p.Dragging
	}
	if p.LastCollisionAt != nil {
		b.LastCollisionAt = *p.LastCollisionAt
	}
	s.version++
	return true
}

// Get returns a copy of the ball.
func (s *Store) Get(id string) (Ball, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balls[id]
	if !ok {
		return Ball{}, false
	}
	return *b, true
}

// ClearAll empties the roster.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.balls) == 0 {
		return
	}
	s.balls = make(map[string]*Ball)
	s.order = nil
	s.version++
}

// Snapshot returns the roster in insertion order. Callers get copies.
func (s *Store) Snapshot() []Ball {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Ball, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.balls[id])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.balls)
}

// Version is a monotonic counter bumped on every effective mutation. Frame
// broadcasters compare it to skip no-change frames.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ApplyCollisionUpdates applies the resolver's deferred corrections in one
// atomic call. Unknown ids are skipped, as are balls grabbed since the
// snapshot was taken.
func (s *Store) ApplyCollisionUpdates(batch []BallUpdate) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := false
	for _, u := range batch {
		b, ok := s.balls[u.ID]
		if !ok || b.Dragging {
			continue
		}
		b.Position = u.Position
		b.Velocity = u.Velocity
		b.Animating = u.Animating
		b.LastCollisionAt = u.LastCollisionAt
		applied = true
	}
	if applied {
		s.version++
	}
}

// Wake re-arms physics on a settled ball. Dragging balls are left alone.
func (s *Store) Wake(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balls[id]
	if !ok || b.Dragging || b.Animating {
		return
	}
	b.Animating = true
	s.version++
}

// WakeAll re-arms every settled ball, e.g. after the container resizes.
func (s *Store) WakeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	woke := false
	for _, b := range s.balls {
		if b.Dragging || b.Animating {
			continue
		}
		b.Animating = true
		woke = true
	}
	if woke {
		s.version++
	}
}

func newBallID() string {
	buf := make([]byte, 4)
	rand.Read(buf)
	return "b_" + hex.EncodeToString(buf)
}
