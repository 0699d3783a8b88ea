package sim

import (
	"strings"
	"testing"
)

func TestAddUsesSpawnDefaults(t *testing.T) {
	store := NewStore()
	id := store.Add(SpawnOptions{})

	b, ok := store.Get(id)
	if !ok {
		t.Fatal("Added ball should be retrievable")
	}
	if !strings.HasPrefix(id, "b_") {
		t.Errorf("Ball id should carry the b_ prefix: got %s", id)
	}
	if b.Position.X != 100 || b.Position.Y != 0 {
		t.Errorf("Default spawn is (100,0): got (%.1f,%.1f)", b.Position.X, b.Position.Y)
	}
	if b.Size != 80 {
		t.Errorf("Default size is 80: got %.1f", b.Size)
	}
	if !b.Animating {
		t.Error("New balls start animating")
	}
	if b.Dragging {
		t.Error("New balls start free")
	}
	if !b.Velocity.IsZero() {
		t.Error("New balls start motionless")
	}
}

func TestAddAppliesOverrides(t *testing.T) {
	store := NewStore()
	x, y, size := 5.0, 7.0, 120.0
	id := store.Add(SpawnOptions{X: &x, Y: &y, Size: &size})

	b, _ := store.Get(id)
	if b.Position.X != 5 || b.Position.Y != 7 || b.Size != 120 {
		t.Errorf("Overrides not applied: pos=(%.1f,%.1f) size=%.1f", b.Position.X, b.Position.Y, b.Size)
	}
}

func TestUpdateSkipsNoopWrites(t *testing.T) {
	store := NewStore()
	id := store.Add(SpawnOptions{})

	b, _ := store.Get(id)
	version := store.Version()

	// Writing back identical values must not count as a change.
	if store.Update(id, Patch{Position: &b.Position, Velocity: &b.Velocity}) {
		t.Error("No-op update should report false")
	}
	if store.Version() != version {
		t.Error("No-op update should not bump the version")
	}

	moved := Vec2{X: 50, Y: 60}
	if !store.Update(id, Patch{Position: &moved}) {
		t.Error("Real update should report true")
	}
	if store.Version() != version+1 {
		t.Errorf("Real update should bump the version once: %d -> %d", version, store.Version())
	}
}

func TestUpdateUnknownBall(t *testing.T) {
	store := NewStore()
	pos := Vec2{X: 1, Y: 2}
	if store.Update("b_missing", Patch{Position: &pos}) {
		t.Error("Updating an unknown ball should report false")
	}
}

func TestSnapshotKeepsInsertionOrder(t *testing.T) {
	store := NewStore()
	first := store.Add(SpawnOptions{})
	second := store.Add(SpawnOptions{})
	third := store.Add(SpawnOptions{})

	snap := store.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Expected 3 balls, got %d", len(snap))
	}
	if snap[0].ID != first || snap[1].ID != second || snap[2].ID != third {
		t.Error("Snapshot should list balls in insertion order")
	}

	// Removing the middle ball keeps the relative order of the rest.
	store.Remove(second)
	snap = store.Snapshot()
	if len(snap) != 2 || snap[0].ID != first || snap[1].ID != third {
		t.Error("Order should survive a middle removal")
	}
}

func TestRemoveIsNoopWhenAbsent(t *testing.T) {
	store := NewStore()
	store.Add(SpawnOptions{})

	version := store.Version()
	store.Remove("b_missing")
	if store.Version() != version {
		t.Error("Removing an unknown ball should not bump the version")
	}
	if store.Len() != 1 {
		t.Errorf("Roster should be untouched: len=%d", store.Len())
	}
}

func TestRemoveNewestPopsLastAdded(t *testing.T) {
	store := NewStore()

	if _, ok := store.RemoveNewest(); ok {
		t.Error("RemoveNewest on an empty roster should report false")
	}

	first := store.Add(SpawnOptions{})
	second := store.Add(SpawnOptions{})

	id, ok := store.RemoveNewest()
	if !ok || id != second {
		t.Errorf("RemoveNewest should pop the last added: got %s want %s", id, second)
	}
	if _, ok := store.Get(first); !ok {
		t.Error("Earlier ball should remain")
	}
}

func TestClearAllOnEmptyRoster(t *testing.T) {
	store := NewStore()
	version := store.Version()
	store.ClearAll()
	if store.Version() != version {
		t.Error("Clearing an empty roster should not bump the version")
	}
}

func TestApplyCollisionUpdatesSkipsHeldAndUnknown(t *testing.T) {
	store := NewStore()
	free := store.Add(SpawnOptions{})
	held := store.Add(SpawnOptions{})

	dragging := true
	store.Update(held, Patch{Dragging: &dragging})

	version := store.Version()
	store.ApplyCollisionUpdates([]BallUpdate{
		{ID: free, Position: Vec2{X: 1, Y: 2}, Velocity: Vec2{X: 3, Y: 4}, Animating: true, LastCollisionAt: 99},
		{ID: held, Position: Vec2{X: 9, Y: 9}, Velocity: Vec2{X: 9, Y: 9}, Animating: true, LastCollisionAt: 99},
		{ID: "b_missing", Animating: true},
	})

	b, _ := store.Get(free)
	if b.Position.X != 1 || b.Velocity.X != 3 || b.LastCollisionAt != 99 {
		t.Error("Free ball should take the deferred update")
	}

	h, _ := store.Get(held)
	if h.Position.X == 9 || h.LastCollisionAt == 99 {
		t.Error("Held ball should be protected from deferred updates")
	}

	if store.Version() != version+1 {
		t.Errorf("Batch should bump the version exactly once: %d -> %d", version, store.Version())
	}
}

func TestWakeLeavesHeldAndAwakeBallsAlone(t *testing.T) {
	store := NewStore()
	settled := store.Add(SpawnOptions{})
	held := store.Add(SpawnOptions{})
	awake := store.Add(SpawnOptions{})

	asleep := false
	dragging := true
	store.Update(settled, Patch{Animating: &asleep})
	store.Update(held, Patch{Animating: &asleep, Dragging: &dragging})

	store.WakeAll()

	if b, _ := store.Get(settled); !b.Animating {
		t.Error("Settled ball should wake")
	}
	if b, _ := store.Get(held); b.Animating {
		t.Error("Held ball should stay out of physics")
	}
	if b, _ := store.Get(awake); !b.Animating {
		t.Error("Already-animating ball should stay animating")
	}

	// Waking an awake ball is a no-op.
	version := store.Version()
	store.Wake(awake)
	if store.Version() != version {
		t.Error("Waking an awake ball should not bump the version")
	}
}

func TestRestorePreservesIDAndAppends(t *testing.T) {
	store := NewStore()
	existing := store.Add(SpawnOptions{})

	store.Restore(Ball{ID: "b_snap01", Position: Vec2{X: 10, Y: 20}, Size: 50, Animating: true})

	snap := store.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Expected 2 balls, got %d", len(snap))
	}
	if snap[0].ID != existing || snap[1].ID != "b_snap01" {
		t.Error("Restored ball should append after existing entries")
	}

	// Restoring the same id again replaces in place.
	store.Restore(Ball{ID: "b_snap01", Position: Vec2{X: 30, Y: 40}, Size: 50, Animating: true})
	snap = store.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Re-restore should not duplicate: got %d balls", len(snap))
	}
	if snap[1].Position.X != 30 {
		t.Errorf("Re-restore should replace state: x=%.1f", snap[1].Position.X)
	}
}
