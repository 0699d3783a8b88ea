package sim

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ballpit/backend/internal/config"
	"github.com/ballpit/backend/internal/eventlog"
)

var ErrArenaNotFound = errors.New("arena not found")

// ArenaEventsChannel is the redis pub/sub channel carrying arena lifecycle
// and collision events to the websocket layer.
const ArenaEventsChannel = "arena_events"

// ArenaManager owns every live arena plus the persistence handles. Arenas
// run in memory; Redis keeps crash snapshots and Postgres the durable rows.
type ArenaManager struct {
	arenas map[string]*Arena
	rdb    *redis.Client
	db     *sqlx.DB
	config *config.Config
	params Params
	events *eventlog.Writer
	mu     sync.RWMutex
}

// Global manager instance
var Manager *ArenaManager

// InitializeManager sets up the global arena manager, restores any arenas
// that were active before the last shutdown, and starts the snapshot worker.
func InitializeManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, params Params, events *eventlog.Writer) {
	Manager = NewArenaManager(db, rdb, cfg, params, events)
	if err := Manager.RestoreActiveArenas(); err != nil {
		log.Printf("[REHYDRATE] Error restoring arenas: %v", err)
	}
	go Manager.StartSnapshotWorker()
}

func NewArenaManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, params Params, events *eventlog.Writer) *ArenaManager {
	if cfg != nil && cfg.MaxBallsPerArena > 0 {
		params.MaxBalls = cfg.MaxBallsPerArena
	}
	return &ArenaManager{
		arenas: make(map[string]*Arena),
		rdb:    rdb,
		db:     db,
		config: cfg,
		params: params,
		events: events,
	}
}

func (am *ArenaManager) Params() Params { return am.params }

// CreateArena registers a new arena, writes its row and announces it.
func (am *ArenaManager) CreateArena(name string, width, height float64, createdBy int) (*Arena, error) {
	id := generateArenaID()
	if name == "" {
		name = "Arena " + id[len(id)-4:]
	}

	a := NewArena(id, name, Bounds{Width: width, Height: height}, am.params, createdBy, am.collisionSink)

	am.mu.Lock()
	am.arenas[id] = a
	am.mu.Unlock()

	if am.db != nil {
		b := a.Bounds()
		_, err := am.db.Exec(`
			INSERT INTO arenas (id, name, width, height, status, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			id, name, b.Width, b.Height, StatusActive, nullableGuestID(createdBy))
		if err != nil {
			log.Printf("[DB] Failed to insert arena %s: %v", id, err)
		}
	}

	am.TouchArena(id)
	am.saveArenaToRedis(a)
	am.recordArenaEvent(a.ID, "arena_created", createdBy, map[string]interface{}{"name": name})
	am.PublishArenaEvent(map[string]interface{}{
		"type":     "arena_created",
		"arena_id": id,
		"name":     name,
	})

	log.Printf("[ARENA] Created arena %s (%q) by guest %d", id, name, createdBy)
	return a, nil
}

// GetArena looks up an arena in memory, falling back to the Redis snapshot
// so live arenas survive a process restart.
func (am *ArenaManager) GetArena(id string) (*Arena, error) {
	am.mu.RLock()
	a, ok := am.arenas[id]
	am.mu.RUnlock()
	if ok {
		return a, nil
	}

	a, err := am.loadArenaFromRedis(id)
	if err != nil {
		return nil, ErrArenaNotFound
	}

	am.mu.Lock()
	// Another caller may have restored it while we were loading.
	if existing, ok := am.arenas[id]; ok {
		am.mu.Unlock()
		a.Close()
		return existing, nil
	}
	am.arenas[id] = a
	am.mu.Unlock()

	log.Printf("[REHYDRATE] Restored arena %s from Redis with %d balls", id, a.BallCount())
	return a, nil
}

// ArenaSummary is the lobby listing shape.
type ArenaSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Bounds    Bounds    `json:"bounds"`
	BallCount int       `json:"ball_count"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ListArenas returns active arenas, oldest first.
func (am *ArenaManager) ListArenas() []ArenaSummary {
	am.mu.RLock()
	arenas := make([]*Arena, 0, len(am.arenas))
	for _, a := range am.arenas {
		arenas = append(arenas, a)
	}
	am.mu.RUnlock()

	sort.Slice(arenas, func(i, j int) bool {
		return arenas[i].CreatedAt.Before(arenas[j].CreatedAt)
	})

	out := make([]ArenaSummary, 0, len(arenas))
	for _, a := range arenas {
		if a.Closed() {
			continue
		}
		out = append(out, ArenaSummary{
			ID:        a.ID,
			Name:      a.Name,
			Bounds:    a.Bounds(),
			BallCount: a.BallCount(),
			Status:    a.Status(),
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}

// CloseArena stops the arena and retires its persistence artifacts.
func (am *ArenaManager) CloseArena(id, reason string) error {
	am.mu.Lock()
	a, ok := am.arenas[id]
	if ok {
		delete(am.arenas, id)
	}
	am.mu.Unlock()

	if !ok {
		return ErrArenaNotFound
	}

	a.Close()

	ctx := context.Background()
	if am.db != nil {
		if _, err := am.db.Exec(`UPDATE arenas SET status = $1, closed_at = NOW() WHERE id = $2`, StatusClosed, id); err != nil {
			log.Printf("[DB] Failed to close arena %s: %v", id, err)
		}
	}
	if am.rdb != nil {
		am.rdb.Del(ctx, arenaStateKey(id))
		am.rdb.Del(ctx, "arena_last_active:"+id)
		am.rdb.ZRem(ctx, "arena_idle", id)
	}

	am.recordArenaEvent(id, "arena_closed", 0, map[string]interface{}{"reason": reason})
	am.PublishArenaEvent(map[string]interface{}{
		"type":     "arena_closed",
		"arena_id": id,
		"reason":   reason,
	})

	log.Printf("[ARENA] Closed arena %s (%s)", id, reason)
	return nil
}

// SpawnBall spawns into an arena and announces the new roster entry.
func (am *ArenaManager) SpawnBall(arenaID string, opt SpawnOptions) (string, error) {
	a, err := am.GetArena(arenaID)
	if err != nil {
		return "", err
	}
	id, err := a.SpawnBall(opt)
	if err != nil {
		return "", err
	}
	am.announceSpawn(a, id)
	return id, nil
}

// SpawnPreset spawns a preset-sized ball at randomized coordinates.
func (am *ArenaManager) SpawnPreset(arenaID, kind string) (string, error) {
	a, err := am.GetArena(arenaID)
	if err != nil {
		return "", err
	}
	id, err := a.SpawnPreset(kind)
	if err != nil {
		return "", err
	}
	am.announceSpawn(a, id)
	return id, nil
}

func (am *ArenaManager) announceSpawn(a *Arena, ballID string) {
	am.TouchArena(a.ID)
	b, _ := a.Store().Get(ballID)
	am.recordArenaEvent(a.ID, "ball_spawned", 0, map[string]interface{}{"ball_id": ballID, "size": b.Size})
	am.PublishArenaEvent(map[string]interface{}{
		"type":     "ball_spawned",
		"arena_id": a.ID,
		"ball_id":  ballID,
		"size":     b.Size,
	})
}

// RemoveNewestBall pops the most recent ball from the roster.
func (am *ArenaManager) RemoveNewestBall(arenaID string) (string, error) {
	a, err := am.GetArena(arenaID)
	if err != nil {
		return "", err
	}
	id, ok := a.RemoveNewest()
	if !ok {
		return "", ErrBallNotFound
	}
	am.TouchArena(arenaID)
	am.recordArenaEvent(arenaID, "ball_removed", 0, map[string]interface{}{"ball_id": id})
	am.PublishArenaEvent(map[string]interface{}{
		"type":     "ball_removed",
		"arena_id": arenaID,
		"ball_id":  id,
	})
	return id, nil
}

// ClearArena empties an arena's roster.
func (am *ArenaManager) ClearArena(arenaID string) (int, error) {
	a, err := am.GetArena(arenaID)
	if err != nil {
		return 0, err
	}
	n := a.ClearBalls()
	am.TouchArena(arenaID)
	am.recordArenaEvent(arenaID, "arena_cleared", 0, map[string]interface{}{"removed": n})
	am.PublishArenaEvent(map[string]interface{}{
		"type":     "arena_cleared",
		"arena_id": arenaID,
		"removed":  n,
	})
	return n, nil
}

// PickArenaForPlacement returns the active arena with the fewest balls that
// still has room, or nil when every arena is full.
func (am *ArenaManager) PickArenaForPlacement() *Arena {
	am.mu.RLock()
	defer am.mu.RUnlock()

	var best *Arena
	bestCount := 0
	for _, a := range am.arenas {
		if a.Closed() {
			continue
		}
		n := a.BallCount()
		if n >= am.params.MaxBalls {
			continue
		}
		if best == nil || n < bestCount {
			best = a
			bestCount = n
		}
	}
	return best
}

// TouchArena refreshes the activity clock and re-arms the idle deadline.
func (am *ArenaManager) TouchArena(id string) {
	if am.rdb == nil || am.config == nil {
		return
	}
	ctx := context.Background()
	now := time.Now().Unix()
	deadline := now + int64(am.config.ArenaIdleMinutes)*60

	am.rdb.Set(ctx, "arena_last_active:"+id, fmt.Sprintf("%d", now), 0)
	am.rdb.ZAdd(ctx, "arena_idle", redis.Z{Score: float64(deadline), Member: id})
}

// PublishArenaEvent fans an event out to websocket subscribers via Redis.
func (am *ArenaManager) PublishArenaEvent(payload map[string]interface{}) {
	if am.rdb == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] Failed to marshal arena event: %v", err)
		return
	}
	if err := am.rdb.Publish(context.Background(), ArenaEventsChannel, b).Err(); err != nil {
		log.Printf("[EVENTS] Publish failed: %v", err)
	}
}

// recordArenaEvent writes the durable audit row and the JSONL trail.
func (am *ArenaManager) recordArenaEvent(arenaID, eventType string, guestID int, payload map[string]interface{}) {
	if am.db != nil {
		b, err := json.Marshal(payload)
		if err == nil {
			_, err = am.db.Exec(`
				INSERT INTO arena_events (arena_id, guest_id, event_type, payload, created_at)
				VALUES ($1, $2, $3, $4, NOW())`,
				arenaID, nullableGuestID(guestID), eventType, b)
		}
		if err != nil {
			log.Printf("[DB] Failed to record %s for arena %s: %v", eventType, arenaID, err)
		}
	}
	if err := am.events.Log(arenaID, eventType, payload); err != nil {
		log.Printf("[EVENTS] Event log write failed: %v", err)
	}
}

// collisionSink receives resolved collisions from integrators. They go to
// the JSONL trail and to subscribers so clients can play impact sounds.
func (am *ArenaManager) collisionSink(arenaID string, events []CollisionEvent) {
	for _, ev := range events {
		if err := am.events.Log(arenaID, "ball_collision", ev); err != nil {
			log.Printf("[EVENTS] Event log write failed: %v", err)
		}
		am.PublishArenaEvent(map[string]interface{}{
			"type":     "ball_collision",
			"arena_id": arenaID,
			"ball_id":  ev.BallID,
			"other_id": ev.OtherID,
			"speed":    ev.Speed,
		})
	}
}

// arenaSnapshot is the Redis crash-recovery image of one arena.
type arenaSnapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Bounds    Bounds    `json:"bounds"`
	Balls     []Ball    `json:"balls"`
	Status    string    `json:"status"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	SavedAt   time.Time `json:"saved_at"`
}

func arenaStateKey(id string) string {
	return "arena:" + id + ":state"
}

// saveArenaToRedis snapshots one arena with a 1 hour TTL.
func (am *ArenaManager) saveArenaToRedis(a *Arena) {
	if am.rdb == nil || a == nil {
		return
	}

	snap := arenaSnapshot{
		ID:        a.ID,
		Name:      a.Name,
		Bounds:    a.Bounds(),
		Balls:     a.Snapshot(),
		Status:    a.Status(),
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
		SavedAt:   time.Now(),
	}
	b, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[SNAPSHOT] Failed to marshal arena %s: %v", a.ID, err)
		return
	}
	if err := am.rdb.SetEx(context.Background(), arenaStateKey(a.ID), b, time.Hour).Err(); err != nil {
		log.Printf("[SNAPSHOT] Failed to save arena %s: %v", a.ID, err)
	}
}

// loadArenaFromRedis rebuilds an arena from its snapshot. Drag state does
// not survive: every restored ball comes back free and animating.
func (am *ArenaManager) loadArenaFromRedis(id string) (*Arena, error) {
	if am.rdb == nil {
		return nil, errors.New("redis not configured")
	}

	data, err := am.rdb.Get(context.Background(), arenaStateKey(id)).Result()
	if err != nil {
		return nil, err
	}

	var snap arenaSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	if snap.Status != StatusActive {
		return nil, errors.New("arena snapshot is closed")
	}

	a := NewArena(snap.ID, snap.Name, snap.Bounds, am.params, snap.CreatedBy, am.collisionSink)
	if !snap.CreatedAt.IsZero() {
		a.CreatedAt = snap.CreatedAt
	}
	a.Rehydrate(snap.Balls)
	return a, nil
}

// RestoreActiveArenas reloads every arena the DB still marks active. Rows
// whose snapshot expired come back empty rather than not at all.
func (am *ArenaManager) RestoreActiveArenas() error {
	if am.db == nil {
		return nil
	}

	rows := []struct {
		ID     string  `db:"id"`
		Name   string  `db:"name"`
		Width  float64 `db:"width"`
		Height float64 `db:"height"`
	}{}
	if err := am.db.Select(&rows, `SELECT id, name, width, height FROM arenas WHERE status = $1`, StatusActive); err != nil {
		return err
	}

	restored := 0
	for _, row := range rows {
		a, err := am.loadArenaFromRedis(row.ID)
		if err != nil {
			a = NewArena(row.ID, row.Name, Bounds{Width: row.Width, Height: row.Height}, am.params, 0, am.collisionSink)
			log.Printf("[REHYDRATE] No snapshot for arena %s; restored empty", row.ID)
		}
		am.mu.Lock()
		am.arenas[row.ID] = a
		am.mu.Unlock()
		am.TouchArena(row.ID)
		restored++
	}

	log.Printf("[REHYDRATE] Restored %d active arenas", restored)
	return nil
}

// StartSnapshotWorker periodically saves arenas whose state moved since the
// last pass.
func (am *ArenaManager) StartSnapshotWorker() {
	interval := 5 * time.Second
	if am.config != nil && am.config.SnapshotIntervalSecs > 0 {
		interval = time.Duration(am.config.SnapshotIntervalSecs) * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	saved := make(map[string]uint64)
	for range ticker.C {
		am.mu.RLock()
		arenas := make([]*Arena, 0, len(am.arenas))
		for _, a := range am.arenas {
			arenas = append(arenas, a)
		}
		am.mu.RUnlock()

		live := make(map[string]bool, len(arenas))
		for _, a := range arenas {
			live[a.ID] = true
			v := a.Version()
			if saved[a.ID] == v {
				continue
			}
			am.saveArenaToRedis(a)
			saved[a.ID] = v
		}
		for id := range saved {
			if !live[id] {
				delete(saved, id)
			}
		}
	}
}

// Stats summarizes live state for the admin dashboard.
func (am *ArenaManager) Stats() map[string]interface{} {
	am.mu.RLock()
	activeArenas := 0
	totalBalls := 0
	for _, a := range am.arenas {
		if a.Closed() {
			continue
		}
		activeArenas++
		totalBalls += a.BallCount()
	}
	am.mu.RUnlock()

	return map[string]interface{}{
		"active_arenas": activeArenas,
		"total_balls":   totalBalls,
	}
}

func nullableGuestID(id int) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

// generateToken returns a hex token of 2n characters.
func generateToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func generateArenaID() string {
	return "a_" + generateToken(5)
}
