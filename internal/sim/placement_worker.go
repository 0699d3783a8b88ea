package sim

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ballpit/backend/internal/config"
)

// QueuedPlacement represents a guest waiting for a quick-join assignment
type QueuedPlacement struct {
	ID         int    `db:"id"`
	GuestID    int    `db:"guest_id"`
	QueueToken string `db:"queue_token"`
}

// StartPlacementWorker runs a background job that drains the placement queue:
// each queued guest is assigned to the emptiest open arena, or a fresh one.
func StartPlacementWorker(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	if db == nil {
		log.Println("[PLACEMENT] Database missing; placement worker not started")
		return
	}

	interval := time.Duration(cfg.PlacementPollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[PLACEMENT] Starting placement worker (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[PLACEMENT] Worker stopped")
			return
		case <-ticker.C:
			processPlacements(ctx, db, rdb, cfg)
		}
	}
}

// PlaceQueuedNow runs one placement pass outside the worker cadence so a
// fresh quick-join does not have to wait out a poll tick. Safe to call
// concurrently with the worker; the row claim is FOR UPDATE SKIP LOCKED.
func PlaceQueuedNow(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	if db == nil {
		return
	}
	processPlacements(ctx, db, rdb, cfg)
}

func processPlacements(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	// Expire abandoned requests first so they never claim a slot
	if _, err := db.Exec(`
		UPDATE placement_queue
		SET status = 'expired'
		WHERE status = 'queued' AND expires_at <= NOW()
	`); err != nil {
		log.Printf("[PLACEMENT] Failed to expire stale requests: %v", err)
	}

	for {
		placed := tryPlaceNext(ctx, db, rdb, cfg)
		if !placed {
			return
		}
	}
}

func tryPlaceNext(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) bool {
	if Manager == nil {
		return false
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		log.Printf("[PLACEMENT] Failed to begin transaction: %v", err)
		return false
	}
	defer tx.Rollback()

	// Claim the oldest queued request
	// FOR UPDATE SKIP LOCKED ensures atomic claim without blocking
	var reqs []QueuedPlacement
	err = tx.Select(&reqs, `
		SELECT id, guest_id, queue_token
		FROM placement_queue
		WHERE status = 'queued'
		  AND expires_at > NOW()
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`)
	if err != nil {
		log.Printf("[PLACEMENT] Failed to query queued requests: %v", err)
		return false
	}
	if len(reqs) == 0 {
		return false
	}
	req := reqs[0]

	arena := Manager.PickArenaForPlacement()
	created := false
	if arena == nil {
		arena, err = Manager.CreateArena("", DefaultArenaWidth, DefaultArenaHeight, req.GuestID)
		if err != nil {
			log.Printf("[PLACEMENT] Failed to create arena for guest %d: %v", req.GuestID, err)
			return false
		}
		created = true
	}

	_, err = tx.Exec(`
		UPDATE placement_queue
		SET status = 'assigned', arena_id = $1, assigned_at = NOW()
		WHERE id = $2
	`, arena.ID, req.ID)
	if err != nil {
		log.Printf("[PLACEMENT] Failed to update queue entry %d: %v", req.ID, err)
		return false
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[PLACEMENT] Failed to commit: %v", err)
		return false
	}

	if created {
		seedStarterBalls(arena)
	}

	Manager.PublishArenaEvent(map[string]interface{}{
		"type":        "arena_assigned",
		"arena_id":    arena.ID,
		"guest_id":    req.GuestID,
		"queue_token": req.QueueToken,
	})

	log.Printf("[PLACEMENT] ✓ Guest %d assigned to arena %s (new=%v)", req.GuestID, arena.ID, created)
	return true
}

// seedStarterBalls fills a freshly created quick-join arena so the first
// visitor does not land in an empty container.
func seedStarterBalls(a *Arena) {
	for _, opt := range StarterLayout(a.Bounds()) {
		if _, err := a.SpawnBall(opt); err != nil {
			log.Printf("[PLACEMENT] Failed to seed arena %s: %v", a.ID, err)
			return
		}
	}
}
