package sim

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ballpit/backend/internal/config"
)

// StartIdleWorker starts a background worker that expires arenas nobody has
// touched, using a Redis sorted set of deadlines.
func StartIdleWorker(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	if rdb == nil || cfg == nil {
		log.Println("[IDLE] Redis or config missing; idle worker not started")
		return
	}

	log.Println("[IDLE] Idle worker started")
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.IdleWorkerPollInterval) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[IDLE] Idle worker stopping")
				return
			case <-ticker.C:
				now := time.Now().Unix()

				members, err := rdb.ZRangeByScore(ctx, "arena_idle", &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now)}).Result()
				if err != nil {
					log.Printf("[IDLE] Failed to fetch idle deadlines: %v", err)
					continue
				}

				for _, id := range members {
					// Attempt to remove (race-safe)
					removed, _ := rdb.ZRem(ctx, "arena_idle", id).Result()
					if removed == 0 {
						continue
					}

					// Re-check last activity; a touch may have landed after
					// the deadline was armed.
					idleWindow := int64(cfg.ArenaIdleMinutes) * 60
					last, _ := rdb.Get(ctx, "arena_last_active:"+id).Result()
					lastTs, _ := strconv.ParseInt(last, 10, 64)
					if now-lastTs < idleWindow {
						rdb.ZAdd(ctx, "arena_idle", redis.Z{Score: float64(lastTs + idleWindow), Member: id})
						continue
					}

					if Manager == nil {
						continue
					}
					if err := Manager.CloseArena(id, "idle_expiry"); err != nil {
						log.Printf("[IDLE] Failed to expire arena %s: %v", id, err)
						continue
					}
					log.Printf("[IDLE] Arena %s expired after %d minutes idle", id, cfg.ArenaIdleMinutes)
				}
			}
		}
	}()
}
