package handlers

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ballpit/backend/internal/config"
	"github.com/ballpit/backend/internal/sim"
)

func arenaErrorStatus(err error) int {
	switch err {
	case sim.ErrArenaNotFound, sim.ErrBallNotFound:
		return http.StatusNotFound
	case sim.ErrArenaFull:
		return http.StatusConflict
	case sim.ErrArenaClosed:
		return http.StatusGone
	case sim.ErrBadPreset:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CreateArena creates a new arena owned by the authenticated guest
func CreateArena() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name   string  `json:"name"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		guestID := c.GetInt("guest_id")
		arena, err := sim.Manager.CreateArena(req.Name, req.Width, req.Height, guestID)
		if err != nil {
			log.Printf("[API] Failed to create arena for guest %d: %v", guestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create arena"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":         arena.ID,
			"name":       arena.Name,
			"bounds":     arena.Bounds(),
			"created_at": arena.CreatedAt.Format(time.RFC3339),
		})
	}
}

// ListArenas returns active arenas with occupancy
func ListArenas() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"arenas": sim.Manager.ListArenas()})
	}
}

// GetArenaDetail returns one arena plus its current ball snapshot
func GetArenaDetail() gin.HandlerFunc {
	return func(c *gin.Context) {
		arena, err := sim.Manager.GetArena(c.Param("id"))
		if err != nil {
			c.JSON(arenaErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":         arena.ID,
			"name":       arena.Name,
			"bounds":     arena.Bounds(),
			"status":     arena.Status(),
			"ball_count": arena.BallCount(),
			"balls":      arena.Snapshot(),
			"created_at": arena.CreatedAt.Format(time.RFC3339),
		})
	}
}

// SpawnArenaBall adds a ball via preset or explicit coordinates
func SpawnArenaBall() gin.HandlerFunc {
	return func(c *gin.Context) {
		arenaID := c.Param("id")

		var req struct {
			Preset string   `json:"preset"`
			Size   *float64 `json:"size"`
			X      *float64 `json:"x"`
			Y      *float64 `json:"y"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		var ballID string
		var err error
		if req.Preset != "" {
			ballID, err = sim.Manager.SpawnPreset(arenaID, req.Preset)
		} else {
			ballID, err = sim.Manager.SpawnBall(arenaID, sim.SpawnOptions{X: req.X, Y: req.Y, Size: req.Size})
		}
		if err != nil {
			c.JSON(arenaErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"ball_id": ballID})
	}
}

// RemoveNewestArenaBall pops the most recently added ball
func RemoveNewestArenaBall() gin.HandlerFunc {
	return func(c *gin.Context) {
		ballID, err := sim.Manager.RemoveNewestBall(c.Param("id"))
		if err != nil {
			c.JSON(arenaErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": ballID})
	}
}

// ClearArenaBalls removes every ball from the arena
func ClearArenaBalls() gin.HandlerFunc {
	return func(c *gin.Context) {
		removed, err := sim.Manager.ClearArena(c.Param("id"))
		if err != nil {
			c.JSON(arenaErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}

// QuickJoin enqueues the guest for arena placement. Idempotent per guest: an
// existing queued entry is returned instead of stacking a second one.
func QuickJoin(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		guestID := c.GetInt("guest_id")

		var existing struct {
			QueueToken string `db:"queue_token"`
			Status     string `db:"status"`
		}
		err := db.Get(&existing, `
			SELECT queue_token, status FROM placement_queue
			WHERE guest_id = $1 AND status = 'queued' AND expires_at > NOW()
			ORDER BY created_at DESC LIMIT 1
		`, guestID)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"status": "queued", "queue_token": existing.QueueToken})
			return
		}
		if err != sql.ErrNoRows {
			log.Printf("[API] Quickjoin lookup failed for guest %d: %v", guestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		queueToken := generateQueueToken()
		expiresAt := time.Now().Add(time.Duration(cfg.PlacementExpiryMinutes) * time.Minute)
		if _, err := db.Exec(`
			INSERT INTO placement_queue (guest_id, queue_token, status, created_at, expires_at)
			VALUES ($1, $2, 'queued', NOW(), $3)
		`, guestID, queueToken, expiresAt); err != nil {
			log.Printf("[API] Quickjoin insert failed for guest %d: %v", guestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		log.Printf("[API] Guest %d queued for placement (token %s)", guestID, queueToken)

		// Try to seat them immediately rather than waiting out a worker tick
		go sim.PlaceQueuedNow(context.Background(), db, rdb, cfg)

		c.JSON(http.StatusAccepted, gin.H{
			"status":      "queued",
			"queue_token": queueToken,
			"expires_at":  expiresAt.Format(time.RFC3339),
		})
	}
}

// QuickJoinStatus reports where a quick-join request stands
func QuickJoinStatus(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		queueToken := c.Query("queue_token")
		if queueToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "queue_token required"})
			return
		}

		var row struct {
			Status  string         `db:"status"`
			ArenaID sql.NullString `db:"arena_id"`
		}
		err := db.Get(&row, `SELECT status, arena_id FROM placement_queue WHERE queue_token = $1`, queueToken)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusOK, gin.H{"status": "not_found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		resp := gin.H{"status": row.Status}
		if row.ArenaID.Valid {
			resp["arena_id"] = row.ArenaID.String
		}
		c.JSON(http.StatusOK, resp)
	}
}
