package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/ballpit/backend/internal/admin"
	"github.com/ballpit/backend/internal/sim"
)

// GetAdminArenas returns paginated arenas from Postgres, closed ones included
func GetAdminArenas(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", "")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit > 200 {
			limit = 200
		}

		type arenaRow struct {
			ID         string  `db:"id" json:"id"`
			Name       string  `db:"name" json:"name"`
			Width      float64 `db:"width" json:"width"`
			Height     float64 `db:"height" json:"height"`
			Status     string  `db:"status" json:"status"`
			CreatedBy  *int    `db:"created_by" json:"created_by"`
			CreatedAt  string  `db:"created_at" json:"created_at"`
			ClosedAt   *string `db:"closed_at" json:"closed_at"`
			TotalCount int     `db:"total_count" json:"-"`
		}

		query := `
			SELECT id, name, width, height, status, created_by,
				to_char(created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as created_at,
				to_char(closed_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as closed_at,
				COUNT(*) OVER() as total_count
			FROM arenas
			WHERE ($1 = '' OR status = $1)
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`

		var rows []arenaRow
		err := db.Select(&rows, query, status, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch arenas: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch arenas"})
			return
		}

		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}

		// Decorate live arenas with their in-memory ball counts
		type arenaResp struct {
			arenaRow
			BallCount int `json:"ball_count"`
		}
		resp := make([]arenaResp, 0, len(rows))
		for _, r := range rows {
			entry := arenaResp{arenaRow: r}
			if sim.Manager != nil {
				if a, err := sim.Manager.GetArena(r.ID); err == nil {
					entry.BallCount = a.BallCount()
				}
			}
			resp = append(resp, entry)
		}

		c.JSON(http.StatusOK, gin.H{"arenas": resp, "total": total, "limit": limit, "offset": offset})
	}
}

// ForceCloseArena closes an arena on admin request
func ForceCloseArena(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminUsername := c.GetString("admin_username")
		arenaID := c.Param("id")

		err := sim.Manager.CloseArena(arenaID, "admin_close")
		if err != nil {
			admin.LogAdminAction(db, adminUsername, c.ClientIP(), "/api/v1/admin/arenas/"+arenaID+"/close", "close_arena", map[string]interface{}{"arena_id": arenaID}, false)
			c.JSON(arenaErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		admin.LogAdminAction(db, adminUsername, c.ClientIP(), "/api/v1/admin/arenas/"+arenaID+"/close", "close_arena", map[string]interface{}{"arena_id": arenaID}, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
