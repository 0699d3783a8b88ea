package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ballpit/backend/internal/admin"
	"github.com/ballpit/backend/internal/config"
	"github.com/ballpit/backend/internal/sim"
)

const adminCookieName = "admin_session"

// AdminLogin validates credentials and creates a session cookie
func AdminLogin(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Token    string `json:"token" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		username := strings.TrimSpace(req.Username)
		token := strings.TrimSpace(req.Token)

		adminAcc, err := admin.ValidateAdminCredentials(db, username, token)
		if err != nil {
			log.Printf("[ADMIN] Login failed for username %s: %v", username, err)
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login", map[string]interface{}{"username": username}, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		// Generate session token
		tokenBytes := make([]byte, 32)
		if _, err := rand.Read(tokenBytes); err != nil {
			log.Printf("[ADMIN] Failed to generate session token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}
		sessionToken := hex.EncodeToString(tokenBytes)

		sessionTTL := time.Duration(cfg.AdminSessionTTLMinutes) * time.Minute
		sessionKey := fmt.Sprintf("admin_session:%s", sessionToken)
		sessionData := map[string]interface{}{
			"username":   adminAcc.Username,
			"roles":      adminAcc.Roles,
			"expires_at": time.Now().Add(sessionTTL).Unix(),
		}
		sessionJSON, _ := json.Marshal(sessionData)
		ctx := context.Background()
		if err := rdb.Set(ctx, sessionKey, sessionJSON, sessionTTL).Err(); err != nil {
			log.Printf("[ADMIN] Failed to store session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		secure := cfg.Environment == "production"
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookieName, sessionToken, int(sessionTTL.Seconds()), "/api/v1/admin", "", secure, true)

		admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login_success", map[string]interface{}{"username": username}, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "username": adminAcc.Username})
	}
}

// AdminLogout clears admin session
func AdminLogout(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookieName)
		if err == nil && token != "" {
			ctx := context.Background()
			sessionKey := fmt.Sprintf("admin_session:%s", token)
			rdb.Del(ctx, sessionKey)
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookieName, "", -1, "/api/v1/admin", "", false, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminMe returns the current admin session info
func AdminMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("admin_username")
		c.JSON(http.StatusOK, gin.H{"username": username})
	}
}

// AdminSessionMiddleware validates admin session from cookie
func AdminSessionMiddleware(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookieName)
		if err != nil || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}

		ctx := context.Background()
		sessionKey := fmt.Sprintf("admin_session:%s", token)
		sessionJSON, err := rdb.Get(ctx, sessionKey).Result()
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			c.Abort()
			return
		}

		var sessionData map[string]interface{}
		if err := json.Unmarshal([]byte(sessionJSON), &sessionData); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			c.Abort()
			return
		}

		if username, ok := sessionData["username"].(string); ok {
			c.Set("admin_username", username)
		}

		c.Next()
	}
}

// GetAdminStats returns arena, ball, and guest counters
func GetAdminStats(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := gin.H{}
		if sim.Manager != nil {
			for k, v := range sim.Manager.Stats() {
				stats[k] = v
			}
		}

		var totalGuests, totalArenas, closedArenas int
		if err := db.Get(&totalGuests, `SELECT COUNT(*) FROM guests`); err == nil {
			stats["total_guests"] = totalGuests
		}
		if err := db.Get(&totalArenas, `SELECT COUNT(*) FROM arenas`); err == nil {
			stats["total_arenas"] = totalArenas
		}
		if err := db.Get(&closedArenas, `SELECT COUNT(*) FROM arenas WHERE status = 'closed'`); err == nil {
			stats["closed_arenas"] = closedArenas
		}

		var queuedPlacements int
		if err := db.Get(&queuedPlacements, `SELECT COUNT(*) FROM placement_queue WHERE status = 'queued'`); err == nil {
			stats["queued_placements"] = queuedPlacements
		}

		c.JSON(http.StatusOK, stats)
	}
}
