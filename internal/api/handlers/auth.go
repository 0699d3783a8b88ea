package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ballpit/backend/internal/config"
	"github.com/ballpit/backend/internal/models"
)

// GuestAuth creates or refreshes a guest row and issues a JWT for it.
// Guests are keyed by device handle; a returning device keeps its row.
func GuestAuth(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DisplayName  string `json:"display_name"`
			DeviceHandle string `json:"device_handle"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		displayName := strings.TrimSpace(req.DisplayName)
		deviceHandle := strings.TrimSpace(req.DeviceHandle)
		if deviceHandle == "" {
			deviceHandle = generateDeviceHandle()
		}

		ctx := context.Background()
		// Rate limit per client IP
		if rdb != nil && cfg.GuestRateLimitSeconds > 0 {
			key := fmt.Sprintf("guest_rate:%s", c.ClientIP())
			ok, err := rdb.SetNX(ctx, key, "1", time.Duration(cfg.GuestRateLimitSeconds)*time.Second).Result()
			if err == nil && !ok {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "guest token rate limit exceeded"})
				return
			}
		}

		var guest models.Guest
		err := db.Get(&guest, `
			INSERT INTO guests (device_handle, display_name, created_at, last_seen_at)
			VALUES ($1, $2, NOW(), NOW())
			ON CONFLICT (device_handle) DO UPDATE SET
				display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE guests.display_name END,
				last_seen_at = NOW()
			RETURNING id, device_handle, display_name, created_at, last_seen_at, is_blocked, block_reason
		`, deviceHandle, displayName)
		if err != nil {
			log.Printf("[AUTH] Failed to upsert guest for device %s: %v", deviceHandle, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if guest.IsBlocked {
			c.JSON(http.StatusForbidden, gin.H{"error": "guest is blocked"})
			return
		}

		// Issue JWT
		exp := time.Now().Add(time.Duration(cfg.GuestTokenHours) * time.Hour)
		claims := jwt.MapClaims{"guest_id": guest.ID, "device_handle": guest.DeviceHandle, "exp": exp.Unix()}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			log.Printf("[AUTH] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": signed,
			"guest": gin.H{
				"id":            guest.ID,
				"device_handle": guest.DeviceHandle,
				"display_name":  guest.DisplayName,
			},
		})
	}
}

// AuthMiddleware validates the Bearer JWT and stores guest_id on the context
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		guestID, err := ParseGuestToken(cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("guest_id", guestID)
		c.Next()
	}
}

// ParseGuestToken validates a guest JWT and returns the guest id. Shared with
// the WebSocket hello handshake, which carries the token in-band.
func ParseGuestToken(cfg *config.Config, token string) (int, error) {
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid claims")
	}
	guestIDf, ok := claims["guest_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("missing guest_id claim")
	}
	return int(guestIDf), nil
}

// GetMe returns the authenticated guest's profile
func GetMe(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gidI, ok := c.Get("guest_id")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		gid := gidI.(int)

		var guest models.Guest
		if err := db.Get(&guest, `SELECT id, device_handle, display_name, created_at, last_seen_at, is_blocked, block_reason FROM guests WHERE id=$1`, gid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "guest not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":            guest.ID,
			"device_handle": guest.DeviceHandle,
			"display_name":  guest.DisplayName,
			"created_at":    guest.CreatedAt.Format(time.RFC3339),
		})
	}
}
