package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

const version = "1.2.0"

// HealthCheck returns server health status plus dependency pings
func HealthCheck(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		if db == nil {
			dbStatus = "unconfigured"
		} else if err := db.Ping(); err != nil {
			dbStatus = "error"
		}

		redisStatus := "ok"
		if rdb == nil {
			redisStatus = "unconfigured"
		} else if err := rdb.Ping(context.Background()).Err(); err != nil {
			redisStatus = "error"
		}

		status := http.StatusOK
		if dbStatus == "error" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":   "ok",
			"service":  "ballpit-api",
			"version":  version,
			"uptime":   time.Since(startTime).String(),
			"database": dbStatus,
			"redis":    redisStatus,
		})
	}
}
