package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ballpit/backend/internal/config"
	"github.com/ballpit/backend/internal/protocol"
	"github.com/ballpit/backend/internal/sim"
)

// GetConfig returns the bootstrap values a client needs before joining
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := sim.DefaultParams()
		if sim.Manager != nil {
			p = sim.Manager.Params()
		}
		c.JSON(http.StatusOK, gin.H{
			"protocol_version": protocol.Version,
			"tick_ms":          p.TickMs,
			"frame_ms":         p.FrameMs,
			"max_balls":        p.MaxBalls,
			"size_presets": gin.H{
				sim.PresetLight:  sim.SizeLight,
				sim.PresetMedium: sim.SizeMedium,
				sim.PresetHeavy:  sim.SizeHeavy,
			},
			"guest_rate_limit_seconds": cfg.GuestRateLimitSeconds,
		})
	}
}
