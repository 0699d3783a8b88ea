package sim

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Params carries the physics tuning for one arena. Zero values inherit the
// compiled defaults, so a tuning file only needs the knobs it changes.
type Params struct {
	GravityBase        float64 `yaml:"gravity_base"`
	GravityMassCap     float64 `yaml:"gravity_mass_cap"`
	FrictionBase       float64 `yaml:"friction_base"`
	FrictionMassFactor float64 `yaml:"friction_mass_factor"`
	Restitution        float64 `yaml:"restitution"`
	BounceBase         float64 `yaml:"bounce_base"`
	BounceMassFactor   float64 `yaml:"bounce_mass_factor"`

	CooldownMillis  int64   `yaml:"collision_cooldown_ms"`
	SeparationSlack float64 `yaml:"separation_slack"`

	FloorSnapVel float64 `yaml:"floor_snap_velocity"`
	RestVelY     float64 `yaml:"rest_velocity_y"`
	RestVelX     float64 `yaml:"rest_velocity_x"`

	DragSmoothing      float64 `yaml:"drag_smoothing"`
	MomentumBase       float64 `yaml:"momentum_base"`
	MomentumMassFactor float64 `yaml:"momentum_mass_factor"`
	DragTimeoutSec     int     `yaml:"drag_timeout_seconds"`

	TickMs  int `yaml:"tick_ms"`
	FrameMs int `yaml:"frame_ms"`

	MaxBalls int `yaml:"max_balls"`

	SpawnXMin float64 `yaml:"spawn_x_min"`
	SpawnXMax float64 `yaml:"spawn_x_max"`
	SpawnYMin float64 `yaml:"spawn_y_min"`
	SpawnYMax float64 `yaml:"spawn_y_max"`
}

// DefaultParams returns the reference tuning from constants.go.
func DefaultParams() Params {
	return Params{
		GravityBase:        GravityBase,
		GravityMassCap:     GravityMassCap,
		FrictionBase:       FrictionBase,
		FrictionMassFactor: FrictionMassFactor,
		Restitution:        Restitution,
		BounceBase:         BounceBase,
		BounceMassFactor:   BounceMassFactor,
		CooldownMillis:     CollisionCooldownMillis,
		SeparationSlack:    SeparationSlack,
		FloorSnapVel:       FloorSnapVelocity,
		RestVelY:           RestVelocityY,
		RestVelX:           RestVelocityX,
		DragSmoothing:      DragSmoothing,
		MomentumBase:       MomentumBase,
		MomentumMassFactor: MomentumMassFactor,
		DragTimeoutSec:     DragTimeoutSeconds,
		TickMs:             TickMillis,
		FrameMs:            FrameMillis,
		MaxBalls:           DefaultMaxBalls,
		SpawnXMin:          SpawnXMin,
		SpawnXMax:          SpawnXMax,
		SpawnYMin:          SpawnYMin,
		SpawnYMax:          SpawnYMax,
	}
}

// LoadParams reads a YAML tuning file over the defaults. An empty path
// returns the defaults unchanged.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("tuning: %w", err)
	}
	p.fillZero()
	return p, nil
}

// fillZero restores defaults for fields a tuning file explicitly zeroed.
// SpawnYMin legitimately defaults to zero and is left alone.
func (p *Params) fillZero() {
	d := DefaultParams()
	if p.GravityBase == 0 {
		p.GravityBase = d.GravityBase
	}
	if p.GravityMassCap == 0 {
		p.GravityMassCap = d.GravityMassCap
	}
	if p.FrictionBase == 0 {
		p.FrictionBase = d.FrictionBase
	}
	if p.FrictionMassFactor == 0 {
		p.FrictionMassFactor = d.FrictionMassFactor
	}
	if p.Restitution == 0 {
		p.Restitution = d.Restitution
	}
	if p.BounceBase == 0 {
		p.BounceBase = d.BounceBase
	}
	if p.BounceMassFactor == 0 {
		p.BounceMassFactor = d.BounceMassFactor
	}
	if p.CooldownMillis == 0 {
		p.CooldownMillis = d.CooldownMillis
	}
	if p.SeparationSlack == 0 {
		p.SeparationSlack = d.SeparationSlack
	}
	if p.FloorSnapVel == 0 {
		p.FloorSnapVel = d.FloorSnapVel
	}
	if p.RestVelY == 0 {
		p.RestVelY = d.RestVelY
	}
	if p.RestVelX == 0 {
		p.RestVelX = d.RestVelX
	}
	if p.DragSmoothing == 0 {
		p.DragSmoothing = d.DragSmoothing
	}
	if p.MomentumBase == 0 {
		p.MomentumBase = d.MomentumBase
	}
	if p.MomentumMassFactor == 0 {
		p.MomentumMassFactor = d.MomentumMassFactor
	}
	if p.DragTimeoutSec == 0 {
		p.DragTimeoutSec = d.DragTimeoutSec
	}
	if p.TickMs == 0 {
		p.TickMs = d.TickMs
	}
	if p.FrameMs == 0 {
		p.FrameMs = d.FrameMs
	}
	if p.MaxBalls == 0 {
		p.MaxBalls = d.MaxBalls
	}
	if p.SpawnXMin == 0 {
		p.SpawnXMin = d.SpawnXMin
	}
	if p.SpawnXMax == 0 {
		p.SpawnXMax = d.SpawnXMax
	}
	if p.SpawnYMax == 0 {
		p.SpawnYMax = d.SpawnYMax
	}
}

// Friction is the per-tick horizontal velocity multiplier. Heavier balls
// retain slightly more speed.
func (p Params) Friction(mass float64) float64 {
	return p.FrictionBase + mass*p.FrictionMassFactor
}

// Gravity is the per-tick vertical acceleration, capped so very heavy balls
// do not free-fall unrealistically fast.
func (p Params) Gravity(mass float64) float64 {
	return p.GravityBase * math.Min(mass, p.GravityMassCap)
}

// Bounce is the boundary reflection coefficient. Heavier balls lose more
// energy on impact.
func (p Params) Bounce(mass float64) float64 {
	return p.BounceBase * (1 - mass*p.BounceMassFactor)
}

// MomentumScale converts smoothed drag velocity into release velocity.
func (p Params) MomentumScale(mass float64) float64 {
	return p.MomentumBase * (1 + mass*p.MomentumMassFactor)
}

func (p Params) TickInterval() time.Duration {
	return time.Duration(p.TickMs) * time.Millisecond
}

func (p Params) FrameInterval() time.Duration {
	return time.Duration(p.FrameMs) * time.Millisecond
}

func (p Params) DragTimeout() time.Duration {
	return time.Duration(p.DragTimeoutSec) * time.Second
}
