package sim

// Physics defaults for the arena simulation.
// These MUST match the tuning shipped to web clients exactly.

const (
	MassReferenceSize = 80.0 // diameter with mass 1.0; mass = (size/80)^2

	GravityBase        = 0.6
	GravityMassCap     = 2.0
	FrictionBase       = 0.997
	FrictionMassFactor = 0.001
	Restitution        = 0.7
	BounceBase         = 0.85
	BounceMassFactor   = 0.1

	CollisionCooldownMillis = 50
	SeparationSlack         = 2.0 // extra push-apart distance on overlap

	FloorSnapVelocity = 3.0 // |velY| below this at floor contact snaps to 0
	RestVelocityY     = 0.1
	RestVelocityX     = 1.0

	DragSmoothing      = 0.5 // exponential weight per pointer-move event
	MomentumBase       = 0.75
	MomentumMassFactor = 0.2
	DragTimeoutSeconds = 10

	TickMillis  = 16
	FrameMillis = 50

	DefaultBallSize = 80.0
	DefaultSpawnX   = 100.0
	DefaultSpawnY   = 0.0

	SpawnXMin = 100.0
	SpawnXMax = 500.0
	SpawnYMin = 0.0
	SpawnYMax = 100.0

	SizeLight  = 50.0
	SizeMedium = 80.0
	SizeHeavy  = 120.0

	DefaultArenaWidth  = 800.0
	DefaultArenaHeight = 600.0
	MinArenaDimension  = 200.0
	MaxArenaDimension  = 4000.0

	DefaultMaxBalls = 24
)
