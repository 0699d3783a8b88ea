package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Arena Settings
	ArenaIdleMinutes       int
	IdleWorkerPollInterval int
	PlacementPollInterval  int
	PlacementExpiryMinutes int
	SnapshotIntervalSecs   int
	MaxBallsPerArena       int

	// Physics / Telemetry
	TuningPath  string
	EventLogDir string

	// Security
	JWTSecret              string
	GuestTokenHours        int
	GuestRateLimitSeconds  int
	AdminSessionTTLMinutes int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/ballpit?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Arena Settings
		ArenaIdleMinutes:       getEnvInt("ARENA_IDLE_MINUTES", 15),
		IdleWorkerPollInterval: getEnvInt("IDLE_WORKER_POLL_SECONDS", 10),
		PlacementPollInterval:  getEnvInt("PLACEMENT_POLL_SECONDS", 2),
		PlacementExpiryMinutes: getEnvInt("PLACEMENT_EXPIRY_MINUTES", 5),
		SnapshotIntervalSecs:   getEnvInt("SNAPSHOT_INTERVAL_SECONDS", 5),
		MaxBallsPerArena:       getEnvInt("MAX_BALLS_PER_ARENA", 24),

		// Physics / Telemetry
		TuningPath:  getEnv("TUNING_PATH", ""),
		EventLogDir: getEnv("EVENT_LOG_DIR", ""),

		// Security
		JWTSecret:              getEnv("JWT_SECRET", "change-me-in-production"),
		GuestTokenHours:        getEnvInt("GUEST_TOKEN_HOURS", 24),
		GuestRateLimitSeconds:  getEnvInt("GUEST_RATE_LIMIT_SECONDS", 10),
		AdminSessionTTLMinutes: getEnvInt("ADMIN_SESSION_TTL_MINUTES", 60),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
