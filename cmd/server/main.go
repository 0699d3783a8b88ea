package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ballpit/backend/internal/admin"
	"github.com/ballpit/backend/internal/api"
	"github.com/ballpit/backend/internal/config"
	"github.com/ballpit/backend/internal/database"
	"github.com/ballpit/backend/internal/eventlog"
	"github.com/ballpit/backend/internal/migrations"
	"github.com/ballpit/backend/internal/redis"
	"github.com/ballpit/backend/internal/sim"
	"github.com/ballpit/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Apply operator overrides stored in the database
	if err := admin.ApplyRuntimeConfigToConfig(db, cfg); err != nil {
		log.Printf("[CONFIG] Could not apply runtime config: %v", err)
	}

	// Load physics tuning (compiled defaults unless TUNING_PATH is set)
	params, err := sim.LoadParams(cfg.TuningPath)
	if err != nil {
		log.Fatalf("Failed to load tuning from %s: %v", cfg.TuningPath, err)
	}

	// Open the on-disk event log (no-op writer when EVENT_LOG_DIR is unset)
	events, err := eventlog.New(cfg.EventLogDir)
	if err != nil {
		log.Fatalf("Failed to open event log in %s: %v", cfg.EventLogDir, err)
	}
	if events != nil {
		defer events.Close()
	}

	// Initialize Arena Manager and rehydrate active arenas
	sim.InitializeManager(db, rdb, cfg, params, events)

	// Wire Redis and start the arena event subscriber in the WS layer
	ws.SetRedisClient(rdb, cfg)
	ws.StartArenaEventSubscriber(context.Background())

	// Start idle worker (closes arenas nobody has touched)
	sim.StartIdleWorker(context.Background(), db, rdb, cfg)

	// Start placement worker (seats quick-join guests from the DB queue)
	go sim.StartPlacementWorker(context.Background(), db, rdb, cfg)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, db, rdb, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting BallPit server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
