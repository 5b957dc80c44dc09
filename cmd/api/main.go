package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/database/migrations"
	"github.com/careshift/backend/internal/handlers"
	"github.com/careshift/backend/internal/jobs"
	"github.com/careshift/backend/internal/lock"
	"github.com/careshift/backend/internal/middleware"
	"github.com/careshift/backend/internal/queue"
	"github.com/careshift/backend/internal/routes"
	"github.com/careshift/backend/internal/utils"
	"github.com/careshift/backend/internal/verification"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	utils.InitLogger()
	logger := utils.Logger

	cfg := config.LoadConfig()

	// Setup database connection
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}

	// Run migrations
	if err := migrations.RunMigrations(db); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	// Redis backs the per-check submission lock
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	locker := lock.NewRedisLocker(redisClient)

	store := database.NewGormStore(db)
	providers := verification.NewProviderRegistry(cfg, store)
	aggregator := verification.NewAggregator(store, cfg.Verification)
	orchestrator := verification.NewOrchestrator(store, providers, aggregator, locker, logger)

	// Background jobs: expiry sweep and provider status polling
	jobQueue := queue.NewQueue(db, logger)
	verificationJobs := jobs.NewVerificationJobs(store, orchestrator, aggregator, logger)
	go jobQueue.ProcessJobs(10 * time.Second)

	scheduler, err := jobs.ScheduleRecurringJobs(jobQueue, verificationJobs, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to schedule recurring jobs")
	}
	defer scheduler.Stop()

	// Initialize router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	rateLimiter := middleware.NewRateLimiter(20, 10, 40, 5)
	defer rateLimiter.Stop()

	verificationHandler := handlers.NewVerificationHandler(store, orchestrator, aggregator, logger)

	routes.RegisterHealthRoutes(router)
	routes.RegisterVerificationRoutes(router, verificationHandler, rateLimiter)

	logger.WithField("port", cfg.Server.Port).Info("careshift verification API listening")
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("failed to start server")
	}
}
