// @title           Call Service API
// @version         1.0
// @description     Real-time presence, call signaling, and eligibility API

// @host      localhost:8004
// @BasePath  /api/calls

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"call-service/internal/client"
	"call-service/internal/config"
	"call-service/internal/database"
	"call-service/internal/handler"
	"call-service/internal/job"
	"call-service/internal/middleware"
	"call-service/internal/repository"
	"call-service/internal/router"
	"call-service/internal/service"
	"call-service/internal/ws"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Call Service",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("basePath", cfg.Server.BasePath))

	// The handle opens lazily so repositories are never wired against a
	// nil connection; schema setup retries until the database answers,
	// and readiness reports the gap.
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("Failed to open database handle", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Warn("Database not reachable on startup, retrying schema setup in background",
			zap.Error(err))
		database.MigrateAsync(db, 5*time.Second)
	} else {
		logger.Info("Database connected")
	}

	redisClient := database.NewRedis(cfg)
	if redisClient != nil {
		logger.Info("Redis connected")
	}

	// External collaborators
	userClient := client.NewUserClient(cfg.Services.UserServiceURL, cfg.Auth.ServiceURL, 10*time.Second)
	mediaClient := client.NewMediaClient(cfg.LiveKit, cfg.Call.MediaTokenTTL, logger)

	// Repositories
	callRepo := repository.NewCallRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)

	// Hub and services
	hub := ws.NewHub(logger)

	eligibilityService := service.NewEligibilityService(
		subscriptionRepo, callRepo, userClient, cfg.Call.TrialBudgetSeconds, logger)
	fanoutService := service.NewFanoutService(
		friendRepo, eligibilityService, hub, redisClient, logger)
	callService := service.NewCallService(
		callRepo, availabilityRepo, userClient, mediaClient, eligibilityService, hub, cfg.Call, logger)
	friendService := service.NewFriendService(
		friendRepo, userClient, eligibilityService, hub, logger)

	// Presence transitions drive the friend fanout
	hub.SetTransitionHandler(fanoutService.HandlePresenceTransition)
	defer callService.StopTimers()

	// Validator and handlers
	validator := middleware.NewAuthServiceValidator(cfg.Auth.ServiceURL, cfg.Auth.SecretKey, logger)
	wsHandler := ws.NewWSHandler(hub, validator, logger)
	callHandler := handler.NewCallHandler(callService, logger)
	friendHandler := handler.NewFriendHandler(friendService, logger)
	presenceHandler := handler.NewPresenceHandler(fanoutService)

	// Missed-call sweep backstop behind the per-invitation timers
	scheduler := cron.New()
	missedJob := job.NewMissedCallJob(callService, logger)
	if _, err := scheduler.AddJob(cfg.Call.SweepInterval, missedJob); err != nil {
		logger.Fatal("Failed to schedule missed-call sweep", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := router.Setup(cfg, db, redisClient, validator, wsHandler, callHandler, friendHandler, presenceHandler, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Call Service started successfully", zap.String("address", addr))

	if err := r.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Server.Env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
