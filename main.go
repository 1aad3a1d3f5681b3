package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"daily-challenge-service/config"
	"daily-challenge-service/handlers"
	"daily-challenge-service/middleware"
	"daily-challenge-service/models"
	"daily-challenge-service/services"
	"daily-challenge-service/utils"
	"daily-challenge-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, dotenv, err := config.Load()
	log, logErr := utils.NewLogger(os.Getenv("LOG_MODE"))
	if logErr != nil {
		panic(logErr)
	}
	if err != nil {
		log.Fatal("invalid configuration", "error", err)
	}
	defer log.Sync()
	if !dotenv {
		log.Info("no .env file found, reading environment variables directly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}

	var archive services.Archiver
	if !cfg.ArchiveDisabled {
		r2, err := utils.NewR2Archive(ctx, cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessSecret, cfg.R2Bucket)
		if err != nil {
			log.Fatal("failed to initialize R2 client", "error", err)
		}
		archive = r2
	}

	clock := clockwork.NewRealClock()
	bus := services.NewEventBus()

	progressionService := services.NewProgressionService(db, clock, log, bus)
	missionService := services.NewMissionService(db, clock, log, bus)
	achievementService := services.NewAchievementService(db, clock, log, bus)
	streakService := services.NewStreakService(db, clock, log, bus)
	leagueService := services.NewLeagueService(db, clock, log, bus, archive)
	rollover := &services.WeeklyRollover{Leagues: leagueService, Streaks: streakService, Clock: clock, Log: log}

	sched, err := services.StartWeeklyScheduler(ctx, rollover)
	if err != nil {
		log.Fatal("failed to start scheduler", "error", err)
	}
	defer func() { _ = sched.Shutdown() }()

	if cfg.SyncServiceURL != "" {
		workers.NewSubscriptionSyncWorker(db, clock, log, cfg.SyncServiceURL, cfg.ServiceToken, cfg.SyncInterval).Start(ctx)
	} else {
		log.Warn("SYNC_SERVICE_URL not set, subscription sync disabled")
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Only the gateway may call us.
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Premium, X-User-Timezone, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	env := handlers.RouteEnv{Clock: clock, DefaultTimezone: cfg.DefaultTimezone, Log: log}
	secured := app.Group("/s", middleware.UserContextMiddleware(log))
	handlers.SetupMissionRoutes(secured, env, missionService)
	handlers.SetupStreakRoutes(secured, env, streakService)
	handlers.SetupLeagueRoutes(secured, env, progressionService, leagueService)
	handlers.SetupProgressionRoutes(secured, env, progressionService, achievementService)
	handlers.SetupAdminRoutes(secured, env, progressionService, streakService, rollover)

	if cfg.IdentityServiceURL != "" {
		authClient := services.NewAuthServiceClient(cfg.IdentityServiceURL, cfg.ServiceToken, log)
		handlers.SetupEventRoutes(app, authClient, services.NewEventStream(bus, log), log)
	} else {
		log.Warn("IDENTITY_SERVICE_URL not set, /events/stream disabled")
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", "error", err)
			stop()
		}
	}()
	log.Info("server running", "port", cfg.Port, "origins", cfg.AllowedOrigins, "archive", !cfg.ArchiveDisabled)

	<-ctx.Done()
	log.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
