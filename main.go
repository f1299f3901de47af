// main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clan-wager-system/config"
	"clan-wager-system/handlers"
	"clan-wager-system/middleware"
	"clan-wager-system/models"
	"clan-wager-system/observability"
	"clan-wager-system/services"
	"clan-wager-system/utils"
	"clan-wager-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := observability.NewLogger("main")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	observability.SetLevel(cfg.LogLevel)
	log := observability.NewLogger("main")

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events services.Publisher = services.NoopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := services.NewNATSPublisher(ctx, cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nats.Close()
		events = nats
		log.Info().Str("url", cfg.NATSURL).Msg("✅ publishing events to NATS")
	}

	var store utils.ObjectStore
	r2, err := utils.NewR2Client(ctx, cfg.R2)
	switch {
	case err == nil:
		store = r2
	case errors.Is(err, utils.ErrR2Disabled):
		log.Warn().Msg("⚠️  R2 not configured, daily ledger export disabled")
	default:
		log.Fatal().Err(err).Msg("failed to initialize R2 client")
	}

	ledger := services.NewLedger(db)
	matchService := services.NewMatchService(db, ledger, cfg.Policy, events)
	campaignService := services.NewCampaignService(db, cfg.Policy, events)
	withdrawalService := services.NewWithdrawalService(db, ledger, cfg.Policy, events)
	walletService := services.NewWalletService(db, ledger, events)

	scheduler, err := services.NewScheduler(campaignService, ledger, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	scheduler.Start()

	if cfg.ProfileSyncURL != "" {
		workers.NewUserSyncWorker(db, cfg.ProfileSyncURL, cfg.ServiceToken).Start(ctx)
	}
	if cfg.PaymentSyncURL != "" {
		workers.NewPaymentSyncWorker(walletService, cfg.PaymentSyncURL, cfg.ServiceToken).Start(ctx)
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Use(recover.New())

	// Probes and scraping bypass the gateway check.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// 🔐❗ GLOBAL: Only Gateway requests allowed past this point
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token, X-User-ID, X-User-Roles, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	deps := handlers.Deps{
		DB:          db,
		Ledger:      ledger,
		Matches:     matchService,
		Campaigns:   campaignService,
		Withdrawals: withdrawalService,
		Wallet:      walletService,
	}
	if cfg.AuthServiceURL != "" {
		deps.Auth = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken)
	}
	handlers.SetupRoutes(app, deps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()
	log.Info().Str("port", cfg.Port).Str("origins", cfg.Origins()).Msg("✅ clan wager service running")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
}
