package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/comanda/internal/pkg/archive"
	"github.com/ManuelReschke/comanda/internal/pkg/billing"
	"github.com/ManuelReschke/comanda/internal/pkg/cache"
	"github.com/ManuelReschke/comanda/internal/pkg/config"
	"github.com/ManuelReschke/comanda/internal/pkg/database"
	"github.com/ManuelReschke/comanda/internal/pkg/env"
	"github.com/ManuelReschke/comanda/internal/pkg/logging"
	"github.com/ManuelReschke/comanda/internal/pkg/mail"
	"github.com/ManuelReschke/comanda/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/comanda/internal/pkg/router"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	envFile := env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("app", "comanda-billing")
	if envFile != "" {
		log.WithField("file", envFile).Debug("loaded env file")
	}

	app, err := NewApplication(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start application")
	}

	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func NewApplication(cfg *config.Config, log *logrus.Entry) (*fiber.App, error) {
	db, err := database.Open(cfg.Database, log.WithField("component", "database"))
	if err != nil {
		return nil, err
	}

	rdb := cache.New(cfg.Cache, log.WithField("component", "cache"))

	mailer, err := mail.New(cfg.Email, log.WithField("component", "mail"))
	if err != nil {
		return nil, err
	}
	if !mailer.Configured() {
		log.Warn("no email transport configured, welcome emails will be skipped")
	}

	opts := billing.Options{
		Provider:    billing.NewStripeProvider(cfg.Stripe.SecretKey),
		Verifier:    billing.NewVerifier(cfg.Stripe.WebhookSecrets),
		Mailer:      mailer,
		FrontendURL: cfg.FrontendURL,
		Logger:      log,
	}
	if rdb != nil {
		opts.Counter = counter.New(rdb)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	payloadArchive, err := archive.New(ctx, cfg.Archive, log.WithField("component", "archive"))
	if err != nil {
		return nil, err
	}
	if payloadArchive != nil {
		opts.Archive = payloadArchive
	}

	if cfg.UnverifiedWebhooks() {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, webhook signatures are NOT verified")
	}

	svc := billing.NewServiceFromDB(db, opts)

	app := fiber.New(fiber.Config{
		AppName:      "comanda-billing",
		BodyLimit:    cfg.WebhookBodyLimit,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.Dependencies{
		Config:         cfg,
		Billing:        svc,
		Log:            log,
		LimiterStorage: cache.NewStorage(cfg.Cache, rdb, log),
		Checks:         healthChecks(db, rdb),
	})

	return app, nil
}

func healthChecks(db *gorm.DB, rdb *redis.Client) map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["cache"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}
