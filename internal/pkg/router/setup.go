package router

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/comanda/app/controllers"
	"github.com/ManuelReschke/comanda/internal/pkg/config"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// BillingService is everything the HTTP layer needs from billing.
type BillingService interface {
	controllers.WebhookProcessor
	controllers.BillingAdmin
}

// Dependencies is built once in main and shared by every router.
type Dependencies struct {
	Config  *config.Config
	Billing BillingService
	Log     *logrus.Entry
	// LimiterStorage backs the API rate limiter; nil keeps it in memory.
	LimiterStorage fiber.Storage
	// RateLimit is requests per minute and client IP; zero uses the default.
	RateLimit int
	// Checks are run by /healthz, keyed by dependency name.
	Checks map[string]func(ctx context.Context) error
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
