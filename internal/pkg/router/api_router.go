package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/comanda/app/controllers"
)

const (
	apiRateLimit       = 300
	apiRateLimitWindow = time.Minute
	stripeWebhookPath  = "/api/webhooks/stripe"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limit := h.deps.RateLimit
	if limit <= 0 {
		limit = apiRateLimit
	}

	// Provider deliveries are never rate limited.
	api := app.Group("/api", limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == stripeWebhookPath
		},
		Max:          limit,
		Expiration:   apiRateLimitWindow,
		Storage:      h.deps.LimiterStorage,
		KeyGenerator: controllers.ClientIP,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
	}))

	billingController := controllers.NewBillingController(h.deps.Billing)
	app.Post(stripeWebhookPath, billingController.HandleStripeWebhook)

	h.registerAdminRoutes(api)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
