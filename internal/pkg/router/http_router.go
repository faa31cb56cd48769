package router

import (
	"context"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/comanda/docs"
)

const healthCheckTimeout = 2 * time.Second

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Use(swagger.New(swagger.Config{
		BasePath:    "/docs/",
		FilePath:    "openapi.yml",
		FileContent: docs.OpenAPI,
		Path:        "api",
		Title:       "Comanda Billing API",
	}))

	app.Get("/healthz", h.handleHealth)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}

// handleHealth answers 503 when any registered dependency check fails.
func (h HttpRouter) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	checks := fiber.Map{}
	status := fiber.StatusOK
	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			h.deps.Log.WithError(err).WithField("dependency", name).Warn("health check failed")
			checks[name] = "down"
			status = fiber.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": checks})
}
