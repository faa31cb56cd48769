package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/comanda/app/controllers"
)

func (h ApiRouter) registerAdminRoutes(api fiber.Router) {
	admin := h.deps.Config.Admin
	if admin.PasswordHash == "" {
		h.deps.Log.Warn("ADMIN_PASSWORD_HASH not set, admin endpoints are disabled")
		return
	}

	adminGroup := api.Group("/admin", basicauth.New(basicauth.Config{
		Realm: "comanda billing",
		Authorizer: func(user, pass string) bool {
			if user != admin.User {
				return false
			}
			return bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(pass)) == nil
		},
	}))

	ac := controllers.NewAdminBillingController(h.deps.Billing)
	adminGroup.Get("/subscriptions/unresolved", ac.HandleUnresolvedSubscriptions)
	adminGroup.Get("/companies/:id/subscription", ac.HandleCompanySubscription)
	adminGroup.Post("/companies/:id/resync", ac.HandleResync)
	adminGroup.Get("/webhook-logs", ac.HandleWebhookLogs)
	adminGroup.Get("/webhook-stats", ac.HandleWebhookStats)
}
