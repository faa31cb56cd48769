package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/comanda/app/models"
	"github.com/ManuelReschke/comanda/internal/pkg/billing"
)

// BillingAdmin is the operator surface of the billing service.
type BillingAdmin interface {
	UnresolvedSubscriptions(ctx context.Context, limit int) ([]models.Subscription, error)
	CompanySubscription(ctx context.Context, companyID string) (*billing.CompanyStatus, error)
	WebhookLogs(ctx context.Context, status string, limit int) ([]models.WebhookLog, error)
	WebhookStats(ctx context.Context) (map[string]int64, error)
	DrainWebhookStats(ctx context.Context) (map[string]int64, error)
	Resync(ctx context.Context, companyID string) (*models.Subscription, error)
}

type AdminBillingController struct {
	admin BillingAdmin
}

func NewAdminBillingController(admin BillingAdmin) *AdminBillingController {
	return &AdminBillingController{admin: admin}
}

// HandleUnresolvedSubscriptions lists subscriptions stored without a plan.
func (ac *AdminBillingController) HandleUnresolvedSubscriptions(c *fiber.Ctx) error {
	subs, err := ac.admin.UnresolvedSubscriptions(c.UserContext(), c.QueryInt("limit", billing.DefaultListLimit))
	if err != nil {
		return internalError(c, "Failed to load subscriptions")
	}
	return c.JSON(fiber.Map{"data": subs, "count": len(subs)})
}

func (ac *AdminBillingController) HandleCompanySubscription(c *fiber.Ctx) error {
	status, err := ac.admin.CompanySubscription(c.UserContext(), c.Params("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Company or subscription not found"})
	}
	if err != nil {
		return internalError(c, "Failed to load company subscription")
	}
	return c.JSON(status)
}

func (ac *AdminBillingController) HandleWebhookLogs(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status"))
	switch status {
	case "", models.WebhookLogStatusReceived, models.WebhookLogStatusProcessed, models.WebhookLogStatusIgnored,
		models.WebhookLogStatusFailed, models.WebhookLogStatusRejected:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_status", "message": "Unknown webhook log status"})
	}

	logs, err := ac.admin.WebhookLogs(c.UserContext(), status, c.QueryInt("limit", billing.DefaultListLimit))
	if err != nil {
		return internalError(c, "Failed to load webhook logs")
	}
	return c.JSON(fiber.Map{"data": logs, "count": len(logs)})
}

// HandleWebhookStats returns the outcome counters. ?reset=true drains them.
func (ac *AdminBillingController) HandleWebhookStats(c *fiber.Ctx) error {
	load := ac.admin.WebhookStats
	if c.QueryBool("reset", false) {
		load = ac.admin.DrainWebhookStats
	}
	stats, err := load(c.UserContext())
	if err != nil {
		return internalError(c, "Failed to load webhook stats")
	}
	return c.JSON(fiber.Map{"data": stats})
}

// HandleResync re-reads the company's subscription from the provider.
func (ac *AdminBillingController) HandleResync(c *fiber.Ctx) error {
	sub, err := ac.admin.Resync(c.UserContext(), c.Params("id"))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, billing.ErrResourceMissing):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Subscription not found"})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "resync_failed", "message": "Subscription resync failed"})
	}
	return c.JSON(fiber.Map{"data": sub})
}

func internalError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": message})
}
