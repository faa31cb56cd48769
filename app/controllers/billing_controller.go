package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/comanda/internal/pkg/billing"
)

// WebhookProcessor applies one raw provider delivery.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.Result, error)
}

type BillingController struct {
	webhooks WebhookProcessor
}

func NewBillingController(webhooks WebhookProcessor) *BillingController {
	return &BillingController{webhooks: webhooks}
}

// HandleStripeWebhook answers 200 for every handled or deliberately skipped
// event, 400 when the delivery is not authentic or cannot be decoded, and 500
// when processing failed and the provider should retry.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(billing.SignatureHeader)

	_, err := bc.webhooks.HandleWebhook(c.UserContext(), rawBody, signature)
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature", "message": "Webhook signature verification failed"})
	case errors.Is(err, billing.ErrMalformedEvent):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Webhook payload could not be decoded"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed", "message": "Webhook processing failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
