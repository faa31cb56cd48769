package billing

import (
	"strings"

	"github.com/ManuelReschke/comanda/app/models"
)

var providerStatuses = map[string]string{
	"trialing":           models.SubscriptionStatusTrialing,
	"active":             models.SubscriptionStatusActive,
	"past_due":           models.SubscriptionStatusPastDue,
	"canceled":           models.SubscriptionStatusCanceled,
	"unpaid":             models.SubscriptionStatusUnpaid,
	"incomplete":         models.SubscriptionStatusPastDue,
	"incomplete_expired": models.SubscriptionStatusCanceled,
	"paused":             models.SubscriptionStatusPaused,
}

// MapProviderStatus translates a provider subscription status into the local
// status set. The second value is false when the status is unknown, in which
// case the subscription is treated as active.
func MapProviderStatus(status string) (string, bool) {
	mapped, ok := providerStatuses[strings.ToLower(strings.TrimSpace(status))]
	if !ok {
		return models.SubscriptionStatusActive, false
	}
	return mapped, true
}

// BlockReason returns the text shown to a blocked company, or nil when the
// status does not block access.
func BlockReason(status string) *string {
	var reason string
	switch status {
	case models.SubscriptionStatusCanceled:
		reason = "Assinatura cancelada"
	case models.SubscriptionStatusUnpaid:
		reason = "Assinatura não paga"
	case models.SubscriptionStatusPastDue:
		reason = "Pagamento da assinatura em atraso"
	default:
		return nil
	}
	return &reason
}

func normalizeInterval(interval string) string {
	if strings.ToLower(strings.TrimSpace(interval)) == "year" {
		return "year"
	}
	return "month"
}
