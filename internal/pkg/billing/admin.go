package billing

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ManuelReschke/comanda/app/models"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// CompanyStatus is the operator view of one tenant's billing state.
type CompanyStatus struct {
	Company      *models.Company      `json:"company"`
	Subscription *models.Subscription `json:"subscription"`
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// UnresolvedSubscriptions lists subscriptions written without a plan.
func (s *Service) UnresolvedSubscriptions(ctx context.Context, limit int) ([]models.Subscription, error) {
	return s.repo.ListSubscriptionsWithoutPlan(ctx, clampLimit(limit))
}

// CompanySubscription returns the company and its subscription row. Either
// lookup may return gorm.ErrRecordNotFound.
func (s *Service) CompanySubscription(ctx context.Context, companyID string) (*CompanyStatus, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubscriptionByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &CompanyStatus{Company: company, Subscription: sub}, nil
}

func (s *Service) WebhookLogs(ctx context.Context, status string, limit int) ([]models.WebhookLog, error) {
	return s.repo.ListWebhookLogs(ctx, status, clampLimit(limit))
}

// WebhookStats returns outcome counters, or an empty map when no counter
// backend is configured.
func (s *Service) WebhookStats(ctx context.Context) (map[string]int64, error) {
	if s.counter == nil {
		return map[string]int64{}, nil
	}
	return s.counter.Snapshot(ctx)
}

// DrainWebhookStats returns the outcome counters and resets them.
func (s *Service) DrainWebhookStats(ctx context.Context) (map[string]int64, error) {
	if s.counter == nil {
		return map[string]int64{}, nil
	}
	return s.counter.Drain(ctx)
}

// Resync fetches the company's subscription from the provider and runs the
// resolver and writer again. It repairs rows left behind by partial writes.
func (s *Service) Resync(ctx context.Context, companyID string) (*models.Subscription, error) {
	local, err := s.repo.GetSubscriptionByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if local.ProviderSubscriptionID == "" {
		return nil, errors.Wrapf(ErrResourceMissing, "company %s has no provider subscription", companyID)
	}

	sub, err := s.provider.GetSubscription(ctx, local.ProviderSubscriptionID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch subscription")
	}
	if sub.CustomerID == "" {
		sub.CustomerID = local.ProviderCustomerID
	}

	plan, err := s.resolver.Resolve(ctx, *sub, "")
	if err != nil {
		return nil, errors.Wrap(err, "resolve plan")
	}
	// A plan chosen at checkout only travels in the session, keep it.
	if plan == nil {
		plan = local.PlanID
	}

	s.log.WithField("company_id", companyID).Info("resyncing subscription from provider")
	return s.writeState(ctx, companyID, plan, *sub, "")
}
