package billing

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/comanda/app/models"
)

// writeState upserts the company's subscription row from sub and refreshes
// the company mirror. A non-empty status overrides the mapped provider status.
func (s *Service) writeState(ctx context.Context, companyID string, planID *string, sub Subscription, status string) (*models.Subscription, error) {
	if status == "" {
		mapped, known := MapProviderStatus(sub.Status)
		if !known {
			s.log.WithFields(logrus.Fields{
				"subscription_id": sub.ID,
				"provider_status": sub.Status,
			}).Warn("unknown provider subscription status, treating as active")
		}
		status = mapped
	}

	row := &models.Subscription{
		CompanyID:              companyID,
		PlanID:                 planID,
		ProviderSubscriptionID: sub.ID,
		ProviderCustomerID:     sub.CustomerID,
		Status:                 status,
		CurrentPeriodStart:     sub.CurrentPeriodStart,
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		CanceledAt:             sub.CanceledAt,
	}
	if err := s.repo.UpsertSubscription(ctx, row); err != nil {
		return nil, errors.Wrapf(err, "upsert subscription for company %s", companyID)
	}
	if err := s.updateCompanyMirror(ctx, companyID, status); err != nil {
		return row, err
	}
	return row, nil
}

func (s *Service) updateCompanyMirror(ctx context.Context, companyID, status string) error {
	mirror := CompanyMirror{Status: status, BlockReason: BlockReason(status)}
	if models.IsBlockingStatus(status) {
		now := s.now().UTC()
		mirror.BlockedAt = &now
	}
	if err := s.repo.UpdateCompanyMirror(ctx, companyID, mirror); err != nil {
		return errors.Wrapf(err, "update company %s subscription mirror", companyID)
	}
	return nil
}
