package billing

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/comanda/app/models"
)

// PlanResolver maps a provider subscription to a local plan id. Prices seen
// for the first time are written back onto the plan so the next lookup is
// served from the database.
type PlanResolver struct {
	plans    PlanStore
	provider Provider
	log      *logrus.Entry
}

func NewPlanResolver(plans PlanStore, provider Provider, log *logrus.Entry) *PlanResolver {
	return &PlanResolver{plans: plans, provider: provider, log: log}
}

// Resolve returns the plan id for sub, or nil when no strategy matches.
// forced is the plan chosen at checkout and wins over everything else.
func (r *PlanResolver) Resolve(ctx context.Context, sub Subscription, forced string) (*string, error) {
	if forced = strings.TrimSpace(forced); forced != "" {
		return &forced, nil
	}

	log := r.log.WithField("subscription_id", sub.ID)
	if sub.PriceID != "" {
		plan, err := found(r.plans.FindPlanByMonthlyPrice(ctx, sub.PriceID))
		if err != nil || plan != nil {
			return planID(plan), err
		}
		plan, err = found(r.plans.FindPlanByYearlyPrice(ctx, sub.PriceID))
		if err != nil || plan != nil {
			return planID(plan), err
		}
	}
	if sub.ProductID != "" {
		plan, err := found(r.plans.FindPlanByProduct(ctx, sub.ProductID))
		if err != nil || plan != nil {
			return planID(plan), err
		}
	}

	if sub.PriceID != "" {
		plan, err := r.resolveFromProvider(ctx, sub.PriceID, log)
		if err != nil || plan != nil {
			return planID(plan), err
		}
	}

	if id := sub.PlanID(); id != "" {
		log.WithField("plan_id", id).Info("plan resolved from subscription metadata")
		return &id, nil
	}

	log.WithField("price_id", sub.PriceID).Warn("could not resolve plan for subscription")
	return nil, nil
}

func (r *PlanResolver) resolveFromProvider(ctx context.Context, priceID string, log *logrus.Entry) (*models.Plan, error) {
	price, err := r.provider.GetPrice(ctx, priceID)
	if errors.Is(err, ErrResourceMissing) {
		log.WithField("price_id", priceID).Warn("price not found at provider")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	yearly := normalizeInterval(price.Interval) == "year"

	if price.ProductID != "" {
		plan, err := found(r.plans.FindPlanByProduct(ctx, price.ProductID))
		if err != nil {
			return nil, err
		}
		if plan != nil {
			refs := PlanRefs{}
			if yearly && plan.ProviderPriceIDYearly == nil {
				refs.PriceIDYearly = price.ID
			}
			if !yearly && plan.ProviderPriceIDMonthly == nil {
				refs.PriceIDMonthly = price.ID
			}
			r.backfill(ctx, plan.ID, refs, log)
			return plan, nil
		}
	}

	ref := price.PlanID()
	if ref == "" {
		return nil, nil
	}
	plan, err := found(r.plans.GetPlan(ctx, ref))
	if err != nil || plan == nil {
		return nil, err
	}

	refs := PlanRefs{ProductID: price.ProductID}
	if yearly {
		refs.PriceIDYearly = price.ID
	} else {
		refs.PriceIDMonthly = price.ID
	}
	r.backfill(ctx, plan.ID, refs, log)
	return plan, nil
}

func (r *PlanResolver) backfill(ctx context.Context, id string, refs PlanRefs, log *logrus.Entry) {
	if refs == (PlanRefs{}) {
		return
	}
	if err := r.plans.BackfillPlanRefs(ctx, id, refs); err != nil {
		log.WithError(err).WithField("plan_id", id).Warn("failed to backfill plan provider references")
		return
	}
	log.WithFields(logrus.Fields{
		"plan_id":       id,
		"price_monthly": refs.PriceIDMonthly,
		"price_yearly":  refs.PriceIDYearly,
		"product":       refs.ProductID,
	}).Info("backfilled plan provider references")
}

// found turns a not-found lookup into (nil, nil).
func found(plan *models.Plan, err error) (*models.Plan, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "plan lookup")
	}
	return plan, nil
}

func planID(plan *models.Plan) *string {
	if plan == nil {
		return nil
	}
	id := plan.ID
	return &id
}
