package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/comanda/app/models"
	"github.com/ManuelReschke/comanda/internal/pkg/billing"
)

func TestUnresolvedSubscriptions(t *testing.T) {
	f := newFixture(t, testSecret)
	f.repo.SeedSubscription(models.Subscription{CompanyID: "E1", ProviderSubscriptionID: "sub_1"})
	f.repo.SeedSubscription(models.Subscription{CompanyID: "E2", ProviderSubscriptionID: "sub_2", PlanID: strPtr("P1")})

	subs, err := f.svc.UnresolvedSubscriptions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "E1", subs[0].CompanyID)
}

func TestCompanySubscription(t *testing.T) {
	f := newFixture(t, testSecret)
	f.repo.SeedSubscription(models.Subscription{CompanyID: "E1", ProviderSubscriptionID: "sub_1", Status: "active"})

	status, err := f.svc.CompanySubscription(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, "Cantina da Nona", status.Company.Name)
	assert.Equal(t, "sub_1", status.Subscription.ProviderSubscriptionID)

	_, err = f.svc.CompanySubscription(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestWebhookLogsAndStats(t *testing.T) {
	f := newFixture(t, testSecret)
	_, _ = f.deliver(t, `{"id":"evt_1","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	_, _ = f.svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=00")

	logs, err := f.svc.WebhookLogs(context.Background(), models.WebhookLogStatusRejected, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	all, err := f.svc.WebhookLogs(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stats, err := f.svc.WebhookStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["customer.created:ignored"])
	assert.Equal(t, int64(1), stats["unknown:rejected"])

	drained, err := f.svc.DrainWebhookStats(context.Background())
	require.NoError(t, err)
	assert.Len(t, drained, 2)
	stats, err = f.svc.WebhookStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestWebhookStatsWithoutCounter(t *testing.T) {
	svc := billing.NewService(billing.Options{})

	stats, err := svc.WebhookStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestResyncRewritesFromProvider(t *testing.T) {
	f := newFixture(t, testSecret)
	f.repo.AddPlan(models.Plan{ID: "P2", ProviderPriceIDYearly: strPtr("price_y")})
	f.repo.SeedSubscription(models.Subscription{
		CompanyID:              "E1",
		ProviderSubscriptionID: "sub_1",
		ProviderCustomerID:     "cus_1",
		Status:                 "past_due",
	})
	f.provider.Subscriptions["sub_1"] = billing.Subscription{ID: "sub_1", Status: "active", PriceID: "price_y"}

	sub, err := f.svc.Resync(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, "active", sub.Status)
	require.NotNil(t, sub.PlanID)
	assert.Equal(t, "P2", *sub.PlanID)
	assert.Equal(t, "cus_1", sub.ProviderCustomerID)

	company := f.repo.Company("E1")
	require.NotNil(t, company.SubscriptionStatus)
	assert.Equal(t, "active", *company.SubscriptionStatus)
}

func TestResyncKeepsCheckoutPlan(t *testing.T) {
	f := newFixture(t, testSecret)
	f.repo.SeedSubscription(models.Subscription{CompanyID: "E1", ProviderSubscriptionID: "sub_1", PlanID: strPtr("P1")})
	f.provider.Subscriptions["sub_1"] = billing.Subscription{ID: "sub_1", Status: "trialing"}

	sub, err := f.svc.Resync(context.Background(), "E1")
	require.NoError(t, err)
	require.NotNil(t, sub.PlanID)
	assert.Equal(t, "P1", *sub.PlanID)
}

func TestResyncUnknownCompany(t *testing.T) {
	f := newFixture(t, testSecret)

	_, err := f.svc.Resync(context.Background(), "E404")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
