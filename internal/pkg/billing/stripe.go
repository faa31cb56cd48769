package billing

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeProvider implements Provider on top of the Stripe REST API.
type StripeProvider struct {
	api *client.API
}

func NewStripeProvider(secretKey string) *StripeProvider {
	return NewStripeProviderWithBackends(secretKey, nil)
}

// NewStripeProviderWithBackends allows pointing the client at a different
// API host, which tests use to run against an httptest server.
func NewStripeProviderWithBackends(secretKey string, backends *stripe.Backends) *StripeProvider {
	return &StripeProvider{api: client.New(secretKey, backends)}
}

func (p *StripeProvider) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, translateStripeError(err, "subscription "+id)
	}
	out := subscriptionFromStripe(sub)
	return &out, nil
}

func (p *StripeProvider) GetPrice(ctx context.Context, id string) (*Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx
	params.AddExpand("product")
	price, err := p.api.Prices.Get(id, params)
	if err != nil {
		return nil, translateStripeError(err, "price "+id)
	}

	out := &Price{ID: price.ID, Metadata: price.Metadata}
	if price.Recurring != nil {
		out.Interval = string(price.Recurring.Interval)
	}
	if price.Product != nil {
		out.ProductID = price.Product.ID
		out.ProductMetadata = price.Product.Metadata
	}
	return out, nil
}

func (p *StripeProvider) GetCustomerEmail(ctx context.Context, id string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := p.api.Customers.Get(id, params)
	if err != nil {
		return "", translateStripeError(err, "customer "+id)
	}
	return strings.TrimSpace(cust.Email), nil
}

func subscriptionFromStripe(sub *stripe.Subscription) Subscription {
	out := Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CanceledAt:        epochSeconds(sub.CanceledAt),
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = epochSeconds(item.CurrentPeriodStart)
		out.CurrentPeriodEnd = epochSeconds(item.CurrentPeriodEnd)
		if item.Price != nil {
			out.PriceID = item.Price.ID
			if item.Price.Product != nil {
				out.ProductID = item.Price.Product.ID
			}
		}
	}
	return out
}

func translateStripeError(err error, what string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) &&
		(stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
		return errors.Wrap(ErrResourceMissing, what)
	}
	return errors.Wrapf(err, "stripe: get %s", what)
}
