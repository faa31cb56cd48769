package billing

import "context"

// Price is a provider price with its product resolved.
type Price struct {
	ID              string
	ProductID       string
	Interval        string
	Metadata        map[string]string
	ProductMetadata map[string]string
}

// PlanID returns a plan reference found on the price, then on its product.
func (p Price) PlanID() string {
	if id := metadataValue(p.Metadata, "plano_id", "plan_id"); id != "" {
		return id
	}
	return metadataValue(p.ProductMetadata, "plano_id", "plan_id")
}

// Provider reads billing objects from the payment provider. Implementations
// return ErrResourceMissing when the object does not exist.
type Provider interface {
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	GetPrice(ctx context.Context, id string) (*Price, error)
	GetCustomerEmail(ctx context.Context, id string) (string, error)
}
